package middleware

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bbus-fleet/backend/pkg/response"
)

// KeyScope selects which configured webhook keys a route accepts.
type KeyScope int

const (
	// ScopeAny accepts the private or the public key.
	ScopeAny KeyScope = iota
	// ScopePrivate accepts only the private key.
	ScopePrivate
)

// DefaultMaxBodyBytes caps /sources request bodies when APIKeys.MaxBodyBytes is unset.
const DefaultMaxBodyBytes int64 = 1 << 20

// APIKeys are the static keys shared with the external order system.
type APIKeys struct {
	Private      string
	Public       string
	MaxBodyBytes int64
}

func (k APIKeys) bodyLimit() int64 {
	if k.MaxBodyBytes > 0 {
		return k.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}

func (k APIKeys) accepts(key string, scope KeyScope) bool {
	if key == "" {
		return false
	}
	ok := equalKey(key, k.Private)
	if scope == ScopeAny {
		ok = equalKey(key, k.Public) || ok
	}
	return ok
}

func equalKey(got, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

type apiKeyBody struct {
	APIKey string `json:"apiKey"`
}

// APIKey returns a middleware that authenticates /sources requests. The key is read from the JSON body
// field apiKey, then from the apiKey or key query parameters. The body is restored for the handler.
// Bodies over the configured limit are rejected with 413 before any decoding.
func APIKey(keys APIKeys, scope KeyScope) gin.HandlerFunc {
	limit := keys.bodyLimit()
	return func(c *gin.Context) {
		var key string
		if c.Request.Body != nil {
			raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, response.SourceError{Error: "Request body too large"})
					return
				}
				response.SourceBadRequest(c, "Invalid JSON body")
				return
			}
			_ = c.Request.Body.Close()
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))

			if len(bytes.TrimSpace(raw)) > 0 {
				var body apiKeyBody
				if err := json.Unmarshal(raw, &body); err != nil {
					response.SourceBadRequest(c, "Invalid JSON body")
					return
				}
				key = strings.TrimSpace(body.APIKey)
			}
		}
		if key == "" {
			key = strings.TrimSpace(c.Query("apiKey"))
		}
		if key == "" {
			key = strings.TrimSpace(c.Query("key"))
		}
		if !keys.accepts(key, scope) {
			response.SourceBadRequest(c, "API key is missing")
			return
		}
		c.Next()
	}
}
