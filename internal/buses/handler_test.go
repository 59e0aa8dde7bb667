package buses

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestUpdateRejectsAssignmentFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, nil, nil)
	r := gin.New()
	r.PATCH("/api/buses/:id", h.Update)

	for _, body := range []string{
		`{"routeId":"7f1d3f0e-6a43-4c5e-9a0c-3f08f5d2b8a1"}`,
		`{"organizationId":"7f1d3f0e-6a43-4c5e-9a0c-3f08f5d2b8a1","busDescription":"x"}`,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/buses/2b1d3f0e-6a43-4c5e-9a0c-3f08f5d2b8a1", strings.NewReader(body))
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "assigned by orders")
	}
}

func TestHandlersRejectMalformedIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, nil, nil)
	r := gin.New()
	r.GET("/api/buses/:id", h.Get)
	r.DELETE("/api/buses/:id", h.Delete)
	r.GET("/api/buses", h.List)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/buses/not-a-uuid", nil),
		httptest.NewRequest(http.MethodDelete, "/api/buses/42", nil),
		httptest.NewRequest(http.MethodGet, "/api/buses?routeId=zzz", nil),
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, req.URL.String())
	}
}
