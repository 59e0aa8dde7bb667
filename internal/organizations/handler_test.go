package organizations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/apperr"
)

type memoryStore struct {
	orgs    map[uuid.UUID]models.Organization
	listErr error
}

func (s *memoryStore) Create(_ context.Context, org *models.Organization) error {
	org.ID = uuid.New()
	s.orgs[org.ID] = *org
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	org, ok := s.orgs[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "organization not found")
	}
	return &org, nil
}

func (s *memoryStore) List(_ context.Context, taxID string) ([]models.Organization, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	list := []models.Organization{}
	for _, org := range s.orgs {
		if taxID == "" || org.TaxID == taxID {
			list = append(list, org)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (s *memoryStore) Update(_ context.Context, org *models.Organization) error {
	s.orgs[org.ID] = *org
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.orgs, id)
	return nil
}

func newRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, nil, nil, nil)
	r := gin.New()
	r.GET("/clients", h.List)
	r.GET("/clients/:id", h.Get)
	return r
}

func TestListFiltersByTaxID(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	store := &memoryStore{orgs: map[uuid.UUID]models.Organization{
		a: {ID: a, Name: "Alpha", TaxID: "7701234567"},
		b: {ID: b, Name: "Beta", TaxID: "7809876543"},
	}}

	w := httptest.NewRecorder()
	newRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clients?taxId=7809876543", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                  `json:"success"`
		Data    []models.Organization `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, b, body.Data[0].ID)
}

func TestListKeepsErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", apperr.New(apperr.KindValidation, "taxId is malformed"), http.StatusBadRequest},
		{"not found", apperr.New(apperr.KindNotFound, "organization not found"), http.StatusNotFound},
		{"internal", apperr.New(apperr.KindInternal, "database unavailable"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{orgs: map[uuid.UUID]models.Organization{}, listErr: tt.err}

			w := httptest.NewRecorder()
			newRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clients", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, `{"success":false,"error":"`+tt.err.Error()+`"}`, w.Body.String())
		})
	}
}

func TestGetUnknownClient(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&memoryStore{orgs: map[uuid.UUID]models.Organization{}}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clients/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
