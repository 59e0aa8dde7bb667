package journeys

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/apperr"
)

type memoryStore struct {
	list    []models.JourneyDetail
	created []models.Journey
	err     error
}

func (s *memoryStore) ListDetailed(context.Context, *time.Time, *time.Time) ([]models.JourneyDetail, error) {
	return s.list, s.err
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.JourneyDetail, error) {
	for i := range s.list {
		if s.list[i].ID == id {
			return &s.list[i], nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "journey not found")
}

func (s *memoryStore) Create(_ context.Context, j *models.Journey) error {
	j.ID = uuid.New()
	s.created = append(s.created, *j)
	return nil
}

var (
	busA, busB     = uuid.New(), uuid.New()
	routeA, routeB = uuid.New(), uuid.New()
	base           = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
)

func detail(bus, route uuid.UUID, at time.Time) models.JourneyDetail {
	return models.JourneyDetail{
		Journey: models.Journey{ID: uuid.New(), BusID: bus, RouteID: route, Timestamp: at, Status: models.JourneyRegistrationOK},
		Bus:     models.Bus{ID: bus, PlateNumber: "A123BC77"},
		Route:   models.Route{ID: route, Code: "R-77"},
		AccessCard: models.AccessCard{
			CardID:   "CARD-1",
			CardType: models.CardTypeNFC,
		},
	}
}

func sample() []models.JourneyDetail {
	return []models.JourneyDetail{
		detail(busA, routeA, base),
		detail(busA, routeB, base.Add(time.Hour)),
		detail(busB, routeA, base.Add(2*time.Hour)),
		detail(busB, routeB, base.Add(3*time.Hour)),
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestCriteriaFilter(t *testing.T) {
	list := sample()
	tests := []struct {
		name string
		c    Criteria
		want []int
	}{
		{"unconstrained", Criteria{}, []int{0, 1, 2, 3}},
		{"empty lists are unconstrained", Criteria{BusIDs: []uuid.UUID{}, RouteIDs: []uuid.UUID{}}, []int{0, 1, 2, 3}},
		{"bus membership", Criteria{BusIDs: []uuid.UUID{busB}}, []int{2, 3}},
		{"route membership", Criteria{RouteIDs: []uuid.UUID{routeA}}, []int{0, 2}},
		{"bus and route", Criteria{BusIDs: []uuid.UUID{busA}, RouteIDs: []uuid.UUID{routeB}}, []int{1}},
		{"inclusive lower bound", Criteria{From: ptr(base.Add(2 * time.Hour))}, []int{2, 3}},
		{"inclusive upper bound", Criteria{To: ptr(base.Add(time.Hour))}, []int{0, 1}},
		{"window", Criteria{From: ptr(base.Add(time.Hour)), To: ptr(base.Add(2 * time.Hour))}, []int{1, 2}},
		{"no match", Criteria{BusIDs: []uuid.UUID{uuid.New()}}, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.c.Filter(list)
			require.NotNil(t, got)
			ids := make([]uuid.UUID, 0, len(got))
			for _, j := range got {
				ids = append(ids, j.ID)
			}
			want := make([]uuid.UUID, 0, len(tt.want))
			for _, i := range tt.want {
				want = append(want, list[i].ID)
			}
			assert.Equal(t, want, ids)
		})
	}
}

func TestFilterJourneysWrapsStoreErrors(t *testing.T) {
	e := NewEngine(&memoryStore{err: errors.New("connection refused")})
	_, err := e.FilterJourneys(context.Background(), Criteria{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestBuildXLSX(t *testing.T) {
	data, err := BuildXLSX(sample()[:2], time.UTC)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(reportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, reportColumns, rows[0])
	assert.Equal(t, "2025-03-01 08:00:00", rows[1][0])
	assert.Equal(t, "REGISTRATION_OK", rows[1][1])
	assert.Equal(t, "A123BC77", rows[1][2])
	assert.Equal(t, "CARD-1", rows[2][4])
}

func TestBuildPDF(t *testing.T) {
	data, err := BuildPDF(sample(), time.UTC, base)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestBuildPDFEmbedsUnicodeFont(t *testing.T) {
	list := sample()
	list[0].Bus.PlateNumber = "А123ВС77"
	list[0].Route.Code = "Маршрут-5"

	data, err := BuildPDF(list, time.UTC, base)
	require.NoError(t, err)
	assert.Contains(t, string(data), "/Subtype /Type0")
	assert.Contains(t, string(data), "/Encoding /Identity-H")
	assert.Contains(t, string(data), "/FontFile2")
	assert.NotContains(t, string(data), "/Helvetica")
}

func newRouter(store *memoryStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, time.UTC, nil)
	h.now = func() time.Time { return base }
	r := gin.New()
	r.GET("/journeys", h.List)
	r.GET("/journeys/report.xlsx", h.ReportXLSX)
	r.GET("/journeys/:id", h.Get)
	r.POST("/journeys", h.Create)
	return r
}

func TestListHandlerFilters(t *testing.T) {
	store := &memoryStore{list: sample()}
	r := newRouter(store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/journeys?busId="+busA.String()+"&from=2025-03-01T08:30:00Z", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                   `json:"success"`
		Data    []models.JourneyDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, store.list[1].ID, body.Data[0].ID)
}

func TestListHandlerDateOnlyUpperBoundIncludesDay(t *testing.T) {
	list := append(sample(), detail(busA, routeA, base.AddDate(0, 0, 1)))
	r := newRouter(&memoryStore{list: list})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/journeys?from=2025-03-01&to=2025-03-01", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []models.JourneyDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 4)
}

func TestListHandlerRejectsBadIDs(t *testing.T) {
	r := newRouter(&memoryStore{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/journeys?routeId=nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportXLSXHandler(t *testing.T) {
	r := newRouter(&memoryStore{list: sample()})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/journeys/report.xlsx?routeId="+routeB.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(reportSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestCreateHandler(t *testing.T) {
	store := &memoryStore{}
	r := newRouter(store)

	t.Run("missing ids", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/journeys", bytes.NewBufferString(`{"busId":"`+busA.String()+`"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "accessCardId, applicationId, routeId required")
	})

	t.Run("defaults timestamp", func(t *testing.T) {
		payload, _ := json.Marshal(map[string]any{
			"accessCardId":  uuid.New(),
			"applicationId": uuid.New(),
			"busId":         busA,
			"routeId":       routeA,
			"journeyStatus": "AUTHORIZATION_OK",
		})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/journeys", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)
		require.Len(t, store.created, 1)
		assert.Equal(t, base, store.created[0].Timestamp)
		assert.Equal(t, models.JourneyAuthorizationOK, store.created[0].Status)
	})
}

func TestGetHandlerNotFound(t *testing.T) {
	r := newRouter(&memoryStore{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/journeys/"+uuid.New().String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
