package admin_http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailtrack/internal/domain"
	"mailtrack/internal/repository/delivery_repo"
)

type fakeListService struct {
	records    []domain.DeliveryRecord
	lastFilter domain.DeliveryFilter
	listCalls  int
	err        error
}

func (f *fakeListService) RecordOpen(context.Context, string, time.Time, string, string) error {
	return nil
}

func (f *fakeListService) RegisterDelivery(context.Context, *domain.EmailSentEvent) error {
	return nil
}

func (f *fakeListService) GetDelivery(context.Context, string) (*domain.DeliveryRecord, error) {
	return nil, delivery_repo.ErrDeliveryNotFound
}

func (f *fakeListService) ListDeliveries(_ context.Context, filter domain.DeliveryFilter) ([]domain.DeliveryRecord, error) {
	f.listCalls++
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func newAdminRouter(service *fakeListService) chi.Router {
	router := chi.NewRouter()
	RegisterRoutes(router, service, zap.NewNop())
	return router
}

func getDeliveries(router chi.Router, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func openedRecord(messageID string, openedAt time.Time, count int64) domain.DeliveryRecord {
	last := openedAt
	return domain.DeliveryRecord{
		ID:             "id-" + messageID,
		MessageID:      messageID,
		RecipientEmail: messageID + "@example.com",
		SentAt:         openedAt.Add(-time.Hour),
		OpenedAt:       &openedAt,
		OpenedCount:    count,
		LastOpenedAt:   &last,
	}
}

func TestListDeliveriesStats(t *testing.T) {
	now := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	service := &fakeListService{
		records: []domain.DeliveryRecord{
			openedRecord("m1", now, 3),
			openedRecord("m2", now, 1),
			{ID: "id-m3", MessageID: "m3", RecipientEmail: "m3@example.com", SentAt: now},
			{ID: "id-m4", MessageID: "m4", RecipientEmail: "m4@example.com", SentAt: now},
		},
	}
	router := newAdminRouter(service)

	rec := getDeliveries(router, "/admin/deliveries")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listDeliveriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Stats.Total)
	assert.Equal(t, 2, resp.Stats.Opened)
	assert.Equal(t, 2, resp.Stats.Unopened)
	assert.Equal(t, "50.0", resp.Stats.OpenRate)
	require.Len(t, resp.Deliveries, 4)
	assert.Equal(t, "m1", resp.Deliveries[0].MessageID)
	assert.Equal(t, int64(3), resp.Deliveries[0].OpenedCount)
}

func TestListDeliveriesEmpty(t *testing.T) {
	router := newAdminRouter(&fakeListService{})

	rec := getDeliveries(router, "/admin/deliveries")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listDeliveriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Stats.Total)
	assert.Equal(t, "0", resp.Stats.OpenRate)
	assert.NotNil(t, resp.Deliveries)
	assert.Empty(t, resp.Deliveries)
}

func TestListDeliveriesFilterPassthrough(t *testing.T) {
	service := &fakeListService{}
	router := newAdminRouter(service)

	rec := getDeliveries(router, "/admin/deliveries?search=alice&status=opened&limit=25")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "alice", service.lastFilter.Search)
	assert.Equal(t, domain.DeliveryStatusOpened, service.lastFilter.Status)
	assert.Equal(t, 25, service.lastFilter.Limit)
}

func TestListDeliveriesDefaults(t *testing.T) {
	service := &fakeListService{}
	router := newAdminRouter(service)

	rec := getDeliveries(router, "/admin/deliveries")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, domain.DeliveryStatusAll, service.lastFilter.Status)
	assert.Equal(t, defaultListLimit, service.lastFilter.Limit)
}

func TestListDeliveriesRejectsInvalidStatus(t *testing.T) {
	service := &fakeListService{}
	router := newAdminRouter(service)

	rec := getDeliveries(router, "/admin/deliveries?status=bounced")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, service.listCalls)
}

func TestListDeliveriesRejectsInvalidLimit(t *testing.T) {
	service := &fakeListService{}
	router := newAdminRouter(service)

	for _, limit := range []string{"0", "-5", "1001", "abc"} {
		rec := getDeliveries(router, "/admin/deliveries?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
	assert.Equal(t, 0, service.listCalls)
}

func TestListDeliveriesStoreError(t *testing.T) {
	service := &fakeListService{err: errors.New("store unreachable")}
	router := newAdminRouter(service)

	rec := getDeliveries(router, "/admin/deliveries")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
