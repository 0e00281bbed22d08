package tracking_http

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailtrack/internal/domain"
	"mailtrack/internal/repository/delivery_repo"
)

// fakeTrackingService mirrors the store's atomic open semantics in memory so
// the handler can be exercised under concurrency without Postgres.
type fakeTrackingService struct {
	mu              sync.Mutex
	records         map[string]*domain.DeliveryRecord
	recordOpenCalls int
	err             error
}

func newFakeTrackingService(messageIDs ...string) *fakeTrackingService {
	records := make(map[string]*domain.DeliveryRecord)
	for _, id := range messageIDs {
		records[id] = &domain.DeliveryRecord{
			MessageID: id,
			SentAt:    time.Now().UTC(),
		}
	}
	return &fakeTrackingService{records: records}
}

func (f *fakeTrackingService) RecordOpen(_ context.Context, messageID string, openedAt time.Time, userAgent, ipAddress string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordOpenCalls++
	if f.err != nil {
		return f.err
	}
	record, ok := f.records[messageID]
	if !ok {
		return delivery_repo.ErrDeliveryNotFound
	}
	if record.OpenedAt == nil {
		first := openedAt
		record.OpenedAt = &first
	}
	record.OpenedCount++
	last := openedAt
	record.LastOpenedAt = &last
	record.UserAgent = userAgent
	record.IPAddress = ipAddress
	return nil
}

func (f *fakeTrackingService) RegisterDelivery(_ context.Context, event *domain.EmailSentEvent) error {
	return nil
}

func (f *fakeTrackingService) GetDelivery(_ context.Context, messageID string) (*domain.DeliveryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[messageID]
	if !ok {
		return nil, delivery_repo.ErrDeliveryNotFound
	}
	return record, nil
}

func (f *fakeTrackingService) ListDeliveries(_ context.Context, _ domain.DeliveryFilter) ([]domain.DeliveryRecord, error) {
	return nil, nil
}

func (f *fakeTrackingService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordOpenCalls
}

func doTrackRequest(t *testing.T, handler *TrackingHandler, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.TrackOpen(rec, req)
	return rec
}

func assertPixelResponse(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.Equal(t, "0", rec.Header().Get("Expires"))
	assert.Equal(t, TrackingPixel(), rec.Body.Bytes())
}

func TestTrackingPixelIsOnePixelPNG(t *testing.T) {
	pixel := TrackingPixel()
	assert.Len(t, pixel, 43)

	img, err := png.Decode(bytes.NewReader(pixel))
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.Equal(t, 1, bounds.Dx())
	assert.Equal(t, 1, bounds.Dy())
}

func TestTrackOpenRecordsOpen(t *testing.T) {
	service := newFakeTrackingService("m1")
	handler := NewTrackingHandler(service, zap.NewNop())

	rec := doTrackRequest(t, handler, "/track?id=m1", map[string]string{
		"User-Agent":      "Thunderbird/115",
		"X-Forwarded-For": "198.51.100.7",
	})
	assertPixelResponse(t, rec)

	record, err := service.GetDelivery(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.OpenedCount)
	require.NotNil(t, record.OpenedAt)
	require.NotNil(t, record.LastOpenedAt)
	assert.Equal(t, "Thunderbird/115", record.UserAgent)
	assert.Equal(t, "198.51.100.7", record.IPAddress)
}

func TestTrackOpenRepeatedKeepsFirstOpenTimestamp(t *testing.T) {
	service := newFakeTrackingService("m1")
	handler := NewTrackingHandler(service, zap.NewNop())

	timestamps := []time.Time{
		time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
	}
	calls := 0
	handler.now = func() time.Time {
		ts := timestamps[calls]
		calls++
		return ts
	}

	assertPixelResponse(t, doTrackRequest(t, handler, "/track?id=m1", nil))
	assertPixelResponse(t, doTrackRequest(t, handler, "/track?id=m1", nil))

	record, err := service.GetDelivery(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), record.OpenedCount)
	assert.Equal(t, timestamps[0], *record.OpenedAt)
	assert.Equal(t, timestamps[1], *record.LastOpenedAt)
}

func TestTrackOpenWithoutIDSkipsStore(t *testing.T) {
	service := newFakeTrackingService("m1")
	handler := NewTrackingHandler(service, zap.NewNop())

	rec := doTrackRequest(t, handler, "/track", nil)
	assertPixelResponse(t, rec)
	assert.Equal(t, 0, service.calls())
}

func TestTrackOpenUnknownMessageStillReturnsPixel(t *testing.T) {
	service := newFakeTrackingService()
	handler := NewTrackingHandler(service, zap.NewNop())

	rec := doTrackRequest(t, handler, "/track?id=expired", nil)
	assertPixelResponse(t, rec)
	assert.Equal(t, 1, service.calls())
}

func TestTrackOpenStorageErrorFailsOpen(t *testing.T) {
	service := newFakeTrackingService("m1")
	service.err = errors.New("store unreachable")
	handler := NewTrackingHandler(service, zap.NewNop())

	rec := doTrackRequest(t, handler, "/track?id=m1", nil)
	assertPixelResponse(t, rec)
}

func TestTrackOpenDefaultsRequestMetadata(t *testing.T) {
	service := newFakeTrackingService("m1")
	handler := NewTrackingHandler(service, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/track?id=m1", nil)
	req.Header.Del("User-Agent")
	rec := httptest.NewRecorder()
	handler.TrackOpen(rec, req)

	record, err := service.GetDelivery(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", record.UserAgent)
	assert.Equal(t, "Unknown", record.IPAddress)
}

func TestTrackOpenConcurrentOpensLoseNothing(t *testing.T) {
	const openers = 50

	service := newFakeTrackingService("m1")
	handler := NewTrackingHandler(service, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < openers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := doTrackRequest(t, handler, "/track?id=m1", nil)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, TrackingPixel(), rec.Body.Bytes())
		}()
	}
	wg.Wait()

	record, err := service.GetDelivery(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(openers), record.OpenedCount)
	require.NotNil(t, record.OpenedAt)
	require.NotNil(t, record.LastOpenedAt)
	assert.False(t, record.OpenedAt.After(*record.LastOpenedAt))
}

func TestTrackRoutePreflight(t *testing.T) {
	router := chi.NewRouter()
	RegisterRoutes(router, newFakeTrackingService(), zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/track", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}
