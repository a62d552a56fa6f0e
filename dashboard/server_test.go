package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/internal/storage/events"
	"go.uber.org/zap"
)

type fakeState struct {
	state *domain.TraderState
}

func (f *fakeState) Load(traderID string) (*domain.TraderState, error) {
	if f.state == nil || f.state.TraderID != traderID {
		return nil, nil
	}
	return f.state, nil
}

type fakeEvents struct {
	records   []domain.LogEventRecord
	lastDate  string
	lastLimit int
}

func (f *fakeEvents) EventsByDate(date string, filter events.Filter) ([]domain.LogEvent, error) {
	f.lastDate = date
	f.lastLimit = filter.Limit
	out := make([]domain.LogEvent, 0)
	for _, r := range f.records {
		if r.Event.EventDate() == date && (filter.Type == "" || r.Event.Type == filter.Type) {
			out = append(out, r.Event)
		}
	}
	return out, nil
}

func (f *fakeEvents) Recent(filter events.Filter) ([]domain.LogEvent, error) {
	f.lastLimit = filter.Limit
	out := make([]domain.LogEvent, 0)
	for i := len(f.records) - 1; i >= 0 && len(out) < filter.Limit; i-- {
		out = append(out, f.records[i].Event)
	}
	return out, nil
}

func (f *fakeEvents) EventsAfter(index uint64) ([]domain.LogEventRecord, error) {
	out := make([]domain.LogEventRecord, 0)
	for _, r := range f.records {
		if r.Index > index {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer() (*Server, *fakeEvents) {
	gin.SetMode(gin.TestMode)

	ts := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	log := &fakeEvents{records: []domain.LogEventRecord{
		{Index: 1, Event: domain.LogEvent{Timestamp: ts, Type: domain.EventSignalCheck, Symbol: "TECL"}},
		{Index: 2, Event: domain.LogEvent{Timestamp: ts.Add(time.Minute), Type: domain.EventBuy, Symbol: "TECL",
			Price: decimal.NewNullDecimal(decimal.NewFromInt(74))}},
		{Index: 3, Event: domain.LogEvent{Timestamp: ts.AddDate(0, 0, 1), Type: domain.EventSignalCheck, Symbol: "TECL"}},
	}}
	state := &fakeState{state: &domain.TraderState{
		TraderID:      domain.DefaultTraderID,
		InPosition:    true,
		PurchasePrice: decimal.NewFromInt(74),
		PositionSize:  decimal.NewFromInt(128),
	}}

	s := NewServer(zap.NewNop(), ":0", "", state, log, []string{"https://app.example.com"})
	s.now = func() time.Time { return ts }
	s.pollInterval = 10 * time.Millisecond
	return s, log
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer()
	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_State(t *testing.T) {
	s, _ := newTestServer()
	rec := get(t, s.Handler(), "/api/state")
	require.Equal(t, http.StatusOK, rec.Code)

	var state domain.TraderState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.True(t, state.InPosition)
	assert.True(t, state.PositionSize.Equal(decimal.NewFromInt(128)))

	s.TraderID = "other"
	rec = get(t, s.Handler(), "/api/state")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_EventsByDate(t *testing.T) {
	s, log := newTestServer()
	h := s.Handler()

	rec := get(t, h, "/api/events")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-03-04", log.lastDate)
	assert.Equal(t, defaultLimit, log.lastLimit)

	var body struct {
		Date   string            `json:"date"`
		Count  int               `json:"count"`
		Events []domain.LogEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	rec = get(t, h, "/api/events?date=2024-03-04&type=buy&limit=5000")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, domain.EventBuy, body.Events[0].Type)
	assert.Equal(t, maxLimit, log.lastLimit)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/events?date=03/04/2024").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/events?type=HOLD").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/events?limit=0").Code)
}

func TestServer_RecentEvents(t *testing.T) {
	s, _ := newTestServer()
	rec := get(t, s.Handler(), "/api/events/recent?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count  int               `json:"count"`
		Events []domain.LogEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "2024-03-05", body.Events[0].EventDate())
}

func TestServer_CORS(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_EventStream(t *testing.T) {
	s, _ := newTestServer()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events/stream", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "1")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "id: 2\n")
	assert.Contains(t, body, "id: 3\n")
	assert.NotContains(t, body, "id: 1\n")
	assert.Contains(t, body, "event: log")
}

func TestParseLastEventID(t *testing.T) {
	assert.Equal(t, uint64(7), parseLastEventID("7", "3"))
	assert.Equal(t, uint64(3), parseLastEventID("", "3"))
	assert.Equal(t, uint64(0), parseLastEventID("x", ""))
}
