package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natelewis/whalewatch-sub003/config"
	"github.com/natelewis/whalewatch-sub003/internal/app"
	"github.com/natelewis/whalewatch-sub003/internal/chart"
	"github.com/natelewis/whalewatch-sub003/internal/domain"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type staticProvider struct {
	bars []*domain.Bar
}

func (p *staticProvider) GetBars(ctx context.Context, symbol, interval string, limit int) ([]*domain.Bar, error) {
	if len(p.bars) > limit {
		return p.bars[len(p.bars)-limit:], nil
	}
	return p.bars, nil
}

func (p *staticProvider) GetBarsRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Bar, error) {
	return nil, nil
}

func (p *staticProvider) StreamBars(ctx context.Context, symbol, interval string, handler func(bar *domain.Bar), errHandler func(err error)) (<-chan struct{}, chan<- struct{}, error) {
	done := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		<-stop
		close(done)
	}()
	return done, stop, nil
}

type nilRepo struct {
	mu   sync.Mutex
	bars []*domain.Bar
}

func (r *nilRepo) UpsertBars(ctx context.Context, bars []*domain.Bar) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bars = append(r.bars, bars...)
	return len(bars), nil
}

func (r *nilRepo) LatestBars(ctx context.Context, symbol, interval string, limit int) ([]*domain.Bar, error) {
	return nil, nil
}

func (r *nilRepo) BarsBefore(ctx context.Context, symbol, interval string, ts time.Time, limit int) ([]*domain.Bar, error) {
	return nil, nil
}

func (r *nilRepo) BarsAfter(ctx context.Context, symbol, interval string, ts time.Time, limit int) ([]*domain.Bar, error) {
	return nil, nil
}

func (r *nilRepo) CountBars(ctx context.Context, symbol, interval string) (int64, error) {
	return 0, nil
}

func makeBars(n int) []*domain.Bar {
	base := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]*domain.Bar, n)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = &domain.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Symbol:    "ETHUSDT",
			Interval:  "1m",
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price + 0.5,
			Volume:    10,
		}
	}
	return bars
}

func testServer(t *testing.T, bars []*domain.Bar) (*Server, *Hub, *app.ChartSession) {
	t.Helper()
	log := noopLogger{}
	cfg := &config.Config{
		Symbol:          "ETHUSDT",
		Interval:        "1m",
		ChartWindowSize: 20,
		EdgeLoadChunk:   100,
	}

	calc, err := chart.NewCalculator(chart.Config{WindowSize: cfg.ChartWindowSize, Logger: log})
	require.NoError(t, err)
	loader, err := chart.NewEdgeLoader(chart.EdgeLoaderConfig{Logger: log})
	require.NoError(t, err)

	hub := NewHub(log)
	renderer, err := chart.NewRenderer(chart.RendererConfig{
		Calculator: calc,
		Surface:    hub,
		Loader:     loader,
		Logger:     log,
	})
	require.NoError(t, err)

	session, err := app.NewChartSession(cfg, log, &staticProvider{bars: bars}, &nilRepo{}, renderer, calc)
	require.NoError(t, err)

	srv, err := New(Config{Addr: ":0", Logger: log, Session: session, Hub: hub})
	require.NoError(t, err)
	return srv, hub, session
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := testServer(t, makeBars(50))

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestStateBeforeFirstRender(t *testing.T) {
	srv, _, _ := testServer(t, makeBars(50))

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStateAfterBootstrap(t *testing.T) {
	srv, _, session := testServer(t, makeBars(50))
	require.NoError(t, session.Bootstrap(context.Background()))

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var frame StateFrame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
	assert.Equal(t, "ETHUSDT", frame.Symbol)
	assert.Equal(t, 50, frame.TotalBars)
	assert.Equal(t, 49, frame.ViewEnd)
	assert.Len(t, frame.Visible, 20)
}

func TestBarsEndpointHonorsLimit(t *testing.T) {
	srv, _, session := testServer(t, makeBars(50))
	require.NoError(t, session.Bootstrap(context.Background()))

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bars?limit=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var frames []BarFrame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frames))
	assert.Len(t, frames, 7)
}

func TestViewEndpointSkipsViewport(t *testing.T) {
	srv, _, session := testServer(t, makeBars(100))
	require.NoError(t, session.Bootstrap(context.Background()))

	body, _ := json.Marshal(viewRequest{Mode: "skip", ViewStart: 30, ViewEnd: 49})
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/view", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var frame StateFrame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
	assert.Equal(t, 30, frame.ViewStart)
	assert.Equal(t, 49, frame.ViewEnd)
}

func TestViewEndpointRejectsUnknownMode(t *testing.T) {
	srv, _, session := testServer(t, makeBars(100))
	require.NoError(t, session.Bootstrap(context.Background()))

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/view", strings.NewReader(`{"mode":"zoom"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTradesEndpointWithoutRepo(t *testing.T) {
	srv, _, _ := testServer(t, makeBars(10))

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trades?symbol=ETHUSDT", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocketReceivesFrames(t *testing.T) {
	srv, hub, session := testServer(t, makeBars(50))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	// Bootstrap renders once; the frame is retained for late joiners.
	require.NoError(t, session.Bootstrap(context.Background()))
	require.NotNil(t, hub.LastFrame())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame StateFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "ETHUSDT", frame.Symbol)
	assert.Equal(t, 50, frame.TotalBars)

	// A navigation render broadcasts a fresh frame to connected clients.
	require.NoError(t, session.SkipTo(context.Background(), 10, 29))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, 10, frame.ViewStart)
	assert.Equal(t, 29, frame.ViewEnd)
}
