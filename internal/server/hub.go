package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/natelewis/whalewatch-sub003/internal/chart"
	"github.com/natelewis/whalewatch-sub003/internal/domain"
	"github.com/natelewis/whalewatch-sub003/internal/ports"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// BarFrame is the wire form of one bar.
type BarFrame struct {
	Timestamp int64   `json:"t"` // ms epoch
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

// StateFrame is the wire form of one computed chart state, broadcast to every
// connected client after each successful render.
type StateFrame struct {
	Symbol      string     `json:"symbol"`
	Interval    string     `json:"interval"`
	ViewStart   int        `json:"viewStart"`
	ViewEnd     int        `json:"viewEnd"`
	TotalBars   int        `json:"totalBars"`
	InnerWidth  float64    `json:"innerWidth"`
	InnerHeight float64    `json:"innerHeight"`
	YMin        float64    `json:"yMin"`
	YMax        float64    `json:"yMax"`
	Transform   string     `json:"transform"`
	Visible     []BarFrame `json:"visible"`
}

func frameFromState(state *chart.State) StateFrame {
	yMin, yMax := state.BaseYScale.Domain()
	f := StateFrame{
		ViewStart:   state.ViewStart,
		ViewEnd:     state.ViewEnd,
		TotalBars:   len(state.Bars),
		InnerWidth:  state.InnerWidth,
		InnerHeight: state.InnerHeight,
		YMin:        yMin,
		YMax:        yMax,
		Transform:   state.TransformString,
		Visible:     make([]BarFrame, 0, len(state.Visible)),
	}
	if len(state.Visible) > 0 {
		f.Symbol = state.Visible[0].Symbol
		f.Interval = state.Visible[0].Interval
	}
	for _, b := range state.Visible {
		f.Visible = append(f.Visible, barFrame(b))
	}
	return f
}

func barFrame(b *domain.Bar) BarFrame {
	return BarFrame{
		Timestamp: b.Timestamp.UnixMilli(),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}

// Hub fans rendered chart states out to WebSocket clients. It implements the
// renderer's drawing surface: every Draw becomes one broadcast frame, so a
// dashboard client receives exactly the states the render pipeline produced.
type Hub struct {
	logger     ports.Logger
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	mu        sync.RWMutex
	clipLen   int
	lastFrame []byte // replayed to clients that connect between renders
}

// NewHub creates a hub. Run must be started for it to serve clients.
func NewHub(logger ports.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// SetClipLength records the dataset length the next frame covers.
func (h *Hub) SetClipLength(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clipLen = n
}

// Draw marshals the state into a frame and queues it for broadcast.
func (h *Hub) Draw(state *chart.State) error {
	data, err := json.Marshal(frameFromState(state))
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.lastFrame = data
	h.mu.Unlock()

	select {
	case h.broadcast <- data:
	default:
		// A full queue means the fan-out loop is behind; dropping an
		// intermediate frame is preferable to blocking the render path.
		h.logger.Warn(context.Background(), "Broadcast queue full, dropping frame")
	}
	return nil
}

// LastFrame returns the most recent frame, or nil before the first render.
func (h *Hub) LastFrame() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastFrame
}

// Run owns the client set. Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info(ctx, "WebSocket client connected", map[string]interface{}{"totalClients": total})

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info(ctx, "WebSocket client disconnected", map[string]interface{}{"totalClients": total})

		case data := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Slow consumer; drop rather than stall the loop.
				}
			}
			h.mu.RUnlock()
		}
	}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// ServeWS upgrades the request and attaches the client to the hub. New
// clients immediately receive the last rendered frame.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "Failed to upgrade WebSocket connection", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, 64)}
	if last := h.LastFrame(); last != nil {
		c.send <- last
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Clients are consume-only; reads exist to process control frames and
	// detect disconnects.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
