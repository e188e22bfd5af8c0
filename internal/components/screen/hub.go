package screen

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type (
	// notification is the frame pushed to the page, which shows it with window.alert
	notification struct {
		Message string `json:"message"`
	}

	// Hub delivers messages to every page connected on /notifications
	Hub struct {
		ctx    context.Context
		cancel context.CancelFunc

		clients map[*client]bool

		register   chan *client
		unregister chan *client
		messages   chan string
		stats      chan chan int

		upgrader websocket.Upgrader
		logger   zerolog.Logger
	}

	client struct {
		hub  *Hub
		conn *websocket.Conn
		send chan []byte
	}
)

func newHub(logger zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		ctx:    ctx,
		cancel: cancel,

		clients: make(map[*client]bool),

		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		messages:   make(chan string, 64),
		stats:      make(chan chan int),

		// the shell only serves its own page
		upgrader: websocket.Upgrader{},
		logger:   logger.With().Str("component", "hub").Logger(),
	}
}

// NewHub creates a Hub that runs for the lifetime of the fx application
func NewHub(lc fx.Lifecycle, logger zerolog.Logger) *Hub {
	h := newHub(logger)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go h.Run()
			return nil
		},
		OnStop: func(context.Context) error {
			h.Stop()
			return nil
		},
	})
	return h
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Debug().Msg("Hub shutting down")
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.logger.Debug().Int("clients", len(h.clients)).Msg("Page connected")

		case c := <-h.unregister:
			if !h.clients[c] {
				continue
			}
			delete(h.clients, c)
			close(c.send)
			h.logger.Debug().Int("clients", len(h.clients)).Msg("Page disconnected")

		case msg := <-h.messages:
			h.deliver(msg)

		case reply := <-h.stats:
			reply <- len(h.clients)
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

// Connected returns the number of pages currently listening
func (h *Hub) Connected() int {
	reply := make(chan int, 1)
	select {
	case h.stats <- reply:
		return <-reply
	case <-h.ctx.Done():
		return 0
	}
}

// Show queues message for every connected page
func (h *Hub) Show(message string) {
	select {
	case h.messages <- message:
	case <-h.ctx.Done():
		h.logger.Warn().Str("message", message).Msg("Hub stopped, dropping notification")
	}
}

func (h *Hub) deliver(message string) {
	if len(h.clients) == 0 {
		h.logger.Warn().Str("message", message).Msg("No page connected, dropping notification")
		return
	}

	frame, err := json.Marshal(notification{Message: message})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode notification")
		return
	}

	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.logger.Warn().Msg("Page not reading notifications, disconnecting it")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeWS upgrades the request and streams notifications to the page
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, 16)}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only watches for the page going away; pages never send anything meaningful
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Msg("Page closed the connection unexpectedly")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
