package ui

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrUnknownCommand is returned for browser commands the bridge does not
// handle.
var ErrUnknownCommand = errors.New("unknown command")

// Snapshotter provides the updates replayed to a joining client.
type Snapshotter interface {
	Snapshot() []Update
}

// CommandHandler executes browser commands.
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd Command) error
}

// HubConfig holds hub sizing.
type HubConfig struct {
	BroadcastBuffer int // queued broadcasts before new ones are dropped
	ClientBuffer    int // queued messages per client before it is dropped
	CheckOrigin     func(r *http.Request) bool
}

// DefaultHubConfig returns default hub sizing. Any origin may connect.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BroadcastBuffer: 256,
		ClientBuffer:    64,
	}
}

// Hub tracks connected browsers and broadcasts updates to them.
type Hub struct {
	cfg      HubConfig
	snapshot Snapshotter
	commands CommandHandler
	logger   *slog.Logger
	upgrader websocket.Upgrader

	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	count   atomic.Int64
	dropped atomic.Int64
	done    chan struct{}
}

// NewHub creates a Hub. commands may be nil, in which case every browser
// command fails with ErrUnknownCommand.
func NewHub(cfg HubConfig, snapshot Snapshotter, commands CommandHandler, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BroadcastBuffer <= 0 {
		cfg.BroadcastBuffer = DefaultHubConfig().BroadcastBuffer
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = DefaultHubConfig().ClientBuffer
	}

	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Hub{
		cfg:        cfg,
		snapshot:   snapshot,
		commands:   commands,
		logger:     logger,
		upgrader:   websocket.Upgrader{CheckOrigin: checkOrigin},
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, cfg.BroadcastBuffer),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.clients {
			h.remove(c)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int64(len(h.clients)))
			h.sendSnapshot(c)
			h.logger.Info("browser connected", "client_id", c.id, "clients", len(h.clients))

		case c := <-h.unregister:
			if h.clients[c] {
				h.remove(c)
				h.logger.Info("browser disconnected", "client_id", c.id, "clients", len(h.clients))
			}

		case payload := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					h.logger.Warn("browser too slow, dropping", "client_id", c.id)
					h.remove(c)
				}
			}
		}
	}
}

// Broadcast queues payload for every client. It never blocks; when the queue
// is full the payload is dropped.
func (h *Hub) Broadcast(_ context.Context, payload []byte) error {
	select {
	case h.broadcast <- payload:
	default:
		h.dropped.Add(1)
		h.logger.Warn("broadcast queue full, dropping update")
	}
	return nil
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Dropped returns how many broadcasts were discarded.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// ServeHTTP upgrades the request and attaches a new client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.cfg.ClientBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(context.WithoutCancel(r.Context()))
}

// remove must run on the Run goroutine.
func (h *Hub) remove(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Store(int64(len(h.clients)))
}

func (h *Hub) sendSnapshot(c *client) {
	if h.snapshot == nil {
		return
	}
	for _, u := range h.snapshot.Snapshot() {
		payload, err := json.Marshal(u)
		if err != nil {
			h.logger.Error("failed to encode snapshot", "type", u.Type, "error", err)
			continue
		}
		select {
		case c.send <- payload:
		default:
			return
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *client, cmd Command) {
	var err error
	if h.commands == nil {
		err = ErrUnknownCommand
	} else {
		err = h.commands.HandleCommand(ctx, cmd)
	}

	if err != nil {
		h.logger.Warn("browser command failed",
			"client_id", c.id,
			"command", cmd.Type,
			"error", err,
		)
	}
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
