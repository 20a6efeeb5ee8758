// Package network streams cage events to websocket spectators and serves
// recorded games over HTTP. Nothing here mutates a cage.
package network

import (
	"context"
	"sync"
	"time"

	"github.com/google/blockly-games-sub000/internal/events"
	"github.com/google/blockly-games-sub000/internal/platform/logger"
	"github.com/google/blockly-games-sub000/internal/platform/metrics"
)

// DefaultPollInterval is how often StartEventPoller drains the log.
const DefaultPollInterval = 200 * time.Millisecond

// Sink receives every drained event after it is broadcast.
type Sink func(seq int64, e events.Event)

// Hub maintains the set of active clients and broadcasts messages to them.
// It keeps every message of the current game so late joiners can rebuild
// the population from the first ADD.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	unregister chan *Client
	done       chan struct{}
	history    [][]byte
	mu         sync.Mutex
	logger     *logger.Logger
	metrics    *metrics.Collector
}

// NewHub initializes a new WebSocket Hub. mc may be nil.
func NewHub(log *logger.Logger, mc *metrics.Collector) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     log,
		metrics:    mc,
	}
}

// Run starts the Hub's main loop to handle disconnects and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket hub shutting down")
			h.mu.Lock()
			close(h.done)
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
				h.logger.Info("websocket client disconnected", "clients", len(h.clients))
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			h.history = append(h.history, message)
			for client := range h.clients {
				select {
				case client.send <- message:
					h.metrics.RecordWSMessage()
				default:
					// Too slow to keep up; the spectator has to reconnect.
					close(client.send)
					delete(h.clients, client)
					h.metrics.RecordWSConnection(-1)
					h.metrics.RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

// register adds c and hands it the history so far. Every later broadcast
// reaches c through its send channel. It reports false once the hub is shut down.
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return false
	default:
	}
	c.backlog = append([][]byte(nil), h.history...)
	h.clients[c] = true
	h.metrics.RecordWSConnection(1)
	h.logger.Info("websocket client connected", "clients", len(h.clients), "backlog", len(c.backlog))
	return true
}

func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Clients returns the number of connected spectators.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastEvent encodes an event and queues it for every client.
func (h *Hub) BroadcastEvent(seq int64, event events.Event) {
	payload, err := events.Marshal(seq, event)
	if err != nil {
		h.logger.Error("failed to encode event for broadcast", "seq", seq, "err", err)
		h.metrics.RecordWSError()
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}

// StartEventPoller drains eventLog every interval, broadcasts what it finds
// and passes it on to sinks. The poller is the log's only consumer. It
// stops after the cage's END_GAME has been forwarded or when ctx is done,
// and closes the returned channel on exit.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog, interval time.Duration, sinks ...Sink) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		pollInterval := time.NewTicker(interval)
		defer pollInterval.Stop()

		for {
			select {
			case <-ctx.Done():
				// Run has stopped too; only the sinks still get the tail.
				h.forward(eventLog, sinks, false)
				return
			case <-pollInterval.C:
				if h.forward(eventLog, sinks, true) {
					return
				}
			}
		}
	}()
	return done
}

// forward drains once and reports whether END_GAME went out.
func (h *Hub) forward(eventLog *events.EventLog, sinks []Sink, broadcast bool) bool {
	first, batch := eventLog.DrainFrom()
	ended := false
	for i, event := range batch {
		seq := first + int64(i)
		if broadcast {
			h.BroadcastEvent(seq, event)
		}
		for _, sink := range sinks {
			sink(seq, event)
		}
		if event.Type() == events.EventTypeEndGame {
			ended = true
		}
	}
	return ended
}
