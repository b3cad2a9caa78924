package relay

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/BioHazard786/Warpcall/internal/metrics"
	"github.com/BioHazard786/Warpcall/internal/protocol"
)

// HubConfig configures a Hub.
type HubConfig struct {
	// IDs generates room identifiers. Defaults to UUIDs.
	IDs     IDGenerator
	Metrics *metrics.Relay
	Logger  *slog.Logger
}

type inbound struct {
	client *Client
	msg    *protocol.Message

	// err is a request error detected by the read pump.
	err error
}

// Hub is the central brain of the relay. A single goroutine owns the
// connected clients and dispatches their messages to the Registry.
type Hub struct {
	registry *Registry
	clients  map[ConnID]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	done       chan struct{}

	metrics *metrics.Relay
	logger  *slog.Logger
}

// NewHub creates a Hub with an empty Registry.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IDs == nil {
		cfg.IDs = UUIDs()
	}

	h := &Hub{
		clients:    make(map[ConnID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		done:       make(chan struct{}),
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
	h.registry = NewRegistry(h,
		WithIDGenerator(cfg.IDs),
		WithMetrics(cfg.Metrics),
		WithLogger(cfg.Logger),
	)
	return h
}

// Run starts the hub's main processing loop. It returns when ctx is
// cancelled, after closing every client's send queue.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for id, c := range h.clients {
				delete(h.clients, id)
				close(c.send)
				h.metrics.ConnectionClosed()
			}
			return nil

		case c := <-h.register:
			c.ID = ConnID(uuid.NewString())
			h.clients[c.ID] = c
			h.metrics.ConnectionOpened()
			h.logger.Info("Client registered", "conn", c.ID, "addr", c.conn.RemoteAddr(), "codec", c.codec.Name())

			hello, _ := protocol.NewMessage(protocol.TypeHello, protocol.HelloPayload{ConnID: string(c.ID)})
			h.send(c, hello)

		case c := <-h.unregister:
			if _, ok := h.clients[c.ID]; !ok {
				continue
			}
			h.logger.Info("Client unregistered", "conn", c.ID)
			h.evict(c)

		case in := <-h.inbound:
			if _, ok := h.clients[in.client.ID]; !ok {
				continue
			}
			if in.err != nil {
				h.send(in.client, errorMessage(in.err))
				continue
			}
			h.dispatch(in.client, in.msg)
		}
	}
}

func (h *Hub) dispatch(c *Client, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeCreateRoom:
		id := h.registry.CreateRoom(c.ID)
		h.send(c, &protocol.Message{Type: protocol.TypeRoomCreated, RoomID: string(id)})

	case protocol.TypeJoinRoom:
		id := RoomID(msg.RoomID)
		if err := h.registry.JoinRoom(id, c.ID); err != nil {
			h.logger.Info("Room join failed", "room", id, "conn", c.ID, "err", err)
			h.metrics.JoinRejected(ErrorCode(err))
			h.send(c, errorMessage(err))
			return
		}
		h.send(c, &protocol.Message{Type: protocol.TypeRoomJoined, RoomID: string(id)})

	case protocol.TypeLeaveRoom:
		h.registry.Leave(c.ID)

	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeCandidate:
		room := RoomID(msg.RoomID)
		if room == "" {
			room, _ = h.registry.RoomOf(c.ID)
		}
		if err := h.registry.Relay(msg.Type, room, msg.Payload, c.ID); err != nil {
			h.logger.Debug("Signal failed", "kind", msg.Type, "conn", c.ID, "err", err)
			h.send(c, errorMessage(err))
		}

	default:
		h.logger.Debug("Unknown message type", "type", msg.Type, "conn", c.ID)
		h.send(c, errorMessage(ErrUnsupportedKind))
	}
}

// Notify queues msg for connection to. It is called by the Registry while
// the hub goroutine dispatches, so it touches hub state without locking.
func (h *Hub) Notify(to ConnID, msg *protocol.Message) {
	c, ok := h.clients[to]
	if !ok {
		return
	}
	h.send(c, msg)
}

// send never blocks the hub. A client whose queue is full cannot keep up
// with its call, so it is evicted and its peer sees peer-left.
func (h *Hub) send(c *Client, msg *protocol.Message) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.metrics.Dropped()
		h.logger.Warn("Send queue full, evicting client", "conn", c.ID, "type", msg.Type)
		h.evict(c)
	}
}

// evict removes c from the hub and from its room. Closing send makes the
// write pump close the websocket, after which the read pump's unregister is
// a no-op.
func (h *Hub) evict(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.send)
	h.metrics.ConnectionClosed()
	h.registry.Leave(c.ID)
}

// Register hands a new client to the hub. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) handle(in inbound) bool {
	select {
	case h.inbound <- in:
		return true
	case <-h.done:
		return false
	}
}
