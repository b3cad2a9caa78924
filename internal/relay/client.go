package relay

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/BioHazard786/Warpcall/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// DefaultMaxMessageBytes is enough for WebRTC SDP messages.
	DefaultMaxMessageBytes = 64 * 1024

	DefaultSendQueue = 256
)

// ClientOptions bounds a single connection.
type ClientOptions struct {
	SendQueue         int
	MaxMessageBytes   int64
	MessagesPerSecond int
}

// Client is a wrapper for a single websocket connection.
type Client struct {
	// ID is assigned by the hub on registration. Only the hub goroutine reads it.
	ID ConnID

	hub   *Hub
	conn  *websocket.Conn
	codec protocol.Codec

	// send is a buffered channel for all outbound messages. The hub writes
	// to it and WritePump drains it onto the websocket.
	send chan *protocol.Message

	limiter         *rate.Limiter
	maxMessageBytes int64
	logger          *slog.Logger
}

// NewClient wraps conn. Messages are framed with codec in both directions.
func NewClient(hub *Hub, conn *websocket.Conn, codec protocol.Codec, opts ClientOptions) *Client {
	if opts.SendQueue <= 0 {
		opts.SendQueue = DefaultSendQueue
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}

	c := &Client{
		hub:             hub,
		conn:            conn,
		codec:           codec,
		send:            make(chan *protocol.Message, opts.SendQueue),
		maxMessageBytes: opts.MaxMessageBytes,
		logger:          hub.logger.With("addr", conn.RemoteAddr().String()),
	}
	if opts.MessagesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.MessagesPerSecond)
	}
	return c
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Websocket read failed", "err", err)
			}
			return
		}

		in := inbound{client: c}
		if c.limiter != nil && !c.limiter.Allow() {
			in.err = ErrRateLimited
		} else {
			var msg protocol.Message
			if err := c.codec.Unmarshal(data, &msg); err != nil {
				in.err = fmt.Errorf("%w: %v", ErrBadRequest, err)
			} else {
				in.msg = &msg
			}
		}

		if !c.hub.handle(in) {
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := c.codec.Marshal(msg)
			if err != nil {
				c.logger.Error("Failed to encode message", "type", msg.Type, "err", err)
				continue
			}
			if err := c.conn.WriteMessage(c.codec.FrameType(), data); err != nil {
				c.logger.Warn("Websocket write failed", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
