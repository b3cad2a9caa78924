package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.viam.com/test"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/metrics"
	"github.com/BioHazard786/Warpcall/internal/protocol"
	"github.com/BioHazard786/Warpcall/internal/relay"
)

func testRelayConfig() *config.Relay {
	return &config.Relay{
		Listen:          "127.0.0.1:0",
		RoomIDs:         config.RoomIDsUUID,
		MaxMessageBytes: 64 * 1024,
		SendQueue:       16,
	}
}

// startRelay serves a relay on a loopback port and returns its address.
func startRelay(t *testing.T, cfg *config.Relay) string {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	reg := prometheus.NewRegistry()
	m, err := metrics.NewRelay(reg)
	test.That(t, err, test.ShouldBeNil)

	hub := relay.NewHub(relay.HubConfig{Metrics: m, Logger: logger})
	s := New(cfg, hub, reg, logger)

	ln, err := net.Listen("tcp", cfg.Listen)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		test.That(t, <-errCh, test.ShouldBeNil)
	})
	return ln.Addr().String()
}

type testPeer struct {
	t     *testing.T
	conn  *websocket.Conn
	codec protocol.Codec
	id    string
}

func dialPeer(t *testing.T, addr, codec string) *testPeer {
	t.Helper()

	c, err := protocol.CodecByName(codec)
	test.That(t, err, test.ShouldBeNil)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws?codec="+codec, nil)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { conn.Close() })

	p := &testPeer{t: t, conn: conn, codec: c}
	hello := p.read()
	test.That(t, hello.Type, test.ShouldEqual, protocol.TypeHello)

	var payload protocol.HelloPayload
	test.That(t, hello.DecodePayload(&payload), test.ShouldBeNil)
	test.That(t, payload.ConnID, test.ShouldNotBeEmpty)
	p.id = payload.ConnID
	return p
}

func (p *testPeer) write(msg *protocol.Message) {
	p.t.Helper()
	data, err := p.codec.Marshal(msg)
	test.That(p.t, err, test.ShouldBeNil)
	test.That(p.t, p.conn.WriteMessage(p.codec.FrameType(), data), test.ShouldBeNil)
}

func (p *testPeer) read() *protocol.Message {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, data, err := p.conn.ReadMessage()
	test.That(p.t, err, test.ShouldBeNil)
	test.That(p.t, frame, test.ShouldEqual, p.codec.FrameType())

	var msg protocol.Message
	test.That(p.t, p.codec.Unmarshal(data, &msg), test.ShouldBeNil)
	return &msg
}

func (p *testPeer) readError() protocol.ErrorPayload {
	p.t.Helper()
	msg := p.read()
	test.That(p.t, msg.Type, test.ShouldEqual, protocol.TypeError)

	var payload protocol.ErrorPayload
	test.That(p.t, msg.DecodePayload(&payload), test.ShouldBeNil)
	return payload
}

func (p *testPeer) createRoom() string {
	p.t.Helper()
	p.write(&protocol.Message{Type: protocol.TypeCreateRoom})
	msg := p.read()
	test.That(p.t, msg.Type, test.ShouldEqual, protocol.TypeRoomCreated)
	test.That(p.t, msg.RoomID, test.ShouldNotBeEmpty)
	return msg.RoomID
}

func TestRoomLifecycle(t *testing.T) {
	addr := startRelay(t, testRelayConfig())

	alice := dialPeer(t, addr, protocol.CodecJSON)
	bob := dialPeer(t, addr, protocol.CodecMsgpack)
	carol := dialPeer(t, addr, protocol.CodecJSON)

	room := alice.createRoom()

	bob.write(&protocol.Message{Type: protocol.TypeJoinRoom, RoomID: room})
	joined := bob.read()
	test.That(t, joined.Type, test.ShouldEqual, protocol.TypeRoomJoined)
	test.That(t, joined.RoomID, test.ShouldEqual, room)

	peer := alice.read()
	test.That(t, peer.Type, test.ShouldEqual, protocol.TypePeerJoined)
	test.That(t, peer.From, test.ShouldEqual, bob.id)

	carol.write(&protocol.Message{Type: protocol.TypeJoinRoom, RoomID: room})
	test.That(t, carol.readError().Code, test.ShouldEqual, protocol.CodeRoomFull)

	carol.write(&protocol.Message{Type: protocol.TypeJoinRoom, RoomID: "no-such-room"})
	test.That(t, carol.readError().Code, test.ShouldEqual, protocol.CodeRoomNotFound)

	// Disconnecting tells the remaining participant.
	bob.conn.Close()
	left := alice.read()
	test.That(t, left.Type, test.ShouldEqual, protocol.TypePeerLeft)
	test.That(t, left.From, test.ShouldEqual, bob.id)
	test.That(t, left.RoomID, test.ShouldEqual, room)
}

func TestRelayAcrossCodecs(t *testing.T) {
	addr := startRelay(t, testRelayConfig())

	alice := dialPeer(t, addr, protocol.CodecJSON)
	bob := dialPeer(t, addr, protocol.CodecMsgpack)

	room := alice.createRoom()
	bob.write(&protocol.Message{Type: protocol.TypeJoinRoom, RoomID: room})
	test.That(t, bob.read().Type, test.ShouldEqual, protocol.TypeRoomJoined)
	test.That(t, alice.read().Type, test.ShouldEqual, protocol.TypePeerJoined)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0\r\n"}`)
	alice.write(&protocol.Message{Type: protocol.TypeOffer, RoomID: room, Payload: offer})

	got := bob.read()
	test.That(t, got.Type, test.ShouldEqual, protocol.TypeOffer)
	test.That(t, got.From, test.ShouldEqual, alice.id)
	test.That(t, got.RoomID, test.ShouldEqual, room)
	test.That(t, string(got.Payload), test.ShouldEqual, string(offer))

	// Room defaults to the sender's current room.
	candidate := json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 9 typ host"}`)
	bob.write(&protocol.Message{Type: protocol.TypeCandidate, Payload: candidate})
	got = alice.read()
	test.That(t, got.Type, test.ShouldEqual, protocol.TypeCandidate)
	test.That(t, got.From, test.ShouldEqual, bob.id)
	test.That(t, string(got.Payload), test.ShouldEqual, string(candidate))
}

func TestRequestErrors(t *testing.T) {
	addr := startRelay(t, testRelayConfig())
	alice := dialPeer(t, addr, protocol.CodecJSON)

	alice.write(&protocol.Message{Type: protocol.TypeOffer, RoomID: "r", Payload: json.RawMessage(`{}`)})
	test.That(t, alice.readError().Code, test.ShouldEqual, protocol.CodeNotInRoom)

	alice.createRoom()
	alice.write(&protocol.Message{Type: protocol.TypeAnswer, Payload: json.RawMessage(`{}`)})
	test.That(t, alice.readError().Code, test.ShouldEqual, protocol.CodeNoPeer)

	alice.write(&protocol.Message{Type: "signal"})
	test.That(t, alice.readError().Code, test.ShouldEqual, protocol.CodeUnsupportedKind)

	test.That(t, alice.conn.WriteMessage(websocket.TextMessage, []byte("{not json")), test.ShouldBeNil)
	test.That(t, alice.readError().Code, test.ShouldEqual, protocol.CodeBadRequest)
}

func TestRateLimit(t *testing.T) {
	cfg := testRelayConfig()
	cfg.MessagesPerSecond = 1
	addr := startRelay(t, cfg)

	alice := dialPeer(t, addr, protocol.CodecJSON)
	alice.write(&protocol.Message{Type: protocol.TypeLeaveRoom})
	alice.write(&protocol.Message{Type: protocol.TypeLeaveRoom})
	test.That(t, alice.readError().Code, test.ShouldEqual, protocol.CodeRateLimited)
}

func TestUnknownCodecRejected(t *testing.T) {
	addr := startRelay(t, testRelayConfig())

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws?codec=xml", nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, resp, test.ShouldNotBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)
}

func TestOriginAllowList(t *testing.T) {
	cfg := testRelayConfig()
	cfg.AllowedOrigins = []string{"https://warpcall.example"}
	addr := startRelay(t, cfg)

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", header)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusForbidden)

	header.Set("Origin", "https://warpcall.example")
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", header)
	test.That(t, err, test.ShouldBeNil)
	conn.Close()
}

func TestHealthAndMetrics(t *testing.T) {
	addr := startRelay(t, testRelayConfig())
	alice := dialPeer(t, addr, protocol.CodecJSON)
	alice.createRoom()

	resp, err := http.Get("http://" + addr + "/health")
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)

	resp, err = http.Get("http://" + addr + "/metrics")
	test.That(t, err, test.ShouldBeNil)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(body), test.ShouldContainSubstring, "warpcall_relay_rooms 1")
	test.That(t, string(body), test.ShouldContainSubstring, "warpcall_relay_connections 1")
}
