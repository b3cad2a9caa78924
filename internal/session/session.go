// Package session drives one side of a call: local capture, the offer and
// answer exchange, trickled candidates and the link state.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpcall/internal/media"
)

// PeerConnection is the part of *webrtc.PeerConnection a session drives.
type PeerConnection interface {
	AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	RemoteDescription() *webrtc.SessionDescription
	SignalingState() webrtc.SignalingState
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	OnICECandidate(f func(*webrtc.ICECandidate))
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))
	OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	Close() error
}

// Signaler carries negotiation messages to the other participant.
type Signaler interface {
	SendOffer(desc webrtc.SessionDescription) error
	SendAnswer(desc webrtc.SessionDescription) error
	SendCandidate(candidate webrtc.ICECandidateInit) error
}

// Config configures a Session.
type Config struct {
	Role     Role
	Signaler Signaler
	Logger   *slog.Logger
}

// Session is one participant's side of a call. It is never reused: a new
// call needs a new Session.
//
// Negotiation steps run in order on a single goroutine. Handle* methods only
// queue work, and the queue stays parked until local capture is ready.
type Session struct {
	pc       PeerConnection
	role     Role
	signaler Signaler
	logger   *slog.Logger

	// captureMu serializes InitializeLocalCapture.
	captureMu sync.Mutex

	mu       sync.Mutex
	state    State
	status   Status
	stream   *media.Stream
	onChange func(Change)
	onTrack  func(*webrtc.TrackRemote)
	closed   bool

	// ops is the negotiation queue. ready opens once local capture exists.
	ops   []func()
	ready bool
	wake  chan struct{}

	// pending is the candidate buffer: remote candidates that arrived
	// before any remote description.
	pending []webrtc.ICECandidateInit

	done chan struct{}
}

// New wraps pc. The session registers its own pion callbacks.
func New(pc PeerConnection, cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		pc:       pc,
		role:     cfg.Role,
		signaler: cfg.Signaler,
		logger:   logger.With("role", cfg.Role.String()),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	pc.OnICECandidate(s.handleLocalCandidate)
	pc.OnConnectionStateChange(s.handleConnectionState)
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.mu.Lock()
		cb, closed := s.onTrack, s.closed
		s.mu.Unlock()
		if closed || cb == nil {
			return
		}
		cb(track)
	})

	go s.run()
	return s
}

// OnStateChange sets the callback for state, status and async errors.
func (s *Session) OnStateChange(f func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = f
}

// OnRemoteTrack sets the callback receiving the peer's media.
func (s *Session) OnRemoteTrack(f func(*webrtc.TrackRemote)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTrack = f
}

func (s *Session) Role() Role { return s.role }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LocalStream returns the captured stream, or nil before capture.
func (s *Session) LocalStream() *media.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// InitializeLocalCapture acquires the local stream from src and attaches its
// tracks. The stream is acquired once; later calls return it.
//
// On failure the session stays idle. A refused capture matches
// ErrMediaAccessDenied.
func (s *Session) InitializeLocalCapture(ctx context.Context, src media.Source) (*media.Stream, error) {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.stream != nil {
		stream := s.stream
		s.mu.Unlock()
		return stream, nil
	}
	s.mu.Unlock()

	stream, err := src.Acquire(ctx)
	if err != nil {
		return nil, NewError("initialize local capture", err)
	}

	if s.isClosed() {
		stream.Stop()
		return nil, ErrSessionClosed
	}
	for _, track := range stream.Tracks() {
		if _, err := s.pc.AddTrack(track); err != nil {
			stream.Stop()
			return nil, WrapError("initialize local capture", err, "add "+track.Kind().String()+" track")
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stream.Stop()
		return nil, ErrSessionClosed
	}
	s.stream = stream
	s.state = StateLocalStreamReady
	s.ready = true
	change := Change{State: s.state, Status: s.status}
	s.mu.Unlock()

	s.logger.Debug("Local capture ready", "video", stream.HasVideo(), "audio", stream.HasAudio())
	s.emit(change)
	s.signal()
	return stream, nil
}

// BeginAsInitiator queues the offer. The offer is made once local capture
// is ready, and only from local-stream-ready.
func (s *Session) BeginAsInitiator() error {
	if s.role != RoleInitiator {
		return ErrWrongRole
	}
	if !s.enqueue(s.offer) {
		return ErrSessionClosed
	}
	return nil
}

// BeginAsJoiner moves the session to negotiating, awaiting the offer.
func (s *Session) BeginAsJoiner() error {
	if s.role != RoleJoiner {
		return ErrWrongRole
	}
	ok := s.enqueue(func() {
		if s.State() == StateLocalStreamReady {
			s.setState(StateNegotiating)
		}
	})
	if !ok {
		return ErrSessionClosed
	}
	return nil
}

// HandleOffer queues a remote offer.
func (s *Session) HandleOffer(desc webrtc.SessionDescription) {
	s.enqueue(func() { s.answer(desc) })
}

// HandleAnswer queues a remote answer.
func (s *Session) HandleAnswer(desc webrtc.SessionDescription) {
	s.enqueue(func() { s.applyAnswer(desc) })
}

// HandleCandidate queues a remote candidate. It is applied at once if a
// remote description exists, otherwise buffered until one does.
func (s *Session) HandleCandidate(c webrtc.ICECandidateInit) {
	s.enqueue(func() { s.applyCandidate(c) })
}

// Close stops local capture and closes the peer connection. No callback
// starts after Close. It is safe to call more than once.
func (s *Session) Close() error {
	if !s.shutdown() {
		return nil
	}
	if err := s.pc.Close(); err != nil {
		return NewError("close peer connection", err)
	}
	return nil
}

// closeAsync is Close for pion callbacks, which must not wait on the peer
// connection they are called from.
func (s *Session) closeAsync() {
	if !s.shutdown() {
		return
	}
	go func() {
		if err := s.pc.Close(); err != nil {
			s.logger.Warn("Failed to close peer connection", "err", err)
		}
	}()
}

// shutdown marks the session closed and stops capture. It reports whether
// this call did the work.
func (s *Session) shutdown() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.state = StateClosed
	s.status = StatusDisconnected
	s.ops = nil
	s.pending = nil
	stream := s.stream
	close(s.done)
	s.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	s.logger.Debug("Session closed")
	return true
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	if s.closed || s.state == st {
		s.mu.Unlock()
		return
	}
	s.state = st
	change := Change{State: st, Status: s.status}
	s.mu.Unlock()

	s.emit(change)
}

func (s *Session) emit(c Change) {
	s.mu.Lock()
	cb, closed := s.onChange, s.closed
	s.mu.Unlock()
	if closed || cb == nil {
		return
	}
	cb(c)
}

// fail delivers err and closes the session.
func (s *Session) fail(err error) {
	s.logger.Warn("Session failed", "err", err)
	s.emit(Change{State: StateClosed, Status: StatusDisconnected, Err: err})
	s.Close()
}
