package session

import (
	"github.com/pion/webrtc/v4"
)

// offer runs on the op goroutine.
func (s *Session) offer() {
	if st := s.State(); st != StateLocalStreamReady {
		s.logger.Debug("Ignoring begin", "state", st.String(), "err", ErrStaleNegotiation)
		return
	}

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		s.fail(NewError("create offer", err))
		return
	}
	if s.isClosed() {
		return
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		s.fail(NewError("set local description", err))
		return
	}
	if s.isClosed() {
		return
	}

	s.setState(StateNegotiating)
	if err := s.signaler.SendOffer(offer); err != nil {
		s.fail(NewError("send offer", err))
	}
}

// answer applies a remote offer and replies. Joiner only.
func (s *Session) answer(offer webrtc.SessionDescription) {
	if s.role != RoleJoiner {
		s.logger.Debug("Ignoring offer", "err", ErrStaleNegotiation)
		return
	}
	if s.isClosed() {
		return
	}

	if err := s.rollback(); err != nil {
		s.fail(NewError("rollback", err))
		return
	}

	if err := s.pc.SetRemoteDescription(offer); err != nil {
		s.fail(NewError("set remote description", err))
		return
	}
	if s.isClosed() {
		return
	}
	s.drain()
	if s.State() == StateLocalStreamReady {
		s.setState(StateNegotiating)
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		s.fail(NewError("create answer", err))
		return
	}
	if s.isClosed() {
		return
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		s.fail(NewError("set local description", err))
		return
	}
	if s.isClosed() {
		return
	}

	if err := s.signaler.SendAnswer(answer); err != nil {
		s.fail(NewError("send answer", err))
	}
}

// rollback returns a connection that is mid-negotiation to stable so a new
// offer can be applied.
func (s *Session) rollback() error {
	rb := webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}

	switch st := s.pc.SignalingState(); st {
	case webrtc.SignalingStateStable:
		return nil
	case webrtc.SignalingStateHaveLocalOffer, webrtc.SignalingStateHaveLocalPranswer:
		s.logger.Debug("Rolling back local description", "signaling", st.String())
		return s.pc.SetLocalDescription(rb)
	default:
		s.logger.Debug("Rolling back remote description", "signaling", st.String())
		return s.pc.SetRemoteDescription(rb)
	}
}

// applyAnswer applies a remote answer. Initiator only, and only while our
// offer is outstanding.
func (s *Session) applyAnswer(answer webrtc.SessionDescription) {
	if s.role != RoleInitiator {
		s.logger.Debug("Ignoring answer", "err", ErrStaleNegotiation)
		return
	}
	if s.isClosed() {
		return
	}
	if st := s.pc.SignalingState(); st != webrtc.SignalingStateHaveLocalOffer {
		s.logger.Debug("Ignoring answer", "signaling", st.String(), "err", ErrStaleNegotiation)
		return
	}

	if err := s.pc.SetRemoteDescription(answer); err != nil {
		s.fail(NewError("set remote description", err))
		return
	}
	if s.isClosed() {
		return
	}
	s.drain()
}

func (s *Session) applyCandidate(c webrtc.ICECandidateInit) {
	if s.isClosed() {
		return
	}
	if s.pc.RemoteDescription() == nil {
		s.mu.Lock()
		s.pending = append(s.pending, c)
		s.mu.Unlock()
		return
	}
	if err := s.pc.AddICECandidate(c); err != nil {
		s.logger.Warn("Failed to add ICE candidate", "err", err)
	}
}

// drain applies the buffered candidates in arrival order and empties the
// buffer. Draining an empty buffer does nothing.
func (s *Session) drain() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, c := range pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			s.logger.Warn("Failed to add buffered ICE candidate", "err", err)
		}
	}
}

// handleLocalCandidate trickles every local candidate as soon as pion finds it.
func (s *Session) handleLocalCandidate(c *webrtc.ICECandidate) {
	if c == nil || s.isClosed() {
		return
	}
	if err := s.signaler.SendCandidate(c.ToJSON()); err != nil {
		s.logger.Warn("Failed to send ICE candidate", "err", err)
	}
}

func (s *Session) handleConnectionState(state webrtc.PeerConnectionState) {
	s.logger.Debug("Connection state changed", "state", state.String())

	switch state {
	case webrtc.PeerConnectionStateConnecting:
		s.setStatus(StatusConnecting, nil)

	case webrtc.PeerConnectionStateConnected:
		st := StateConnected
		s.setStatus(StatusConnected, &st)

	case webrtc.PeerConnectionStateDisconnected:
		// The link may recover on its own.
		s.logger.Info("Transient disconnect")

	case webrtc.PeerConnectionStateFailed:
		if s.isClosed() {
			return
		}
		s.logger.Warn("Connection failed")
		s.emit(Change{State: StateClosed, Status: StatusDisconnected, Err: ErrConnectivityFailed})
		s.closeAsync()

	case webrtc.PeerConnectionStateClosed:
		if s.isClosed() {
			return
		}
		s.emit(Change{State: StateClosed, Status: StatusDisconnected})
		s.closeAsync()
	}
}

func (s *Session) setStatus(status Status, state *State) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	changed := s.status != status
	s.status = status
	if state != nil && s.state != *state {
		s.state = *state
		changed = true
	}
	change := Change{State: s.state, Status: s.status}
	s.mu.Unlock()

	if changed {
		s.emit(change)
	}
}
