package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

var errNoRemoteDescription = errors.New("no remote description")

// fakePC models the signaling state machine of a peer connection.
type fakePC struct {
	mu         sync.Mutex
	calls      []string
	signaling  webrtc.SignalingState
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	tracks     int
	offers     int
	closed     chan struct{}

	createOfferErr error

	onICE   func(*webrtc.ICECandidate)
	onState func(webrtc.PeerConnectionState)
	onTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
}

func newFakePC() *fakePC {
	return &fakePC{signaling: webrtc.SignalingStateStable, closed: make(chan struct{})}
}

func (f *fakePC) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakePC) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePC) AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AddTrack:" + track.Kind().String())
	f.tracks++
	return nil, nil
}

func (f *fakePC) CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateOffer")
	if f.createOfferErr != nil {
		return webrtc.SessionDescription{}, f.createOfferErr
	}
	f.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", f.offers)}, nil
}

func (f *fakePC) CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateAnswer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-to-" + f.remote.SDP}, nil
}

func (f *fakePC) SetLocalDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetLocalDescription:" + desc.Type.String())
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		f.signaling = webrtc.SignalingStateHaveLocalOffer
	case webrtc.SDPTypeAnswer, webrtc.SDPTypeRollback:
		f.signaling = webrtc.SignalingStateStable
	}
	return nil
}

func (f *fakePC) SetRemoteDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetRemoteDescription:" + desc.Type.String())
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		if f.signaling != webrtc.SignalingStateStable {
			return errors.New("offer while not stable")
		}
		f.signaling = webrtc.SignalingStateHaveRemoteOffer
	case webrtc.SDPTypeAnswer:
		if f.signaling != webrtc.SignalingStateHaveLocalOffer {
			return errors.New("answer without local offer")
		}
		f.signaling = webrtc.SignalingStateStable
	case webrtc.SDPTypeRollback:
		f.signaling = webrtc.SignalingStateStable
		return nil
	}
	d := desc
	f.remote = &d
	return nil
}

func (f *fakePC) RemoteDescription() *webrtc.SessionDescription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remote
}

func (f *fakePC) SignalingState() webrtc.SignalingState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaling
}

func (f *fakePC) setSignaling(st webrtc.SignalingState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signaling = st
}

func (f *fakePC) AddICECandidate(c webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return errNoRemoteDescription
	}
	f.record("AddICECandidate:" + c.Candidate)
	f.candidates = append(f.candidates, c)
	return nil
}

func (f *fakePC) Candidates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.candidates {
		out = append(out, c.Candidate)
	}
	return out
}

func (f *fakePC) Remote() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return ""
	}
	return f.remote.SDP
}

func (f *fakePC) OnICECandidate(fn func(*webrtc.ICECandidate)) { f.onICE = fn }

func (f *fakePC) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) { f.onState = fn }

func (f *fakePC) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) { f.onTrack = fn }

func (f *fakePC) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.closed:
	default:
		f.record("Close")
		close(f.closed)
	}
	return nil
}

// fakeSignaler records what the session emits.
type fakeSignaler struct {
	mu         sync.Mutex
	offers     []webrtc.SessionDescription
	answers    []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
}

func (f *fakeSignaler) SendOffer(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, desc)
	return nil
}

func (f *fakeSignaler) SendAnswer(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, desc)
	return nil
}

func (f *fakeSignaler) SendCandidate(c webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, c)
	return nil
}

func (f *fakeSignaler) counts() (offers, answers, candidates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.offers), len(f.answers), len(f.candidates)
}

// changes collects state change callbacks.
type changes struct {
	mu  sync.Mutex
	all []Change
}

func (c *changes) add(ch Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all = append(c.all, ch)
}

func (c *changes) list() []Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Change(nil), c.all...)
}
