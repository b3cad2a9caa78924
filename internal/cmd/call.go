package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/multierr"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/logging"
	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/rtc"
	"github.com/BioHazard786/Warpcall/internal/session"
	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/BioHazard786/Warpcall/internal/ui"
)

// Call outcomes shown in the summary.
const (
	outcomeHungUp      = "hung up"
	outcomePeerLeft    = "peer left"
	outcomeFailed      = "connection failed"
	outcomeEnded       = "ended"
	outcomeInterrupted = "interrupted"
)

// call drives one session from the relay's messages until it ends.
type call struct {
	conn    *ConnectionContext
	room    string
	session *session.Session

	changes  chan session.Change
	hangup   chan struct{}
	hangOnce sync.Once

	// finished is closed when teardown starts.
	finished   chan struct{}
	finishOnce sync.Once

	recorder   *media.Recorder
	recordWG   sync.WaitGroup
	recordMu   sync.Mutex
	closing    bool
	recordings []string
}

func newCall(conn *ConnectionContext, role session.Role, room string) (*call, error) {
	api, err := rtc.NewAPI(logging.Get("rtc"))
	if err != nil {
		return nil, session.NewError("create webrtc api", err)
	}
	pc, err := rtc.NewPeerConnection(api, conn.Config)
	if err != nil {
		return nil, session.NewError("create peer connection", err)
	}

	c := &call{
		conn:    conn,
		room:    room,
		changes:  make(chan session.Change, 32),
		hangup:   make(chan struct{}),
		finished: make(chan struct{}),
	}
	if conn.Config.RecordDir != "" {
		c.recorder = &media.Recorder{Dir: conn.Config.RecordDir, Logger: conn.Logger}
	}

	c.session = session.New(pc, session.Config{
		Role:     role,
		Signaler: signaling.NewRoomSignaler(conn.Client, room),
		Logger:   logging.Get("session"),
	})
	c.session.OnStateChange(c.deliverChange)
	c.session.OnRemoteTrack(c.handleRemoteTrack)

	return c, nil
}

// mediaSource picks the capture source for cfg. Without files the tracks are
// negotiated but carry no samples.
func mediaSource(cfg *config.Client) media.Source {
	if cfg.VideoPath == "" && cfg.AudioPath == "" {
		return media.NullSource{Video: true, Audio: true}
	}
	return media.FileSource{
		VideoPath: cfg.VideoPath,
		AudioPath: cfg.AudioPath,
		Loop:      true,
		Logger:    logging.Get("media"),
	}
}

func (c *call) capture(ctx context.Context) error {
	cfg := c.conn.Config
	if cfg.VideoPath == "" && cfg.AudioPath == "" {
		ui.PrintInfo("No --video or --audio given, sending empty tracks")
	}
	if cfg.ForceRelay {
		ui.PrintWarning("Relay mode: media goes through the TURN server")
	}

	stop := ui.RunWaitingSpinner("Starting local media...")
	_, err := c.session.InitializeLocalCapture(ctx, mediaSource(cfg))
	stop()

	if errors.Is(err, session.ErrMediaAccessDenied) {
		return session.WrapError("capture", err, "check the --video and --audio files")
	}
	return err
}

// deliverChange hands a session change to the call loop. Progress updates
// are dropped when the loop lags, but a change that ends the call or carries
// an error waits until the loop takes it or teardown starts.
func (c *call) deliverChange(ch session.Change) {
	if ch.Err != nil || ch.State == session.StateClosed {
		select {
		case c.changes <- ch:
		case <-c.finished:
			c.conn.Logger.Debug("Call finished, dropping state change", "state", ch.State.String())
		}
		return
	}

	select {
	case c.changes <- ch:
	default:
		c.conn.Logger.Debug("Dropping state change", "state", ch.State.String())
	}
}

func (c *call) handleRemoteTrack(track *webrtc.TrackRemote) {
	kind := track.Kind().String()
	c.conn.Logger.Info("Remote track", "kind", kind, "codec", track.Codec().MimeType)
	if c.recorder == nil {
		return
	}

	c.startRecording(kind, func() error {
		return c.recorder.Record(track)
	})
}

// startRecording runs record in the background unless teardown has begun.
func (c *call) startRecording(kind string, record func() error) bool {
	c.recordMu.Lock()
	if c.closing {
		c.recordMu.Unlock()
		return false
	}
	c.recordings = append(c.recordings, fmt.Sprintf("%s in %s", kind, c.recorder.Dir))
	c.recordWG.Add(1)
	c.recordMu.Unlock()

	go func() {
		defer c.recordWG.Done()
		if err := record(); err != nil {
			c.conn.Logger.Warn("Recording failed", "kind", kind, "err", err)
		}
	}()
	return true
}

func (c *call) hangUp() {
	c.hangOnce.Do(func() { close(c.hangup) })
}

func (c *call) toggleAudio() bool {
	stream := c.session.LocalStream()
	if stream == nil || !stream.HasAudio() {
		return false
	}
	on := !stream.AudioEnabled()
	stream.SetAudioEnabled(on)
	return on
}

func (c *call) toggleVideo() bool {
	stream := c.session.LocalStream()
	if stream == nil || !stream.HasVideo() {
		return false
	}
	on := !stream.VideoEnabled()
	stream.SetVideoEnabled(on)
	return on
}

// run shows the call view and routes relay messages into the session until
// the call ends, then prints the summary.
func (c *call) run(ctx context.Context) error {
	view := ui.NewCallView(c.session.Role().String(), c.room, ui.CallControls{
		ToggleAudio: c.toggleAudio,
		ToggleVideo: c.toggleVideo,
		HangUp:      c.hangUp,
	})
	view.Update(ui.CallUpdate{State: c.session.State().String(), Status: c.session.Status().String()})
	view.Start()

	summary := ui.CallSummary{RoomID: c.room, Role: c.session.Role().String()}
	var connectedAt time.Time
	onChange := func(ch session.Change) {
		view.Update(ui.CallUpdate{State: ch.State.String(), Status: ch.Status.String(), Err: ch.Err})
		if ch.Status == session.StatusConnected && connectedAt.IsZero() {
			connectedAt = time.Now()
		}
	}

	outcome, err := c.loop(ctx, onChange)

	view.Stop()
	err = multierr.Combine(err, c.close())

	summary.Outcome = outcome
	if !connectedAt.IsZero() {
		summary.Connected = true
		summary.Duration = time.Since(connectedAt)
	}
	c.recordMu.Lock()
	summary.Recordings = c.recordings
	c.recordMu.Unlock()

	fmt.Println()
	ui.RenderCallSummary("📊 Call Summary", summary)
	return err
}

func (c *call) loop(ctx context.Context, onChange func(session.Change)) (string, error) {
	h := c.conn.Handler
	relayDone := h.Done()
	var lastErr error

	for {
		select {
		case desc := <-h.Offer:
			c.session.HandleOffer(desc)

		case desc := <-h.Answer:
			c.session.HandleAnswer(desc)

		case cand := <-h.Candidate:
			c.session.HandleCandidate(cand)

		case peer := <-h.PeerJoined:
			c.conn.Logger.Info("Peer joined", "peer", peer)

		case <-h.PeerLeft:
			return outcomePeerLeft, nil

		case relayErr := <-h.Error:
			c.conn.Logger.Warn("Relay error", "code", relayErr.Code, "err", relayErr.Message)

		case <-relayDone:
			// Media flows peer to peer, so an established call outlives the relay.
			c.conn.Logger.Warn("Lost connection to relay")
			relayDone = nil

		case ch := <-c.changes:
			onChange(ch)
			if ch.Err != nil {
				lastErr = ch.Err
			}

		case <-c.session.Done():
			for drained := false; !drained; {
				select {
				case ch := <-c.changes:
					onChange(ch)
					if ch.Err != nil {
						lastErr = ch.Err
					}
				default:
					drained = true
				}
			}
			if lastErr != nil {
				return outcomeFailed, session.NewError("call", lastErr)
			}
			return outcomeEnded, nil

		case <-c.hangup:
			return outcomeHungUp, nil

		case <-ctx.Done():
			return outcomeInterrupted, nil
		}
	}
}

// close tears the call down: the session first, then the room.
func (c *call) close() error {
	c.finishOnce.Do(func() { close(c.finished) })
	c.recordMu.Lock()
	c.closing = true
	c.recordMu.Unlock()

	err := c.session.Close()
	if leaveErr := c.conn.Handler.LeaveRoom(c.room); leaveErr != nil && !errors.Is(leaveErr, signaling.ErrClosed) {
		err = multierr.Append(err, leaveErr)
	}
	c.recordWG.Wait()
	return err
}

// abort tears down a call that never reached run.
func (c *call) abort(err error) error {
	return multierr.Combine(err, c.close())
}
