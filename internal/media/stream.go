// Package media owns local capture tracks and recording of remote tracks.
package media

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// ErrAccessDenied is returned when a capture source cannot be opened.
var ErrAccessDenied = errors.New("media access denied")

// ErrStreamStopped is returned when writing to a stopped stream.
var ErrStreamStopped = errors.New("media stream stopped")

// Stream is the local capture: at most one VP8 video track and one Opus
// audio track, fed by pumps started with Go.
type Stream struct {
	ID string

	video *webrtc.TrackLocalStaticSample
	audio *webrtc.TrackLocalStaticSample

	videoEnabled atomic.Bool
	audioEnabled atomic.Bool

	stop     chan struct{}
	stopOnce sync.Once
	pumps    sync.WaitGroup
}

// NewStream creates the tracks. Both kinds start enabled.
func NewStream(video, audio bool) (*Stream, error) {
	s := &Stream{
		ID:   "warpcall-" + uuid.NewString(),
		stop: make(chan struct{}),
	}

	if video {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video", s.ID,
		)
		if err != nil {
			return nil, err
		}
		s.video = track
	}
	if audio {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			"audio", s.ID,
		)
		if err != nil {
			return nil, err
		}
		s.audio = track
	}

	s.videoEnabled.Store(true)
	s.audioEnabled.Store(true)
	return s, nil
}

// Tracks returns the local tracks to add to a peer connection.
func (s *Stream) Tracks() []webrtc.TrackLocal {
	var tracks []webrtc.TrackLocal
	if s.audio != nil {
		tracks = append(tracks, s.audio)
	}
	if s.video != nil {
		tracks = append(tracks, s.video)
	}
	return tracks
}

func (s *Stream) HasVideo() bool { return s.video != nil }
func (s *Stream) HasAudio() bool { return s.audio != nil }

// SetAudioEnabled mutes or unmutes the microphone. Muted samples are dropped.
func (s *Stream) SetAudioEnabled(on bool) { s.audioEnabled.Store(on) }

// SetVideoEnabled turns the camera on or off.
func (s *Stream) SetVideoEnabled(on bool) { s.videoEnabled.Store(on) }

func (s *Stream) AudioEnabled() bool { return s.audioEnabled.Load() }
func (s *Stream) VideoEnabled() bool { return s.videoEnabled.Load() }

// WriteVideo writes a VP8 sample unless video is disabled.
func (s *Stream) WriteVideo(sample pionmedia.Sample) error {
	return s.write(s.video, &s.videoEnabled, sample)
}

// WriteAudio writes an Opus sample unless audio is muted.
func (s *Stream) WriteAudio(sample pionmedia.Sample) error {
	return s.write(s.audio, &s.audioEnabled, sample)
}

func (s *Stream) write(track *webrtc.TrackLocalStaticSample, enabled *atomic.Bool, sample pionmedia.Sample) error {
	if s.Stopped() {
		return ErrStreamStopped
	}
	if track == nil || !enabled.Load() {
		return nil
	}
	return track.WriteSample(sample)
}

// Go runs a sample pump until it returns or the stream stops.
func (s *Stream) Go(pump func(stop <-chan struct{})) {
	s.pumps.Add(1)
	go func() {
		defer s.pumps.Done()
		pump(s.stop)
	}()
}

// Stop halts every pump and waits for them. It is safe to call more than once.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.pumps.Wait()
}

// Stopped reports whether Stop has been called.
func (s *Stream) Stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}
