package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const oggPageDuration = 20 * time.Millisecond

// Source acquires the local capture.
type Source interface {
	Acquire(ctx context.Context) (*Stream, error)
}

// NullSource creates tracks that carry no samples.
type NullSource struct {
	Video bool
	Audio bool
}

func (n NullSource) Acquire(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewStream(n.Video, n.Audio)
}

// FileSource streams an IVF (VP8) file as video and an Ogg (Opus) file as
// audio. An empty path skips that kind.
type FileSource struct {
	VideoPath string
	AudioPath string

	// Loop rewinds the files at end of stream.
	Loop bool

	Logger *slog.Logger
}

func (f FileSource) Acquire(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var video, audio *os.File
	closeAll := func() {
		if video != nil {
			video.Close()
		}
		if audio != nil {
			audio.Close()
		}
	}

	var videoHeader *ivfreader.IVFFileHeader
	if f.VideoPath != "" {
		var err error
		if video, err = os.Open(f.VideoPath); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		if _, videoHeader, err = ivfreader.NewWith(video); err != nil {
			closeAll()
			return nil, fmt.Errorf("%w: %s: %v", ErrAccessDenied, f.VideoPath, err)
		}
		if videoHeader.FourCC != "VP80" {
			closeAll()
			return nil, fmt.Errorf("%w: %s: unsupported codec %q", ErrAccessDenied, f.VideoPath, videoHeader.FourCC)
		}
	}
	if f.AudioPath != "" {
		var err error
		if audio, err = os.Open(f.AudioPath); err != nil {
			closeAll()
			return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		if _, _, err = oggreader.NewWith(audio); err != nil {
			closeAll()
			return nil, fmt.Errorf("%w: %s: %v", ErrAccessDenied, f.AudioPath, err)
		}
	}

	s, err := NewStream(video != nil, audio != nil)
	if err != nil {
		closeAll()
		return nil, err
	}

	if video != nil {
		s.Go(func(stop <-chan struct{}) {
			defer video.Close()
			if err := pumpIVF(video, videoHeader, f.Loop, s.WriteVideo, stop); err != nil {
				logger.Warn("Video pump stopped", "path", f.VideoPath, "err", err)
			}
		})
	}
	if audio != nil {
		s.Go(func(stop <-chan struct{}) {
			defer audio.Close()
			if err := pumpOgg(audio, f.Loop, s.WriteAudio, stop); err != nil {
				logger.Warn("Audio pump stopped", "path", f.AudioPath, "err", err)
			}
		})
	}
	return s, nil
}

type writeFunc func(pionmedia.Sample) error

// rewind seeks back to the start and skips the container header again.
func rewind[R any](file *os.File, open func(io.Reader) (R, error)) (R, error) {
	var zero R
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return zero, err
	}
	return open(file)
}

func pumpIVF(file *os.File, header *ivfreader.IVFFileHeader, loop bool, write writeFunc, stop <-chan struct{}) error {
	open := func(r io.Reader) (*ivfreader.IVFReader, error) {
		reader, _, err := ivfreader.NewWith(r)
		return reader, err
	}
	reader, err := rewind(file, open)
	if err != nil {
		return err
	}

	frameDuration := time.Duration(float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator) * float64(time.Second))
	if frameDuration <= 0 {
		frameDuration = time.Second / 30
	}
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
		}

		frame, _, err := reader.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			if !loop {
				return nil
			}
			if reader, err = rewind(file, open); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if err := write(pionmedia.Sample{Data: frame, Duration: frameDuration}); err != nil {
			if errors.Is(err, ErrStreamStopped) {
				return nil
			}
			return err
		}
	}
}

func pumpOgg(file *os.File, loop bool, write writeFunc, stop <-chan struct{}) error {
	open := func(r io.Reader) (*oggreader.OggReader, error) {
		reader, _, err := oggreader.NewWith(r)
		return reader, err
	}
	reader, err := rewind(file, open)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(oggPageDuration)
	defer ticker.Stop()

	var lastGranule uint64
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
		}

		page, header, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			if !loop {
				return nil
			}
			if reader, err = rewind(file, open); err != nil {
				return err
			}
			lastGranule = 0
			continue
		}
		if err != nil {
			return err
		}

		// Opus always runs at 48kHz.
		samples := float64(header.GranulePosition - lastGranule)
		lastGranule = header.GranulePosition
		duration := time.Duration(samples / 48000 * float64(time.Second))

		if err := write(pionmedia.Sample{Data: page, Duration: duration}); err != nil {
			if errors.Is(err, ErrStreamStopped) {
				return nil
			}
			return err
		}
	}
}
