package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"go.uber.org/multierr"
)

// ErrUnsupportedCodec is returned for remote tracks the recorder cannot store.
var ErrUnsupportedCodec = errors.New("unsupported codec")

// RTPReader is the read side of a remote track.
type RTPReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// RTPWriter stores depacketized media.
type RTPWriter interface {
	WriteRTP(packet *rtp.Packet) error
	Close() error
}

// Recorder saves remote tracks under Dir: VP8 as IVF, Opus as Ogg.
type Recorder struct {
	Dir    string
	Logger *slog.Logger
}

// Path returns the file a track of the given kind and MIME type is saved to.
func (r *Recorder) Path(kind webrtc.RTPCodecType, mimeType string, started time.Time) (string, error) {
	var ext string
	switch strings.ToLower(mimeType) {
	case strings.ToLower(webrtc.MimeTypeVP8):
		ext = "ivf"
	case strings.ToLower(webrtc.MimeTypeOpus):
		ext = "ogg"
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCodec, mimeType)
	}
	name := fmt.Sprintf("warpcall-%s-%s.%s", kind, started.Format("20060102-150405"), ext)
	return filepath.Join(r.Dir, name), nil
}

// Record copies track to disk until the track ends. It blocks.
func (r *Recorder) Record(track *webrtc.TrackRemote) error {
	codec := track.Codec()
	path, err := r.Path(track.Kind(), codec.MimeType, time.Now())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return err
	}

	var w RTPWriter
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		w, err = ivfwriter.New(path)
	} else {
		w, err = oggwriter.New(path, codec.ClockRate, codec.Channels)
	}
	if err != nil {
		return err
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Recording remote track", "kind", track.Kind().String(), "path", path)
	return Copy(w, track)
}

// Copy writes packets from src to w until src ends, then closes w.
func Copy(w RTPWriter, src RTPReader) error {
	for {
		packet, _, err := src.ReadRTP()
		if err != nil {
			closeErr := w.Close()
			if errors.Is(err, io.EOF) {
				return closeErr
			}
			return multierr.Combine(err, closeErr)
		}
		if err := w.WriteRTP(packet); err != nil {
			w.Close()
			return err
		}
	}
}
