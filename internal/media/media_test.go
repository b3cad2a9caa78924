package media

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"go.viam.com/test"
)

func TestNullSource(t *testing.T) {
	s, err := NullSource{Video: true, Audio: true}.Acquire(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Tracks(), test.ShouldHaveLength, 2)
	test.That(t, s.HasVideo(), test.ShouldBeTrue)
	test.That(t, s.HasAudio(), test.ShouldBeTrue)

	audioOnly, err := NullSource{Audio: true}.Acquire(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, audioOnly.Tracks(), test.ShouldHaveLength, 1)
	test.That(t, audioOnly.Tracks()[0].Kind(), test.ShouldEqual, webrtc.RTPCodecTypeAudio)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NullSource{Audio: true}.Acquire(ctx)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestStreamToggleAndStop(t *testing.T) {
	s, err := NewStream(true, true)
	test.That(t, err, test.ShouldBeNil)

	s.SetAudioEnabled(false)
	test.That(t, s.AudioEnabled(), test.ShouldBeFalse)
	test.That(t, s.VideoEnabled(), test.ShouldBeTrue)
	test.That(t, s.WriteAudio(pionmedia.Sample{Data: []byte{1}, Duration: time.Millisecond}), test.ShouldBeNil)

	stopped := make(chan struct{})
	s.Go(func(stop <-chan struct{}) {
		<-stop
		close(stopped)
	})

	s.Stop()
	s.Stop()
	<-stopped
	test.That(t, s.Stopped(), test.ShouldBeTrue)

	err = s.WriteVideo(pionmedia.Sample{Data: []byte{1}, Duration: time.Millisecond})
	test.That(t, errors.Is(err, ErrStreamStopped), test.ShouldBeTrue)
}

// writeIVF writes a VP8 IVF file with the given number of small frames.
func writeIVF(t *testing.T, path, fourCC string, frames int) {
	t.Helper()

	header := make([]byte, 32)
	copy(header[0:4], "DKIF")
	binary.LittleEndian.PutUint16(header[4:], 0)
	binary.LittleEndian.PutUint16(header[6:], 32)
	copy(header[8:12], fourCC)
	binary.LittleEndian.PutUint16(header[12:], 64)
	binary.LittleEndian.PutUint16(header[14:], 48)
	binary.LittleEndian.PutUint32(header[16:], 1000)
	binary.LittleEndian.PutUint32(header[20:], 1)
	binary.LittleEndian.PutUint32(header[24:], uint32(frames))

	data := header
	for i := 0; i < frames; i++ {
		frame := make([]byte, 12)
		binary.LittleEndian.PutUint32(frame[0:], 4)
		binary.LittleEndian.PutUint64(frame[4:], uint64(i))
		data = append(data, frame...)
		data = append(data, 0x10, 0x02, 0x00, 0x9d)
	}
	test.That(t, os.WriteFile(path, data, 0o600), test.ShouldBeNil)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is access denied", func(t *testing.T) {
		_, err := FileSource{VideoPath: filepath.Join(dir, "missing.ivf")}.Acquire(context.Background())
		test.That(t, errors.Is(err, ErrAccessDenied), test.ShouldBeTrue)
	})

	t.Run("garbage file is access denied", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.ogg")
		test.That(t, os.WriteFile(path, []byte("not an ogg file"), 0o600), test.ShouldBeNil)
		_, err := FileSource{AudioPath: path}.Acquire(context.Background())
		test.That(t, errors.Is(err, ErrAccessDenied), test.ShouldBeTrue)
	})

	t.Run("non vp8 ivf is access denied", func(t *testing.T) {
		path := filepath.Join(dir, "av1.ivf")
		writeIVF(t, path, "AV01", 1)
		_, err := FileSource{VideoPath: path}.Acquire(context.Background())
		test.That(t, errors.Is(err, ErrAccessDenied), test.ShouldBeTrue)
	})

	t.Run("vp8 ivf streams until stopped", func(t *testing.T) {
		path := filepath.Join(dir, "clip.ivf")
		writeIVF(t, path, "VP80", 3)

		s, err := FileSource{VideoPath: path, Loop: true}.Acquire(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.HasVideo(), test.ShouldBeTrue)
		test.That(t, s.HasAudio(), test.ShouldBeFalse)

		time.Sleep(20 * time.Millisecond)
		s.Stop()
		test.That(t, s.Stopped(), test.ShouldBeTrue)
	})
}

type fakeRTPSource struct {
	packets []*rtp.Packet
	err     error
}

func (f *fakeRTPSource) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	if len(f.packets) == 0 {
		return nil, nil, f.err
	}
	p := f.packets[0]
	f.packets = f.packets[1:]
	return p, nil, nil
}

type fakeRTPWriter struct {
	written []uint16
	closed  int
}

func (f *fakeRTPWriter) WriteRTP(p *rtp.Packet) error {
	f.written = append(f.written, p.SequenceNumber)
	return nil
}

func (f *fakeRTPWriter) Close() error {
	f.closed++
	return nil
}

func TestCopy(t *testing.T) {
	src := &fakeRTPSource{
		packets: []*rtp.Packet{
			{Header: rtp.Header{SequenceNumber: 1}},
			{Header: rtp.Header{SequenceNumber: 2}},
		},
		err: io.EOF,
	}
	w := &fakeRTPWriter{}

	test.That(t, Copy(w, src), test.ShouldBeNil)
	test.That(t, w.written, test.ShouldResemble, []uint16{1, 2})
	test.That(t, w.closed, test.ShouldEqual, 1)

	boom := errors.New("boom")
	w = &fakeRTPWriter{}
	err := Copy(w, &fakeRTPSource{err: boom})
	test.That(t, errors.Is(err, boom), test.ShouldBeTrue)
	test.That(t, w.closed, test.ShouldEqual, 1)
}

func TestRecorderPath(t *testing.T) {
	r := &Recorder{Dir: "/tmp/calls"}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	path, err := r.Path(webrtc.RTPCodecTypeVideo, webrtc.MimeTypeVP8, at)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldEqual, "/tmp/calls/warpcall-video-20260102-030405.ivf")

	path, err = r.Path(webrtc.RTPCodecTypeAudio, "audio/OPUS", at)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldEqual, "/tmp/calls/warpcall-audio-20260102-030405.ogg")

	_, err = r.Path(webrtc.RTPCodecTypeVideo, webrtc.MimeTypeH264, at)
	test.That(t, errors.Is(err, ErrUnsupportedCodec), test.ShouldBeTrue)
}
