package panel

import (
	"errors"
	"io"
	"os"
)

// ErrNoData is returned by a Source when a read completed without a report.
var ErrNoData = errors.New("no data available")

// Source supplies raw frames, blocking until data is available.
type Source interface {
	Read(p []byte) (int, error)
	Close() error
}

// Indicator is implemented by sources that can drive the gear LEDs.
type Indicator interface {
	SetIndicator(leds byte) error
}

// StreamSource reads fixed-size frames from a byte stream, typically stdin
// fed by the panel emulator.
type StreamSource struct {
	r io.Reader
}

func NewStreamSource(r io.Reader) *StreamSource {
	return &StreamSource{r: r}
}

// Read fills p completely so a stream never drifts out of frame alignment.
// A partial trailing frame is returned as is; the next Read reports io.EOF.
func (s *StreamSource) Read(p []byte) (int, error) {
	n, err := io.ReadFull(s.r, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return n, nil
	}
	return n, err
}

func (s *StreamSource) Close() error {
	if closer, ok := s.r.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// isClosed reports errors that mean the source will never deliver again.
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
