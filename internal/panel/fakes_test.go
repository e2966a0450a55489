package panel

import (
	"io"

	"github.com/fgpanels/switchpanel/internal/types"
)

// scriptedRead is one canned result of fakeSource.Read.
type scriptedRead struct {
	data []byte
	err  error
}

func frame(s types.Snapshot) scriptedRead {
	f := Unpack(s)
	return scriptedRead{data: f[:]}
}

// fakeSource replays scripted reads, then reports io.EOF.
type fakeSource struct {
	reads  []scriptedRead
	leds   []byte
	closed bool
}

func (f *fakeSource) Read(p []byte) (int, error) {
	if len(f.reads) == 0 {
		return 0, io.EOF
	}
	next := f.reads[0]
	f.reads = f.reads[1:]
	n := copy(p, next.data)
	return n, next.err
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

// ledSource adds the Indicator capability.
type ledSource struct {
	fakeSource
}

func (l *ledSource) SetIndicator(leds byte) error {
	l.leds = append(l.leds, leds)
	return nil
}

type processCall struct {
	current, previous types.Snapshot
}

type recordingProcessor struct {
	calls []processCall
	err   error
}

func (r *recordingProcessor) ProcessInput(current, previous types.Snapshot) error {
	r.calls = append(r.calls, processCall{current, previous})
	return r.err
}
