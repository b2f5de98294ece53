package device

import (
	"io"
	"testing"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/char5742/octopus/internal/event"
)

type fakeSource struct {
	events []evdev.InputEvent
	state  evdev.StateMap
}

func (f *fakeSource) ReadOne() (*evdev.InputEvent, error) {
	if len(f.events) == 0 {
		return nil, io.EOF
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return &ev, nil
}

func (f *fakeSource) State(evdev.EvType) (evdev.StateMap, error) {
	return f.state, nil
}

func raw(t evdev.EvType, c evdev.EvCode, v int32) evdev.InputEvent {
	return evdev.InputEvent{Type: t, Code: c, Value: v}
}

func collect(t *testing.T, src *fakeSource) []Frame {
	t.Helper()
	frames := make(chan Frame, 16)
	done := make(chan struct{})
	r := &reader{index: 1, epoch: 7, src: src, frames: frames, done: done, keys: newKeyTracker()}
	r.run()
	close(frames)

	var out []Frame
	for f := range frames {
		out = append(out, f)
	}
	return out
}

func TestReaderSplitsFrames(t *testing.T) {
	src := &fakeSource{events: []evdev.InputEvent{
		raw(evdev.EV_MSC, evdev.MSC_SCAN, 4),
		raw(evdev.EV_KEY, evdev.KEY_A, 1),
		raw(evdev.EV_SYN, evdev.SYN_REPORT, 0),
		raw(evdev.EV_KEY, evdev.KEY_A, 0),
		raw(evdev.EV_SYN, evdev.SYN_REPORT, 0),
	}}

	frames := collect(t, src)
	require.Len(t, frames, 3)
	assert.Equal(t, 1, frames[0].Device)
	assert.Equal(t, uint64(7), frames[0].Epoch)
	assert.Len(t, frames[0].Events, 3)
	assert.True(t, frames[0].Events[2].IsReport())
	assert.Equal(t, event.KeyEvent(30, false), frames[1].Events[0])
	assert.ErrorIs(t, frames[2].Err, io.EOF)
}

func TestReaderResyncAfterDrop(t *testing.T) {
	src := &fakeSource{
		events: []evdev.InputEvent{
			raw(evdev.EV_KEY, evdev.KEY_A, 1),
			raw(evdev.EV_SYN, evdev.SYN_REPORT, 0),
			raw(evdev.EV_KEY, evdev.KEY_B, 1),
			raw(evdev.EV_SYN, evdev.SYN_DROPPED, 0),
			raw(evdev.EV_KEY, evdev.KEY_C, 1),
			raw(evdev.EV_SYN, evdev.SYN_REPORT, 0),
		},
		// A は離され、C が押されたままになっている
		state: evdev.StateMap{evdev.KEY_C: true},
	}

	frames := collect(t, src)
	require.Len(t, frames, 3)
	assert.Equal(t, []event.Event{
		event.KeyEvent(30, false),
		event.KeyEvent(46, true),
		event.Report(),
	}, frames[1].Events)
}

func TestKeyTrackerIgnoresRepeats(t *testing.T) {
	k := newKeyTracker()
	k.observe(event.Event{Type: event.Key, Code: 30, Value: event.Pressed})
	k.observe(event.Event{Type: event.Key, Code: 30, Value: event.Repeated})
	assert.True(t, k.down[30])
	assert.Empty(t, k.resync(evdev.StateMap{evdev.KEY_A: true}))
}
