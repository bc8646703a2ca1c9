// Package trace records boundary lifecycle events for offline inspection.
//
// The engine and lifecycle packages accept an Observer; Recorder is the
// stock implementation, streaming events as length-prefixed msgpack
// frames so external tooling can replay an attach/detach/load history
// without linking against the bridge.
package trace

import (
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// EventType enumerates boundary lifecycle events
type EventType uint8

const (
	EventAttach EventType = iota + 1
	EventDetach
	EventPopulate
	EventRelease
)

func (t EventType) String() string {
	switch t {
	case EventAttach:
		return "attach"
	case EventDetach:
		return "detach"
	case EventPopulate:
		return "populate"
	case EventRelease:
		return "release"
	}
	return "unknown"
}

// Event is a single boundary occurrence
type Event struct {
	Type   EventType `msgpack:"type"`
	Thread uint64    `msgpack:"thread,omitempty"`
	Detail string    `msgpack:"detail,omitempty"`
	Unix   int64     `msgpack:"ts"`
}

// Observer receives boundary events. Implementations must be safe for
// concurrent calls; attach and detach fire from arbitrary threads.
type Observer interface {
	OnBoundaryEvent(Event)
}

// Recorder streams events to w as 4-byte big-endian length-prefixed
// msgpack frames.
type Recorder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewRecorder creates a recorder writing frames to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w}
}

// OnBoundaryEvent implements Observer. Encoding or write failures are
// dropped: tracing must never fail a boundary operation.
func (r *Recorder) OnBoundaryEvent(e Event) {
	if e.Unix == 0 {
		e.Unix = time.Now().Unix()
	}

	data, err := msgpack.Marshal(&e)
	if err != nil {
		return
	}

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(length[:]); err != nil {
		return
	}
	_, _ = r.w.Write(data)
}

// ReadEvent decodes the next frame from r. It returns io.EOF once the
// stream is exhausted.
func ReadEvent(r io.Reader) (Event, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return Event{}, err
	}

	data := make([]byte, binary.BigEndian.Uint32(length[:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return Event{}, err
	}

	var e Event
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}
