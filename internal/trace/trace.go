// Package trace records the logical steps of one compile job.
//
// A JobTrace holds no timestamps, durations, job ids or host paths, so two
// jobs over the same generated source with the same outcome produce
// byte-identical traces.
package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// JobTrace is the canonical record of a job's state transitions.
//
// SourceHash identifies the generated program. Events are ordered by Seq.
type JobTrace struct {
	SourceHash string
	Events     []Event
}

// EventKind is the stable discriminator for Event. Its values are part of the
// canonical bytes; do not rename.
type EventKind string

const (
	EventStateEntered EventKind = "StateEntered"
	EventCacheHit     EventKind = "CacheHit"
	EventCacheStored  EventKind = "CacheStored"
)

// Event is a single logical transition or decision.
type Event struct {
	// Seq is the position of the event within the job.
	Seq  int
	Kind EventKind

	// State is the job state entered (for EventStateEntered).
	State string

	// Reason is a stable reason code, e.g. a failure code.
	Reason string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *JobTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.SourceHash == "" {
		return errors.New("sourceHash is required")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.Kind == EventStateEntered && e.State == "" {
			return fmt.Errorf("events[%d].state is required for kind %q", i, e.Kind)
		}
	}
	return nil
}

// Canonicalize sorts events by Seq, keeping insertion order for equal Seq.
func (t *JobTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		return t.Events[i].Seq < t.Events[j].Seq
	})
}

// States returns the entered states in order.
func (t JobTrace) States() []string {
	var out []string
	for _, e := range t.Events {
		if e.Kind == EventStateEntered {
			out = append(out, e.State)
		}
	}
	return out
}

// CanonicalJSON returns the canonical JSON encoding of the trace without
// mutating the caller's events.
func (t JobTrace) CanonicalJSON() ([]byte, error) {
	cp := JobTrace{SourceHash: t.SourceHash, Events: make([]Event, len(t.Events))}
	copy(cp.Events, t.Events)
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&cp)
}

// Hash returns the sha256 hex digest of the canonical JSON bytes.
func (t JobTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON fixes field order.
func (t JobTrace) MarshalJSON() ([]byte, error) {
	if t.SourceHash == "" {
		return nil, errors.New("sourceHash is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"sourceHash":`)
	sh, _ := json.Marshal(t.SourceHash)
	buf.Write(sh)

	buf.WriteString(`,"events":[`)
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes field order and omits empty optional fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"seq":%d,"kind":`, e.Seq)
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)

	if e.State != "" {
		buf.WriteString(`,"state":`)
		sb, _ := json.Marshal(e.State)
		buf.Write(sb)
	}
	if e.Reason != "" {
		buf.WriteString(`,"reason":`)
		rb, _ := json.Marshal(e.Reason)
		buf.Write(rb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
