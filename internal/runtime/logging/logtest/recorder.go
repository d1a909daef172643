// Package logtest provides a ServiceLogger that records entries for assertions.
package logtest

import (
	"sync"

	"github.com/drblury/omnibridge/internal/runtime/logging"
)

// Entry is one recorded log call. Fields include those bound through With.
type Entry struct {
	Level  string
	Msg    string
	Fields logging.LogFields
	Err    error
}

// Recorder implements logging.ServiceLogger. Children created with With share
// the parent's entry list.
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	bound   logging.LogFields
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (r *Recorder) With(fields logging.LogFields) logging.ServiceLogger {
	return &Recorder{mu: r.mu, entries: r.entries, bound: merge(r.bound, fields)}
}

func (r *Recorder) Debug(msg string, fields logging.LogFields) { r.record("debug", msg, nil, fields) }
func (r *Recorder) Info(msg string, fields logging.LogFields)  { r.record("info", msg, nil, fields) }
func (r *Recorder) Trace(msg string, fields logging.LogFields) { r.record("trace", msg, nil, fields) }

func (r *Recorder) Error(msg string, err error, fields logging.LogFields) {
	r.record("error", msg, err, fields)
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), (*r.entries)...)
}

// ByLevel returns the recorded entries at level.
func (r *Recorder) ByLevel(level string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// ByMsg returns the recorded entries with the given message.
func (r *Recorder) ByMsg(msg string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Msg == msg {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) record(level, msg string, err error, fields logging.LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = append(*r.entries, Entry{Level: level, Msg: msg, Fields: merge(r.bound, fields), Err: err})
}

func merge(a, b logging.LogFields) logging.LogFields {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(logging.LogFields, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
