package logging

import (
	"sync"
	"sync/atomic"
)

// RecordedEntry is one call captured by a Recorder.
type RecordedEntry struct {
	Level   Level
	Message string
	Fields  map[string]any
}

// Recorder is a Logger that keeps every entry in memory. Tests use it to
// assert on control-flow logging without parsing JSON.
type Recorder struct {
	fields []Field
	store  *recorderStore
}

type recorderStore struct {
	mu      sync.Mutex
	level   atomic.Int32
	entries []RecordedEntry
}

// NewRecorder returns a Recorder that captures entries at or above level.
func NewRecorder(level Level) *Recorder {
	r := &Recorder{store: &recorderStore{}}
	r.store.level.Store(int32(level))
	return r
}

func (r *Recorder) record(level Level, msg string, fields []Field) {
	if level < r.GetLevel() {
		return
	}
	m := make(map[string]any, len(r.fields)+len(fields))
	for _, f := range r.fields {
		m[f.Key] = f.Value
	}
	for _, f := range fields {
		m[f.Key] = f.Value
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.entries = append(r.store.entries, RecordedEntry{Level: level, Message: msg, Fields: m})
}

func (r *Recorder) Debug(msg string, fields ...Field) { r.record(DebugLevel, msg, fields) }
func (r *Recorder) Info(msg string, fields ...Field)  { r.record(InfoLevel, msg, fields) }
func (r *Recorder) Warn(msg string, fields ...Field)  { r.record(WarnLevel, msg, fields) }
func (r *Recorder) Error(msg string, fields ...Field) { r.record(ErrorLevel, msg, fields) }

// With returns a child sharing the same entry store and level.
func (r *Recorder) With(fields ...Field) Logger {
	merged := make([]Field, 0, len(r.fields)+len(fields))
	merged = append(merged, r.fields...)
	merged = append(merged, fields...)
	return &Recorder{fields: merged, store: r.store}
}

func (r *Recorder) SetLevel(level Level) { r.store.level.Store(int32(level)) }
func (r *Recorder) GetLevel() Level      { return Level(r.store.level.Load()) }

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []RecordedEntry {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]RecordedEntry, len(r.store.entries))
	copy(out, r.store.entries)
	return out
}

// Messages returns the messages recorded at level, in order.
func (r *Recorder) Messages(level Level) []string {
	var msgs []string
	for _, e := range r.Entries() {
		if e.Level == level {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}
