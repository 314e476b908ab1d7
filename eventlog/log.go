// Package eventlog keeps an append-only, index-addressable log of
// instrumentation events: modules, rewritten methods and the points
// inserted into them.
//
// Records use a fixed little-endian layout: a 64-bit content length, a
// 32-bit kind, then the kind's fields. Strings are UTF-16 with a 64-bit
// code unit count. The in-memory log can be mirrored to sinks such as a
// raw stream or an SQLite table.
package eventlog

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/ilrewrite/errors"
)

// Sink receives every record appended to a Log, in index order.
type Sink interface {
	Write(index int, kind Kind, record []byte) error
}

// Log is safe for concurrent use.
type Log struct {
	data    []byte
	offsets []int
	kinds   []Kind
	sinks   []Sink
	mu      sync.RWMutex
}

// New returns an empty log that mirrors records to sinks.
func New(sinks ...Sink) *Log {
	return &Log{sinks: sinks}
}

// Append adds rec and returns its index. The record stays in the log even
// when a sink fails; the first sink error is returned.
func (l *Log) Append(rec Record) (int, error) {
	b := Marshal(rec)

	l.mu.Lock()
	defer l.mu.Unlock()
	idx := len(l.offsets)
	l.offsets = append(l.offsets, len(l.data))
	l.kinds = append(l.kinds, rec.Kind())
	l.data = append(l.data, b...)

	var firstErr error
	for _, s := range l.sinks {
		if err := s.Write(idx, rec.Kind(), b); err != nil {
			Logger().Warn("event sink write failed",
				zap.Int("index", idx),
				zap.Stringer("kind", rec.Kind()),
				zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("event %d: %w", idx, err)
			}
		}
	}
	return idx, firstErr
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.offsets)
}

// Raw returns the encoded bytes of record i.
func (l *Log) Raw(i int) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.offsets) {
		return nil, errors.OutOfBounds(errors.PhaseLog, []string{"record"}, i, len(l.offsets))
	}
	end := len(l.data)
	if i+1 < len(l.offsets) {
		end = l.offsets[i+1]
	}
	return append([]byte(nil), l.data[l.offsets[i]:end]...), nil
}

// At decodes record i.
func (l *Log) At(i int) (Record, error) {
	b, err := l.Raw(i)
	if err != nil {
		return nil, err
	}
	rec, _, err := Unmarshal(b)
	return rec, err
}

// Kind returns the kind of record i without decoding it.
func (l *Log) Kind(i int) (Kind, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.kinds) {
		return 0, false
	}
	return l.kinds[i], true
}

// Records decodes every record in order.
func (l *Log) Records() ([]Record, error) {
	l.mu.RLock()
	data := l.data
	l.mu.RUnlock()
	return Parse(data)
}

// WriteTo writes the concatenated record stream.
func (l *Log) WriteTo(w io.Writer) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, err := w.Write(l.data)
	return int64(n), err
}

// StreamSink writes raw records to an io.Writer, producing the same stream
// Log.WriteTo does.
type StreamSink struct {
	w  io.Writer
	mu sync.Mutex
}

// NewStreamSink returns a sink writing to w.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

func (s *StreamSink) Write(_ int, _ Kind, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(record)
	return err
}
