package logger

import (
	"bytes"
	"io"
	"sync"
)

// Replay holds records in memory while a full-screen program owns the
// terminal, and writes them out afterwards.
type Replay struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (r *Replay) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

// Flush writes the held records to w and empties the buffer.
func (r *Replay) Flush(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.buf.WriteTo(w)
	return err
}
