// internal/eventlog/file.go
package eventlog

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileRecorder appends events to a file as a CBOR sequence.
// It is safe for concurrent use.
type FileRecorder struct {
	mu     sync.Mutex
	file   *os.File
	enc    *cbor.Encoder
	closed bool
}

// NewFileRecorder opens path for appending, creating it with 0644 if needed.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileRecorder{file: f, enc: encMode.NewEncoder(f)}, nil
}

// Record writes e. Encoding errors are dropped: the journal must never
// disturb the control loop.
func (r *FileRecorder) Record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	_ = r.enc.Encode(e)
}

// Close closes the file. Later Record calls are ignored.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

var _ Recorder = (*FileRecorder)(nil)
