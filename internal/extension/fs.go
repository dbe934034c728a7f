package extension

import (
	"io"
	"os"
	"sync"
)

// FileSystem is what the loader needs from the filesystem.
type FileSystem interface {
	// IsDir reports whether path exists and is a directory.
	IsDir(path string) bool

	// ReadDir lists the entry names of a directory in the order the
	// loader should visit them.
	ReadDir(path string) ([]string, error)

	// ReadFile returns the contents of a file.
	ReadFile(path string) ([]byte, error)
}

// OSFileSystem reads the host filesystem. ReadDir returns names sorted by
// filename.
type OSFileSystem struct{}

// IsDir implements FileSystem.
func (OSFileSystem) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ReadDir implements FileSystem.
func (OSFileSystem) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// ReadFile implements FileSystem.
func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ErrorSink receives load failure reports meant for the user.
type ErrorSink interface {
	WriteError(text string)
}

// WriterSink writes error reports to an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	W  io.Writer
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{W: w}
}

// WriteError implements ErrorSink.
func (s *WriterSink) WriteError(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.W, text)
}

// SinkFunc adapts a function to ErrorSink.
type SinkFunc func(text string)

// WriteError implements ErrorSink.
func (f SinkFunc) WriteError(text string) { f(text) }
