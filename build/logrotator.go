package build

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrick/logrotate/rotator"
)

// RotatingLogWriter feeds the daemon log into a size based file rotator.
// Writes made before InitLogRotator, or after Close, are discarded.
type RotatingLogWriter struct {
	mu sync.Mutex

	pipe *io.PipeWriter

	// done is closed once the rotator has drained the pipe.
	done chan struct{}
}

// NewRotatingLogWriter returns a writer with no file attached yet.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{}
}

// InitLogRotator starts rotating logFile, keeping at most cfg.MaxLogFiles
// rolled files of cfg.MaxLogFileSize MB each. Close must be called on
// shutdown.
func (r *RotatingLogWriter) InitLogRotator(cfg *LogConfig,
	logFile string) error {

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pipe != nil {
		return errors.New("log rotator already initialized")
	}

	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	rot, err := rotator.New(
		logFile, int64(cfg.MaxLogFileSize*1024), false, cfg.MaxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)

		// Run returns io.EOF once the write end of the pipe is closed.
		err := rot.Run(pr)
		if err != nil && !errors.Is(err, io.EOF) {
			_, _ = fmt.Fprintf(os.Stderr,
				"failed to run file rotator: %v\n", err)

			// Fail later writes instead of blocking them.
			_ = pr.CloseWithError(err)
		}
		if err := rot.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr,
				"failed to close file rotator: %v\n", err)
		}
	}()

	r.pipe = pw
	r.done = done

	return nil
}

// Write passes b to the rotator, if one is running.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	r.mu.Lock()
	pipe := r.pipe
	r.mu.Unlock()

	if pipe == nil {
		return len(b), nil
	}

	return pipe.Write(b)
}

// Close stops the rotator and waits until everything written so far is on
// disk.
func (r *RotatingLogWriter) Close() error {
	r.mu.Lock()
	pipe, done := r.pipe, r.done
	r.pipe, r.done = nil, nil
	r.mu.Unlock()

	if pipe == nil {
		return nil
	}

	err := pipe.Close()
	<-done

	return err
}
