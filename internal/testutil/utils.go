package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger for injecting into chat components under
// test. Output goes to stdout so `go test -v` interleaves it with the
// test's own logging.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}
