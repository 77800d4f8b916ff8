//go:build unix

package util

import (
	"os"
	"syscall"
)

// ShutdownSignals returns the signals that stop the recorder cleanly. A
// hangup is included so an open take is closed when the controlling
// terminal goes away.
func ShutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}
}

// GracefulSignal asks a capture or encoder process to finish. FFmpeg writes
// the file trailer on SIGINT.
func GracefulSignal(p *os.Process) error {
	return p.Signal(syscall.SIGINT)
}
