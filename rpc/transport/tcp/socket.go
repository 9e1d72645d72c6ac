package tcp

import (
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// noFD marks a socket that does not own a descriptor
const noFD = -1

// socket owns exactly one descriptor and closes it exactly once.
// It is always handled by pointer, never copied.
type socket struct {
	sys ISyscalls
	mu  sync.Mutex
	fd  int
}

// newSocket creates a socket that does not own a descriptor yet
func newSocket(sys ISyscalls) *socket {
	return &socket{sys: sys, fd: noFD}
}

// assign hands ownership of fd to the socket. A descriptor still owned when
// the socket is garbage collected is closed by a finalizer, which drops the
// connection of an RPC that was neither answered nor ignored.
func (s *socket) assign(fd int) {
	s.mu.Lock()
	s.fd = fd
	s.mu.Unlock()
	runtime.SetFinalizer(s, (*socket).close)
}

// descriptor returns the owned descriptor or noFD
func (s *socket) descriptor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fd
}

// shutdown shuts both directions of the connection down, which wakes every
// call blocked on the descriptor. The descriptor stays owned until close.
func (s *socket) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fd == noFD {
		return
	}
	if err := s.sys.Shutdown(s.fd, unix.SHUT_RDWR); err != nil {
		Logger.Debugf("Shutdown of descriptor %d: %v", s.fd, err)
	}
}

// close releases the descriptor if one is owned. Errors are logged, not
// returned: the descriptor is gone either way and retrying close is unsafe.
func (s *socket) close() {
	s.mu.Lock()
	fd := s.fd
	s.fd = noFD
	s.mu.Unlock()

	if fd == noFD {
		return
	}
	runtime.SetFinalizer(s, nil)

	if err := s.sys.Close(fd); err != nil {
		Logger.Warningf("Failed to close descriptor %d: %v", fd, err)
	}
}
