package tcp

import (
	"golang.org/x/sys/unix"
)

// ISyscalls is a layer of indirection for the socket system calls used by
// the TCP transport. Every method behaves exactly like the identically named
// POSIX function: no retries, no interpretation of errno values.
//
// The real implementation is returned by NewSyscalls. Tests inject a scripted
// fake with WithSyscalls to simulate partial reads, forced errors or a fixed
// sequence of accepted connections.
type ISyscalls interface {
	Socket(domain, typ, proto int) (fd int, err error)
	Bind(fd int, sa unix.Sockaddr) error
	Listen(fd int, backlog int) error
	Accept(fd int) (nfd int, sa unix.Sockaddr, err error)
	Connect(fd int, sa unix.Sockaddr) error
	Close(fd int) error
	Shutdown(fd int, how int) error
	Getsockname(fd int) (unix.Sockaddr, error)
	Recv(fd int, p []byte, flags int) (n int, err error)
	// Sendmsg writes the concatenation of buffers with a single call and
	// returns the number of bytes written, which may be less than the total
	Sendmsg(fd int, buffers [][]byte, flags int) (n int, err error)
	// Poll waits for the events of fds, timeout is in milliseconds (-1 = forever)
	Poll(fds []unix.PollFd, timeout int) (n int, err error)
	GetsockoptInt(fd, level, opt int) (value int, err error)
	SetsockoptInt(fd, level, opt, value int) error
	SetsockoptTimeval(fd, level, opt int, tv *unix.Timeval) error
	SetsockoptLinger(fd, level, opt int, l *unix.Linger) error
}

// NewSyscalls returns the facade backed by the operating system
func NewSyscalls() ISyscalls {
	return &realSyscalls{}
}

// realSyscalls passes every call straight to golang.org/x/sys/unix
type realSyscalls struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see tcp.ISyscalls)
// --------------------------------------------------------------------------

func (realSyscalls) Socket(domain, typ, proto int) (int, error) {
	return unix.Socket(domain, typ, proto)
}

func (realSyscalls) Bind(fd int, sa unix.Sockaddr) error {
	return unix.Bind(fd, sa)
}

func (realSyscalls) Listen(fd int, backlog int) error {
	return unix.Listen(fd, backlog)
}

func (realSyscalls) Accept(fd int) (int, unix.Sockaddr, error) {
	return unix.Accept4(fd, acceptFlags)
}

func (realSyscalls) Connect(fd int, sa unix.Sockaddr) error {
	return unix.Connect(fd, sa)
}

func (realSyscalls) Close(fd int) error {
	return unix.Close(fd)
}

func (realSyscalls) Shutdown(fd int, how int) error {
	return unix.Shutdown(fd, how)
}

func (realSyscalls) Getsockname(fd int) (unix.Sockaddr, error) {
	return unix.Getsockname(fd)
}

func (realSyscalls) Recv(fd int, p []byte, flags int) (int, error) {
	n, _, err := unix.Recvfrom(fd, p, flags)
	return n, err
}

func (realSyscalls) Sendmsg(fd int, buffers [][]byte, flags int) (int, error) {
	return unix.SendmsgBuffers(fd, buffers, nil, nil, flags)
}

func (realSyscalls) Poll(fds []unix.PollFd, timeout int) (int, error) {
	return unix.Poll(fds, timeout)
}

func (realSyscalls) GetsockoptInt(fd, level, opt int) (int, error) {
	return unix.GetsockoptInt(fd, level, opt)
}

func (realSyscalls) SetsockoptInt(fd, level, opt, value int) error {
	return unix.SetsockoptInt(fd, level, opt, value)
}

func (realSyscalls) SetsockoptTimeval(fd, level, opt int, tv *unix.Timeval) error {
	return unix.SetsockoptTimeval(fd, level, opt, tv)
}

func (realSyscalls) SetsockoptLinger(fd, level, opt int, l *unix.Linger) error {
	return unix.SetsockoptLinger(fd, level, opt, l)
}
