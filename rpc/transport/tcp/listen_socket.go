package tcp

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dRPC/rpc/transport"
	"golang.org/x/sys/unix"
)

// listenSocket is a socket which can only accept new connections
type listenSocket struct {
	*socket
	local  string
	closed atomic.Bool
	// inAccept is held (read) for the duration of every accept call so the
	// descriptor is not closed, and its number reused, under a blocked accept
	inAccept sync.RWMutex
}

// newListenSocket creates, binds and starts listening on endpoint.
// Every failure is returned wrapped in transport.ErrSetup and leaves no
// descriptor behind.
func newListenSocket(sys ISyscalls, endpoint string, backlog int) (*listenSocket, error) {
	sa, family, err := resolveEndpoint(endpoint)
	if err != nil {
		return nil, withCause(transport.ErrSetup, err, "resolve %s", endpoint)
	}

	fd, err := sys.Socket(family, socketType, 0)
	if err != nil {
		return nil, withCause(transport.ErrSetup, err, "socket")
	}

	l := &listenSocket{socket: newSocket(sys)}
	l.assign(fd)

	fail := func(step string, err error) (*listenSocket, error) {
		l.close()
		return nil, withCause(transport.ErrSetup, err, "%s %s", step, endpoint)
	}

	if err := sys.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("set SO_REUSEADDR on", err)
	}
	if err := sys.Bind(fd, sa); err != nil {
		return fail("bind", err)
	}
	if err := sys.Listen(fd, backlog); err != nil {
		return fail("listen on", err)
	}

	// report the real port if the kernel picked one
	l.local = endpoint
	if bound, err := sys.Getsockname(fd); err == nil {
		l.local = sockaddrString(bound)
	}

	return l, nil
}

// accept blocks until a peer connects and returns the new connection and the
// peer address. Interrupted and aborted accepts are retried. After shutdown
// it returns transport.ErrTransportClosed.
func (l *listenSocket) accept() (*socket, string, error) {
	l.inAccept.RLock()
	defer l.inAccept.RUnlock()

	for {
		if l.closed.Load() {
			return nil, "", transport.ErrTransportClosed
		}

		nfd, sa, err := l.sys.Accept(l.descriptor())
		if err == nil {
			conn := newSocket(l.sys)
			conn.assign(nfd)
			return conn, sockaddrString(sa), nil
		}

		if l.closed.Load() {
			return nil, "", transport.ErrTransportClosed
		}

		switch err {
		case unix.EINTR, unix.ECONNABORTED, unix.EAGAIN, unix.EPROTO:
			continue
		default:
			return nil, "", withCause(transport.ErrConnection, err, "accept")
		}
	}
}

// shutdown wakes every blocked accept and then releases the descriptor.
// It is safe to call more than once.
func (l *listenSocket) shutdown() {
	if l.closed.Swap(true) {
		return
	}

	// wake blocked accepts (the descriptor is still open here)
	l.socket.shutdown()

	// wait until no accept uses the descriptor any more
	l.inAccept.Lock()
	l.close()
	l.inAccept.Unlock()
}
