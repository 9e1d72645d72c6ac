package tcp

import (
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// clientSocket is a message socket obtained from connect
type clientSocket struct {
	*messageSocket
	endpoint string
}

// dialClientSocket opens a new connection to endpoint. The connect timeout
// is installed as send timeout for the duration of connect and replaced by
// the write timeout afterwards.
func dialClientSocket(sys ISyscalls, endpoint string, config common.TransportConfig) (*clientSocket, error) {
	sa, family, err := resolveEndpoint(endpoint)
	if err != nil {
		return nil, withCause(transport.ErrConnection, err, "resolve %s", endpoint)
	}

	fd, err := sys.Socket(family, socketType, 0)
	if err != nil {
		return nil, withCause(transport.ErrConnection, err, "socket")
	}
	sock := newSocket(sys)
	sock.assign(fd)

	dialConfig := config
	dialConfig.WriteTimeout = config.ConnectTimeout
	if err := applySocketOptions(sys, fd, dialConfig); err != nil {
		sock.close()
		return nil, withCause(transport.ErrConnection, err, "%s", endpoint)
	}

	if err := connect(sys, fd, sa, config); err != nil {
		sock.close()
		return nil, errors.Wrapf(err, "connect %s", endpoint)
	}

	if config.ConnectTimeout != config.WriteTimeout {
		// a zero write timeout has to be cleared explicitly
		tv := unix.NsecToTimeval(config.WriteTimeout.Nanoseconds())
		if config.WriteTimeout <= 0 {
			tv = unix.Timeval{}
		}
		if err := sys.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv); err != nil {
			sock.close()
			return nil, withCause(transport.ErrConnection, err, "set SO_SNDTIMEO on %s", endpoint)
		}
	}

	metricConnects.Inc()
	return &clientSocket{
		messageSocket: newMessageSocket(sock, config),
		endpoint:      endpoint,
	}, nil
}

// connect runs the connect call. An interrupted connect keeps going in the
// kernel, so instead of calling connect again (EALREADY until it is done)
// the descriptor is polled for writability and the outcome read from SO_ERROR.
func connect(sys ISyscalls, fd int, sa unix.Sockaddr, config common.TransportConfig) error {
	err := sys.Connect(fd, sa)
	if err == unix.EINTR {
		err = awaitConnect(sys, fd, config.ConnectTimeout)
	}

	switch err {
	case nil, unix.EISCONN:
		return nil
	case unix.EINPROGRESS, unix.EAGAIN, unix.ETIMEDOUT:
		return &causeError{kind: transport.ErrTimeout, cause: err}
	default:
		return &causeError{kind: transport.ErrConnection, cause: err}
	}
}

// awaitConnect waits for a connect in progress to finish, at most timeout
// (0 = forever). An interrupted poll is repeated with the remaining time.
func awaitConnect(sys ISyscalls, fd int, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		wait := -1
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return unix.ETIMEDOUT
			}
			wait = int((remaining + time.Millisecond - 1) / time.Millisecond)
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := sys.Poll(fds, wait)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return unix.ETIMEDOUT
		}

		soErr, err := sys.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return err
		}
		if soErr != 0 {
			return unix.Errno(soErr)
		}
		return nil
	}
}

// clientRPC is one outbound RPC whose request has been written
type clientRPC struct {
	conn     *clientSocket
	finished atomic.Bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientRPC)
// --------------------------------------------------------------------------

func (r *clientRPC) GetReply() ([]byte, error) {
	if !r.finished.CompareAndSwap(false, true) {
		return nil, transport.ErrRPCFinished
	}
	defer r.conn.close()

	reply, err := r.conn.receive()
	if err != nil {
		countError(err)
		return nil, errors.Wrapf(err, "reply from %s", r.conn.endpoint)
	}
	return reply, nil
}

func (r *clientRPC) Close() error {
	if r.finished.CompareAndSwap(false, true) {
		r.conn.close()
		return nil
	}
	// a GetReply may be blocked on the descriptor, wake it and let it close
	r.conn.shutdown()
	return nil
}
