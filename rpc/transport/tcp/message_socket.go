package tcp

import (
	"encoding/binary"
	"io"

	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// HeaderLen is the size of the frame header: one big-endian uint32
	// holding the length of the payload that follows
	HeaderLen = 4

	// MaxRPCLen is the largest payload either side accepts (8 MiB)
	MaxRPCLen = 1 << 23

	defaultRetryBudget = 32
)

// messageSocket sends and receives one complete length-prefixed message
// at a time over a connected socket.
//
// Wire format of a frame:
//
//	0        4
//	┌────────┬──────────────────┐
//	│ length │ payload ...      │
//	│ uint32 │ length bytes     │
//	└────────┴──────────────────┘
type messageSocket struct {
	*socket
	retryBudget int
	// with a configured timeout EAGAIN means the deadline expired
	readTimeout  bool
	writeTimeout bool
}

func newMessageSocket(sock *socket, config common.TransportConfig) *messageSocket {
	budget := config.RetryBudget
	if budget <= 0 {
		budget = defaultRetryBudget
	}
	return &messageSocket{
		socket:       sock,
		retryBudget:  budget,
		readTimeout:  config.ReadTimeout > 0,
		writeTimeout: config.WriteTimeout > 0,
	}
}

// send writes the header and the payload, looping over partial writes.
// Payloads larger than MaxRPCLen are refused before anything is written.
func (m *messageSocket) send(payload []byte) error {
	if len(payload) > MaxRPCLen {
		return errors.Wrapf(transport.ErrFrameTooLarge, "send %d bytes (max %d)", len(payload), MaxRPCLen)
	}

	var header [HeaderLen]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	buffers := [][]byte{header[:], payload}
	total := HeaderLen + len(payload)
	sent, retries := 0, 0

	for sent < total {
		n, err := m.sys.Sendmsg(m.descriptor(), unsent(buffers, sent), sendFlags)
		if err != nil {
			if err == unix.EAGAIN && m.writeTimeout {
				return withCause(transport.ErrTimeout, err, "send: %d of %d bytes written", sent, total)
			}
			if !isTransient(err) {
				return withCause(transport.ErrConnection, err, "send")
			}
			retries++
			if retries > m.retryBudget {
				return withCause(transport.ErrConnection, err, "send: gave up after %d retries", m.retryBudget)
			}
			continue
		}
		if n == 0 {
			// no progress without an error, count it against the budget
			retries++
			if retries > m.retryBudget {
				return errors.Wrapf(transport.ErrConnection, "send: no progress after %d attempts", m.retryBudget)
			}
			continue
		}
		sent += n
		retries = 0
	}

	metricFramesSent.Inc()
	metricBytesSent.Add(total)
	return nil
}

// receive reads exactly one frame and returns its payload.
//
// A peer that closes before the first header byte yields ErrPeerClosed, a
// close anywhere inside the frame yields ErrTruncated. A declared length
// above MaxRPCLen yields ErrFrameTooLarge before the payload is allocated.
func (m *messageSocket) receive() ([]byte, error) {
	var header [HeaderLen]byte
	n, err := m.readFull(header[:])
	if err == io.EOF {
		if n == 0 {
			return nil, transport.ErrPeerClosed
		}
		return nil, errors.Wrapf(transport.ErrTruncated, "header: got %d of %d bytes", n, HeaderLen)
	}
	if err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxRPCLen {
		return nil, errors.Wrapf(transport.ErrFrameTooLarge, "declared length %d (max %d)", length, MaxRPCLen)
	}

	payload := make([]byte, length)
	n, err = m.readFull(payload)
	if err == io.EOF {
		return nil, errors.Wrapf(transport.ErrTruncated, "payload: got %d of %d bytes", n, length)
	}
	if err != nil {
		return nil, err
	}

	metricFramesReceived.Inc()
	metricBytesReceived.Add(HeaderLen + int(length))
	return payload, nil
}

// readFull fills buf, issuing as many receive calls as needed. It returns
// io.EOF together with the number of bytes read if the peer closed first.
func (m *messageSocket) readFull(buf []byte) (int, error) {
	read, retries := 0, 0
	for read < len(buf) {
		n, err := m.sys.Recv(m.descriptor(), buf[read:], 0)
		if err != nil {
			if err == unix.EAGAIN && m.readTimeout {
				return read, withCause(transport.ErrTimeout, err, "receive: %d of %d bytes read", read, len(buf))
			}
			if !isTransient(err) {
				return read, withCause(transport.ErrConnection, err, "receive")
			}
			retries++
			if retries > m.retryBudget {
				return read, withCause(transport.ErrConnection, err, "receive: gave up after %d retries", m.retryBudget)
			}
			continue
		}
		if n == 0 {
			return read, io.EOF
		}
		read += n
		retries = 0
	}
	return read, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// isTransient reports whether a failed call may simply be repeated
func isTransient(err error) bool {
	switch err {
	case unix.EINTR, unix.EAGAIN, unix.ENOBUFS:
		return true
	default:
		return false
	}
}

// unsent returns the part of buffers that follows the first skip bytes
func unsent(buffers [][]byte, skip int) [][]byte {
	rest := make([][]byte, 0, len(buffers))
	for _, b := range buffers {
		if skip >= len(b) {
			skip -= len(b)
			continue
		}
		rest = append(rest, b[skip:])
		skip = 0
	}
	return rest
}
