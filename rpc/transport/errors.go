package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrSetup means the transport could not start listening
	ErrSetup = errors.New("transport setup failed")

	// ErrConnection is the parent of every error that is local to one RPC
	ErrConnection = errors.New("connection error")

	// ErrPeerClosed is returned when the peer hung up before sending any byte of a frame
	ErrPeerClosed = fmt.Errorf("%w: closed by peer", ErrConnection)

	// ErrTimeout is returned when a configured socket deadline expired
	ErrTimeout = fmt.Errorf("%w: timed out", ErrConnection)

	// ErrFraming is the parent of all errors caused by a corrupt or truncated frame
	ErrFraming = fmt.Errorf("%w: framing error", ErrConnection)

	// ErrFrameTooLarge is returned for frames longer than the agreed maximum
	ErrFrameTooLarge = fmt.Errorf("%w: frame too large", ErrFraming)

	// ErrTruncated is returned when the stream ended in the middle of a frame
	ErrTruncated = fmt.Errorf("%w: truncated message", ErrFraming)

	// ErrRPCFinished is returned when an RPC is answered, ignored or read twice
	ErrRPCFinished = errors.New("rpc already finished")

	// ErrTransportClosed is returned by ServerRecv after Close
	ErrTransportClosed = errors.New("transport closed")

	// ErrNoListener is returned by ServerRecv on a client-only transport
	ErrNoListener = errors.New("transport has no listener")
)
