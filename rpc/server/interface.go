package server

import (
	"errors"
)

// ErrDrop is returned by a handler that wants the request dropped: the
// connection is closed without a reply and the caller sees ErrPeerClosed.
var ErrDrop = errors.New("drop request")

// HandlerFunc handles the body of one request and returns the reply body.
// A returned error is sent back to the caller as an error envelope, unless
// it is ErrDrop.
type HandlerFunc func(peer string, body []byte) ([]byte, error)

// IRPCServerAdapter is the interface for groups of handlers that are
// registered together (see NewBuiltinAdapter)
type IRPCServerAdapter interface {
	// Methods returns the handlers of the adapter by method name
	Methods() map[string]HandlerFunc
}

// IRPCServer dispatches the requests received by a transport to handlers
type IRPCServer interface {
	// Register adds a handler for method. Registering a method twice is an error.
	Register(method string, handler HandlerFunc) error
	// RegisterAdapter registers all handlers of adapter
	RegisterAdapter(adapter IRPCServerAdapter) error
	// Methods returns the sorted names of all registered methods
	Methods() []string
	// Serve blocks and handles requests with config.Workers goroutines until
	// Close is called. It returns nil after a clean shutdown.
	Serve() error
	// Close stops the transport, which makes Serve return
	Close() error
}
