// Package server implements the dispatcher of the RPC system. It receives
// requests from any transport.ITransport, decodes the common.Message
// envelope and routes it to the handler registered for its method.
//
// The package focuses on:
//   - A fixed pool of workers, each blocked in ServerRecv, so the number of
//     requests served at the same time is ServerConfig.Workers
//   - Adapter pattern to group related handlers (see NewBuiltinAdapter)
//   - Errors of a handler travel back to the caller as error envelopes;
//     a handler returning ErrDrop makes the server hang up without a reply
//
// Key Components:
//
//   - HandlerFunc: Function invoked with the peer address and the request
//     body. Its result becomes the reply body.
//
//   - IRPCServerAdapter: A named set of handlers registered at once.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms. The built-in methods ping, echo
//     and methods are always registered.
//
// Usage Example:
//
//	t, err := tcp.NewTCPTransport(common.TransportConfig{Endpoint: "0.0.0.0:8080", Backlog: 1024})
//	if err != nil {
//	  log.Fatalf("Transport error: %v", err)
//	}
//
//	s := server.NewRPCServer(common.ServerConfig{Workers: 16}, t, serializer.NewBinarySerializer())
//	_ = s.Register("upper", func(peer string, body []byte) ([]byte, error) {
//	  return bytes.ToUpper(body), nil
//	})
//
//	// Serve blocks until Close is called
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	Register may be called while the server is running. Handlers are
//	invoked concurrently from up to Workers goroutines.
package server
