package transport

// --------------------------------------------------------------------------
// Inbound RPC
// --------------------------------------------------------------------------

// IServerRPC is one request received by the server side together with the
// connection used to eventually answer it.
// Exactly one of SendReply or Ignore may succeed, every later call returns
// ErrRPCFinished.
type IServerRPC interface {
	// Request returns the complete request payload
	Request() []byte
	// Peer returns the address of the client that sent the request
	Peer() string
	// SendReply writes reply as one message and closes the connection
	SendReply(reply []byte) error
	// Ignore closes the connection without answering
	Ignore() error
}

// --------------------------------------------------------------------------
// Outbound RPC
// --------------------------------------------------------------------------

// IClientRPC is one request that has been sent and is awaiting its reply.
type IClientRPC interface {
	// GetReply blocks until the complete reply has arrived and returns it.
	// The connection is closed afterwards, whether or not the read succeeded.
	GetReply() ([]byte, error)
	// Close abandons the RPC without waiting for the reply. A GetReply
	// blocked at the same time returns ErrPeerClosed.
	Close() error
}

// --------------------------------------------------------------------------
// Transport
// --------------------------------------------------------------------------

// ITransport is the capability the dispatcher layers above depend on.
// Each RPC uses its own connection.
type ITransport interface {
	// ServerRecv blocks until one complete request is available.
	// It only fails once the transport is closed or cannot receive at all.
	ServerRecv() (IServerRPC, error)
	// ClientSend delivers request to endpoint and returns a handle used to
	// fetch the reply later. Failures to reach the endpoint are returned here.
	ClientSend(endpoint string, request []byte) (IClientRPC, error)
	// Endpoint returns the address this transport receives on
	Endpoint() string
	// GetName returns the name of the transport type (e.g., "tcp", "bind")
	GetName() string
	// Close stops receiving. RPCs already handed out stay usable.
	Close() error
}
