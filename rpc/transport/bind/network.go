package bind

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// Network connects the bind transports created from it by endpoint name
type Network struct {
	transports *xsync.MapOf[string, *bindTransport]

	// failure injection
	mu           sync.Mutex
	abortCounter int
	errorMessage string
}

// NewNetwork creates an empty network
func NewNetwork() *Network {
	return &Network{
		transports: xsync.NewMapOf[string, *bindTransport](),
	}
}

// NewTransport creates a transport listening on endpoint. An empty endpoint
// creates a client only transport. Endpoints are unique within a network.
func (n *Network) NewTransport(endpoint string) (transport.ITransport, error) {
	t := &bindTransport{
		network:  n,
		endpoint: endpoint,
		inbox:    make(chan *serverRPC, inboxSize),
		closed:   make(chan struct{}),
	}

	if endpoint == "" {
		return t, nil
	}

	if _, loaded := n.transports.LoadOrStore(endpoint, t); loaded {
		return nil, fmt.Errorf("%w: endpoint %s is already in use", transport.ErrSetup, endpoint)
	}

	Logger.Infof("Listening on %s", endpoint)
	return t, nil
}

// AbortAfter makes the count-th following RPC fail: it is delivered to the
// server but its reply is lost and GetReply fails with
// transport.ErrPeerClosed. A count of 0 cancels a pending abort.
func (n *Network) AbortAfter(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.abortCounter = count
}

// FailNext makes the next ClientSend fail with transport.ErrConnection
// carrying msg. Nothing is delivered.
func (n *Network) FailNext(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errorMessage = msg
}

// Endpoints returns the endpoints currently listening
func (n *Network) Endpoints() []string {
	endpoints := make([]string, 0, n.transports.Size())
	n.transports.Range(func(endpoint string, _ *bindTransport) bool {
		endpoints = append(endpoints, endpoint)
		return true
	})
	return endpoints
}

// injectFailure consumes the pending failures for one ClientSend. It returns
// whether the RPC has to be aborted, or the error the call has to fail with.
func (n *Network) injectFailure() (abort bool, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.errorMessage != "" {
		err = fmt.Errorf("%w: %s", transport.ErrConnection, n.errorMessage)
		n.errorMessage = ""
		return false, err
	}

	if n.abortCounter > 0 {
		n.abortCounter--
		if n.abortCounter == 0 {
			return true, nil
		}
	}
	return false, nil
}
