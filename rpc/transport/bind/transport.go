package bind

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/ValentinKolb/dRPC/rpc/transport/tcp"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/bind")

// inboxSize plays the role of the listen backlog
const inboxSize = 1024

// result is what the client side of an RPC receives
type result struct {
	data []byte
	err  error
}

// bindTransport implements transport.ITransport on top of channels
type bindTransport struct {
	network   *Network
	endpoint  string
	inbox     chan *serverRPC
	closed    chan struct{}
	closeOnce sync.Once
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.ITransport)
// --------------------------------------------------------------------------

func (t *bindTransport) GetName() string {
	return "bind"
}

func (t *bindTransport) Endpoint() string {
	return t.endpoint
}

func (t *bindTransport) ServerRecv() (transport.IServerRPC, error) {
	if t.endpoint == "" {
		return nil, transport.ErrNoListener
	}

	// a closed transport never hands out further requests
	select {
	case <-t.closed:
		return nil, transport.ErrTransportClosed
	default:
	}

	select {
	case rpc := <-t.inbox:
		rpc.received.Store(true)
		return rpc, nil
	case <-t.closed:
		return nil, transport.ErrTransportClosed
	}
}

func (t *bindTransport) ClientSend(endpoint string, request []byte) (transport.IClientRPC, error) {
	if len(request) > tcp.MaxRPCLen {
		return nil, fmt.Errorf("%w: request of %d bytes to %s", transport.ErrFrameTooLarge, len(request), endpoint)
	}

	abort, err := t.network.injectFailure()
	if err != nil {
		Logger.Debugf("Injected failure for request to %s: %v", endpoint, err)
		return nil, err
	}

	target, ok := t.network.transports.Load(endpoint)
	if !ok {
		return nil, fmt.Errorf("%w: no transport listening on %s", transport.ErrConnection, endpoint)
	}

	peer := t.endpoint
	if peer == "" {
		peer = "bind-client"
	}

	rpc := &serverRPC{
		request: append([]byte(nil), request...),
		peer:    peer,
		replyCh: make(chan result, 1),
		aborted: abort,
	}

	select {
	case target.inbox <- rpc:
	case <-target.closed:
		return nil, fmt.Errorf("%w: %s was closed", transport.ErrConnection, endpoint)
	}

	return &clientRPC{rpc: rpc, target: target, abandoned: make(chan struct{})}, nil
}

func (t *bindTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.endpoint == "" {
			return
		}
		t.network.transports.Delete(t.endpoint)

		// requests nobody received are dropped
		for {
			select {
			case rpc := <-t.inbox:
				_ = rpc.Ignore()
			default:
				Logger.Infof("Stopped listening on %s", t.endpoint)
				return
			}
		}
	})
	return nil
}

// --------------------------------------------------------------------------
// RPC Types
// --------------------------------------------------------------------------

// serverRPC is one request delivered to a bind transport
type serverRPC struct {
	request  []byte
	peer     string
	replyCh  chan result
	aborted  bool
	received atomic.Bool
	finished atomic.Bool
}

func (r *serverRPC) Request() []byte {
	return r.request
}

func (r *serverRPC) Peer() string {
	return r.peer
}

func (r *serverRPC) SendReply(reply []byte) error {
	if !r.finished.CompareAndSwap(false, true) {
		return transport.ErrRPCFinished
	}

	// like a failed write the connection is gone for the client
	if len(reply) > tcp.MaxRPCLen {
		r.replyCh <- result{err: transport.ErrPeerClosed}
		return fmt.Errorf("%w: reply of %d bytes", transport.ErrFrameTooLarge, len(reply))
	}

	if r.aborted {
		Logger.Debugf("Dropping reply to %s (aborted)", r.peer)
		r.replyCh <- result{err: transport.ErrPeerClosed}
		return nil
	}

	r.replyCh <- result{data: append([]byte(nil), reply...)}
	return nil
}

func (r *serverRPC) Ignore() error {
	if !r.finished.CompareAndSwap(false, true) {
		return transport.ErrRPCFinished
	}
	r.replyCh <- result{err: transport.ErrPeerClosed}
	return nil
}

// clientRPC is the sending side of a serverRPC
type clientRPC struct {
	rpc       *serverRPC
	target    *bindTransport
	finished  atomic.Bool
	abandoned chan struct{}
	closeOnce sync.Once
}

func (r *clientRPC) GetReply() ([]byte, error) {
	if !r.finished.CompareAndSwap(false, true) {
		return nil, transport.ErrRPCFinished
	}

	var res result
	select {
	case res = <-r.rpc.replyCh:
	case <-r.abandoned:
		res = result{err: transport.ErrPeerClosed}
	case <-r.target.closed:
		// requests already handed to a worker are still answered
		if r.rpc.received.Load() {
			res = <-r.rpc.replyCh
			break
		}
		select {
		case res = <-r.rpc.replyCh:
		default:
			res = result{err: transport.ErrPeerClosed}
		}
	}

	if res.err != nil {
		return nil, fmt.Errorf("reply from %s: %w", r.target.endpoint, res.err)
	}
	return res.data, nil
}

func (r *clientRPC) Close() error {
	r.finished.Store(true)
	r.closeOnce.Do(func() { close(r.abandoned) })
	return nil
}
