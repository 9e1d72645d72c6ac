package tcp

import (
	"sync/atomic"

	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport"
)

// serverSocket is a message socket obtained from accept
type serverSocket struct {
	*messageSocket
	peer string
}

func newServerSocket(sock *socket, peer string, config common.TransportConfig) *serverSocket {
	return &serverSocket{
		messageSocket: newMessageSocket(sock, config),
		peer:          peer,
	}
}

// serverRPC is one inbound RPC: the connection it arrived on and the request
type serverRPC struct {
	conn     *serverSocket
	request  []byte
	finished atomic.Bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerRPC)
// --------------------------------------------------------------------------

func (r *serverRPC) Request() []byte {
	return r.request
}

func (r *serverRPC) Peer() string {
	return r.conn.peer
}

func (r *serverRPC) SendReply(reply []byte) error {
	if !r.finished.CompareAndSwap(false, true) {
		return transport.ErrRPCFinished
	}
	defer r.conn.close()

	if err := r.conn.send(reply); err != nil {
		countError(err)
		return err
	}
	return nil
}

func (r *serverRPC) Ignore() error {
	if !r.finished.CompareAndSwap(false, true) {
		return transport.ErrRPCFinished
	}
	r.conn.close()
	return nil
}
