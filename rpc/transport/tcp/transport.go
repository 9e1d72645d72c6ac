package tcp

import (
	"time"

	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var Logger = logger.GetLogger("transport/tcp")

const (
	defaultBacklog = 1024

	// bounds of the pause after a failed accept
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Option customizes a TCP transport
type Option func(t *tcpTransport)

// WithSyscalls replaces the operating system facade, used by tests
func WithSyscalls(sys ISyscalls) Option {
	return func(t *tcpTransport) {
		t.sys = sys
	}
}

// tcpTransport implements transport.ITransport over plain TCP sockets with
// one connection per RPC
type tcpTransport struct {
	sys      ISyscalls
	config   common.TransportConfig
	listener *listenSocket // nil for client only transports
}

// --------------------------------------------------------------------------
// Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPTransport creates a TCP transport. If config.Endpoint is set the
// transport binds and listens on it right away, a failure to do so is
// returned wrapped in transport.ErrSetup. Without an endpoint the transport
// can only send.
func NewTCPTransport(config common.TransportConfig, opts ...Option) (transport.ITransport, error) {
	t := &tcpTransport{
		sys:    NewSyscalls(),
		config: config,
	}
	for _, opt := range opts {
		opt(t)
	}

	if config.Endpoint == "" {
		return t, nil
	}

	backlog := config.Backlog
	if backlog <= 0 {
		backlog = defaultBacklog
	}

	listener, err := newListenSocket(t.sys, config.Endpoint, backlog)
	if err != nil {
		return nil, err
	}
	t.listener = listener

	Logger.Infof("Listening on %s (backlog %d)", listener.local, backlog)
	return t, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.ITransport)
// --------------------------------------------------------------------------

func (t *tcpTransport) GetName() string {
	return "tcp"
}

func (t *tcpTransport) Endpoint() string {
	if t.listener == nil {
		return ""
	}
	return t.listener.local
}

func (t *tcpTransport) ServerRecv() (transport.IServerRPC, error) {
	if t.listener == nil {
		return nil, transport.ErrNoListener
	}

	var delay time.Duration
	for {
		sock, peer, err := t.listener.accept()
		if errors.Is(err, transport.ErrTransportClosed) {
			return nil, err
		}

		// Case accept error: back off and keep serving
		if err != nil {
			metricAcceptErrors.Inc()
			delay = nextAcceptDelay(delay)
			Logger.Errorf("Accept error: %v; retrying in %v", err, delay)
			time.Sleep(delay)
			continue
		}
		delay = 0
		metricAccepted.Inc()

		if err := applySocketOptions(t.sys, sock.descriptor(), t.config); err != nil {
			Logger.Errorf("Failed to configure connection from %s: %v", peer, err)
			sock.close()
			continue
		}

		conn := newServerSocket(sock, peer, t.config)
		request, err := conn.receive()

		// Case read error: drop this connection only
		if err != nil {
			countError(err)
			if errors.Is(err, transport.ErrPeerClosed) {
				Logger.Debugf("Connection from %s closed before sending a request", peer)
			} else {
				Logger.Warningf("Dropping connection from %s: %v", peer, err)
			}
			conn.close()
			continue
		}

		return &serverRPC{conn: conn, request: request}, nil
	}
}

func (t *tcpTransport) ClientSend(endpoint string, request []byte) (transport.IClientRPC, error) {
	// check before connecting so an oversized request costs no connection
	if len(request) > MaxRPCLen {
		return nil, errors.Wrapf(transport.ErrFrameTooLarge, "request of %d bytes to %s", len(request), endpoint)
	}

	conn, err := dialClientSocket(t.sys, endpoint, t.config)
	if err != nil {
		countError(err)
		return nil, err
	}

	if err := conn.send(request); err != nil {
		countError(err)
		conn.close()
		return nil, errors.Wrapf(err, "request to %s", endpoint)
	}

	return &clientRPC{conn: conn}, nil
}

func (t *tcpTransport) Close() error {
	if t.listener != nil {
		t.listener.shutdown()
		Logger.Infof("Stopped listening on %s", t.listener.local)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// nextAcceptDelay doubles the previous pause within [minAcceptDelay, maxAcceptDelay]
func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	if next := prev * 2; next < maxAcceptDelay {
		return next
	}
	return maxAcceptDelay
}
