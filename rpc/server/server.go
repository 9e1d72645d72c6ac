package server

import (
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters.
// The built-in methods (ping, echo, methods) are registered right away.
//
// Usage:
//
//	t, err := tcp.NewTCPTransport(config.Transport)
//	if err != nil {
//		return err
//	}
//
//	s := server.NewRPCServer(*config, t, serializer.NewBinarySerializer())
//	_ = s.Register("hello", func(peer string, body []byte) ([]byte, error) {
//		return []byte("hello " + peer), nil
//	})
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.ITransport,
	serializer serializer.IRPCSerializer,
) IRPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		methods:    xsync.NewMapOf[string, HandlerFunc](),
	}

	// the built-in methods can not collide on an empty table
	_ = s.RegisterAdapter(NewBuiltinAdapter(s))

	Logger.Infof("Created RPC Server (%s transport, %s serializer)", transport.GetName(), serializer.GetName())
	Logger.Infof(config.String())

	return s
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.ITransport
	serializer serializer.IRPCSerializer
	methods    *xsync.MapOf[string, HandlerFunc]
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServer)
// --------------------------------------------------------------------------

func (s *rpcServer) Register(method string, handler HandlerFunc) error {
	if method == "" {
		return fmt.Errorf("method name must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler for %s is nil", method)
	}
	if _, loaded := s.methods.LoadOrStore(method, handler); loaded {
		return fmt.Errorf("method %s is already registered", method)
	}
	Logger.Debugf("Registered method %s", method)
	return nil
}

func (s *rpcServer) RegisterAdapter(adapter IRPCServerAdapter) error {
	for method, handler := range adapter.Methods() {
		if err := s.Register(method, handler); err != nil {
			return err
		}
	}
	return nil
}

func (s *rpcServer) Methods() []string {
	methods := make([]string, 0, s.methods.Size())
	s.methods.Range(func(method string, _ HandlerFunc) bool {
		methods = append(methods, method)
		return true
	})
	sort.Strings(methods)
	return methods
}

func (s *rpcServer) Serve() error {
	workers := s.config.Workers
	if workers < 1 {
		workers = 1
	}

	Logger.Infof("Serving on %s with %d workers", s.transport.Endpoint(), workers)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(s.worker)
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("rpc server stopped: %w", err)
	}

	Logger.Infof("RPC Server stopped")
	return nil
}

func (s *rpcServer) Close() error {
	return s.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// worker receives and handles requests one after another until the
// transport is closed
func (s *rpcServer) worker() error {
	for {
		rpc, err := s.transport.ServerRecv()
		if errors.Is(err, transport.ErrTransportClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		s.handle(rpc)
	}
}

// handle answers a single request. It never returns an error: whatever
// happens is reported to the caller or logged.
func (s *rpcServer) handle(rpc transport.IServerRPC) {
	start := time.Now()

	var req common.Message
	var resp *common.Message

	if err := s.serializer.Deserialize(rpc.Request(), &req); err != nil {
		resp = common.NewErrorResponse("", fmt.Sprintf("failed to deserialize request: %s", err))
	} else if req.MsgType != common.MsgTRequest {
		resp = common.NewErrorResponse(req.Method, fmt.Sprintf("unexpected message type %s", req.MsgType))
	} else if handler, ok := s.methods.Load(req.Method); !ok {
		resp = common.NewErrorResponse(req.Method, fmt.Sprintf("unknown method %q", req.Method))
	} else {
		body, err := s.invoke(handler, rpc.Peer(), req.Body)

		// Case handler wants the request dropped
		if errors.Is(err, ErrDrop) {
			Logger.Debugf("Dropping %s request from %s", req.Method, rpc.Peer())
			_ = rpc.Ignore()
			metrics.GetOrCreateCounter(fmt.Sprintf(`drpc_rpc_dropped_total{method=%q}`, req.Method)).Inc()
			return
		}

		if err != nil {
			resp = common.NewErrorResponse(req.Method, err.Error())
		} else {
			resp = common.NewReply(req.Method, body)
		}
	}

	data, err := s.serializer.Serialize(*resp)
	if err != nil {
		Logger.Errorf("Failed to serialize response to %s: %v", req.Method, err)
		_ = rpc.Ignore()
		return
	}

	if err := rpc.SendReply(data); err != nil {
		Logger.Warningf("Failed to send reply for %s to %s: %v", req.Method, rpc.Peer(), err)
	}

	if resp.MsgType == common.MsgTError {
		metrics.GetOrCreateCounter(fmt.Sprintf(`drpc_rpc_errors_total{method=%q}`, req.Method)).Inc()
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`drpc_rpc_requests_total{method=%q}`, req.Method)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`drpc_rpc_duration_seconds{method=%q}`, req.Method)).UpdateDuration(start)
}

// invoke runs handler and turns a panic into an error
func (s *rpcServer) invoke(handler HandlerFunc, peer string, body []byte) (reply []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("Handler panicked: %v", r)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return handler(peer, body)
}
