package tcp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"golang.org/x/sys/unix"
)

// newFakeTransport returns a listening transport backed by f
func newFakeTransport(t *testing.T, f *fakeSyscalls) transport.ITransport {
	t.Helper()
	config := common.DefaultTransportConfig()
	config.Endpoint = "127.0.0.1:0"

	tr, err := NewTCPTransport(config, WithSyscalls(f))
	if err != nil {
		t.Fatalf("NewTCPTransport failed: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

// TestServerRecvGrowingRequests accepts three connections in a row whose
// requests are empty, one byte and the maximum size
func TestServerRecvGrowingRequests(t *testing.T) {
	f := newFakeSyscalls(4096)
	tr := newFakeTransport(t, f)

	max := make([]byte, MaxRPCLen)
	for i := range max {
		max[i] = byte(i)
	}
	requests := [][]byte{{}, {0x01}, max}

	peers := make([]*fakeConn, len(requests))
	for i, req := range requests {
		peers[i] = &fakeConn{in: frame(req)}
		f.queueAccept(peers[i])
	}

	for i, want := range requests {
		rpc, err := tr.ServerRecv()
		if err != nil {
			t.Fatalf("ServerRecv %d failed: %v", i, err)
		}
		if !bytes.Equal(rpc.Request(), want) {
			t.Errorf("request %d: got %d bytes, want %d", i, len(rpc.Request()), len(want))
		}
		if rpc.Peer() != "10.0.0.1:40000" {
			t.Errorf("request %d: peer = %q", i, rpc.Peer())
		}
		if err := rpc.SendReply([]byte("ok")); err != nil {
			t.Errorf("request %d: SendReply failed: %v", i, err)
		}
		if !bytes.Equal(peers[i].out.Bytes(), frame([]byte("ok"))) {
			t.Errorf("request %d: reply on the wire = %v", i, peers[i].out.Bytes())
		}
	}

	// a buffer of exactly the declared size is used for the payload
	if peers[2].largestRecv != MaxRPCLen {
		t.Errorf("largest receive buffer = %d; want %d", peers[2].largestRecv, MaxRPCLen)
	}
}

func TestServerRPCFinishesOnce(t *testing.T) {
	f := newFakeSyscalls(3)
	tr := newFakeTransport(t, f)
	f.queueAccept(&fakeConn{in: frame([]byte("hello"))})

	rpc, err := tr.ServerRecv()
	if err != nil {
		t.Fatalf("ServerRecv failed: %v", err)
	}
	fd := rpc.(*serverRPC).conn.descriptor()

	if err := rpc.SendReply([]byte("world")); err != nil {
		t.Fatalf("SendReply failed: %v", err)
	}
	if err := rpc.Ignore(); !errors.Is(err, transport.ErrRPCFinished) {
		t.Errorf("Ignore after SendReply = %v; want ErrRPCFinished", err)
	}
	if err := rpc.SendReply([]byte("again")); !errors.Is(err, transport.ErrRPCFinished) {
		t.Errorf("second SendReply = %v; want ErrRPCFinished", err)
	}
	if got := f.closeCount(fd); got != 1 {
		t.Errorf("connection closed %d times; want 1", got)
	}
}

func TestServerRPCIgnore(t *testing.T) {
	f := newFakeSyscalls(3)
	tr := newFakeTransport(t, f)
	peer := &fakeConn{in: frame([]byte("drop me"))}
	f.queueAccept(peer)

	rpc, err := tr.ServerRecv()
	if err != nil {
		t.Fatalf("ServerRecv failed: %v", err)
	}
	fd := rpc.(*serverRPC).conn.descriptor()

	if err := rpc.Ignore(); err != nil {
		t.Fatalf("Ignore failed: %v", err)
	}
	if err := rpc.Ignore(); !errors.Is(err, transport.ErrRPCFinished) {
		t.Errorf("second Ignore = %v; want ErrRPCFinished", err)
	}
	if peer.out.Len() != 0 {
		t.Errorf("ignored RPC wrote %d bytes", peer.out.Len())
	}
	if got := f.closeCount(fd); got != 1 {
		t.Errorf("connection closed %d times; want 1", got)
	}
}

// TestServerRecvSkipsBrokenConnections checks that bad peers are dropped and
// the next good connection is returned
func TestServerRecvSkipsBrokenConnections(t *testing.T) {
	f := newFakeSyscalls(3)
	tr := newFakeTransport(t, f)

	oversized := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(oversized, MaxRPCLen+1)

	truncated := frame([]byte("0123456789"))[:HeaderLen+2]

	f.queueAccept(&fakeConn{})              // closes without a request
	f.queueAccept(&fakeConn{in: truncated}) // 2 of 10 bytes
	f.queueAccept(&fakeConn{in: oversized}) // length above the maximum
	f.queueAccept(&fakeConn{in: frame([]byte("good"))})

	rpc, err := tr.ServerRecv()
	if err != nil {
		t.Fatalf("ServerRecv failed: %v", err)
	}
	if string(rpc.Request()) != "good" {
		t.Errorf("request = %q; want %q", rpc.Request(), "good")
	}
	_ = rpc.Ignore()

	// the listener is the only descriptor still open
	if open := f.openDescriptors(); len(open) != 1 {
		t.Errorf("open descriptors = %v; want only the listener", open)
	}
}

func TestServerRecvBacksOffAfterAcceptErrors(t *testing.T) {
	f := newFakeSyscalls(3)
	f.acceptErrs = []error{errors.New("boom")}
	tr := newFakeTransport(t, f)
	f.queueAccept(&fakeConn{in: frame([]byte("after error"))})

	start := time.Now()
	rpc, err := tr.ServerRecv()
	if err != nil {
		t.Fatalf("ServerRecv failed: %v", err)
	}
	_ = rpc.Ignore()

	if elapsed := time.Since(start); elapsed < minAcceptDelay {
		t.Errorf("ServerRecv returned after %v; want a pause of at least %v", elapsed, minAcceptDelay)
	}
}

func TestServerRecvWithoutListener(t *testing.T) {
	tr, err := NewTCPTransport(common.DefaultTransportConfig(), WithSyscalls(newFakeSyscalls(3)))
	if err != nil {
		t.Fatalf("NewTCPTransport failed: %v", err)
	}
	if _, err := tr.ServerRecv(); !errors.Is(err, transport.ErrNoListener) {
		t.Errorf("ServerRecv = %v; want ErrNoListener", err)
	}
	if tr.Endpoint() != "" {
		t.Errorf("Endpoint = %q; want empty", tr.Endpoint())
	}
}

func TestCloseWakesServerRecv(t *testing.T) {
	f := newFakeSyscalls(3)
	tr := newFakeTransport(t, f)

	done := make(chan error, 1)
	go func() {
		_, err := tr.ServerRecv()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, transport.ErrTransportClosed) {
			t.Errorf("ServerRecv = %v; want ErrTransportClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ServerRecv still blocked after Close")
	}

	if _, err := tr.ServerRecv(); !errors.Is(err, transport.ErrTransportClosed) {
		t.Errorf("ServerRecv after Close = %v; want ErrTransportClosed", err)
	}
	if open := f.openDescriptors(); len(open) != 0 {
		t.Errorf("descriptors left open after Close: %v", open)
	}
}

func TestClientSend(t *testing.T) {
	f := newFakeSyscalls(3)
	tr, err := NewTCPTransport(common.DefaultTransportConfig(), WithSyscalls(f))
	if err != nil {
		t.Fatalf("NewTCPTransport failed: %v", err)
	}

	server := &fakeConn{in: frame([]byte("ack"))}
	f.queueDial(server)

	rpc, err := tr.ClientSend("127.0.0.1:8080", []byte("point a"))
	if err != nil {
		t.Fatalf("ClientSend failed: %v", err)
	}

	wire := server.out.Bytes()
	if got := binary.BigEndian.Uint32(wire[:HeaderLen]); got != 7 {
		t.Errorf("header length = %d; want 7", got)
	}
	if string(wire[HeaderLen:]) != "point a" {
		t.Errorf("payload = %q; want %q", wire[HeaderLen:], "point a")
	}

	reply, err := rpc.GetReply()
	if err != nil {
		t.Fatalf("GetReply failed: %v", err)
	}
	if string(reply) != "ack" {
		t.Errorf("reply = %q; want %q", reply, "ack")
	}
	if _, err := rpc.GetReply(); !errors.Is(err, transport.ErrRPCFinished) {
		t.Errorf("second GetReply = %v; want ErrRPCFinished", err)
	}
	if open := f.openDescriptors(); len(open) != 0 {
		t.Errorf("descriptors left open: %v", open)
	}
}

func TestClientSendErrors(t *testing.T) {
	t.Run("ConnectionRefused", func(t *testing.T) {
		f := newFakeSyscalls(3)
		tr, _ := NewTCPTransport(common.DefaultTransportConfig(), WithSyscalls(f))

		if _, err := tr.ClientSend("127.0.0.1:8080", []byte("x")); !errors.Is(err, transport.ErrConnection) {
			t.Errorf("ClientSend = %v; want ErrConnection", err)
		}
		if open := f.openDescriptors(); len(open) != 0 {
			t.Errorf("descriptors left open: %v", open)
		}
	})

	t.Run("Oversized", func(t *testing.T) {
		f := newFakeSyscalls(3)
		tr, _ := NewTCPTransport(common.DefaultTransportConfig(), WithSyscalls(f))

		_, err := tr.ClientSend("127.0.0.1:8080", make([]byte, MaxRPCLen+1))
		if !errors.Is(err, transport.ErrFrameTooLarge) {
			t.Errorf("ClientSend = %v; want ErrFrameTooLarge", err)
		}
		if f.nextFD != 100 {
			t.Errorf("a socket was opened for an oversized request")
		}
	})

	t.Run("PeerClosedBeforeReply", func(t *testing.T) {
		f := newFakeSyscalls(3)
		tr, _ := NewTCPTransport(common.DefaultTransportConfig(), WithSyscalls(f))
		f.queueDial(&fakeConn{})

		rpc, err := tr.ClientSend("127.0.0.1:8080", []byte("x"))
		if err != nil {
			t.Fatalf("ClientSend failed: %v", err)
		}
		if _, err := rpc.GetReply(); !errors.Is(err, transport.ErrPeerClosed) {
			t.Errorf("GetReply = %v; want ErrPeerClosed", err)
		}
	})
}

func TestConnect(t *testing.T) {
	interrupts := make([]error, 40)
	for i := range interrupts {
		interrupts[i] = unix.EINTR
	}

	tests := []struct {
		name        string
		errs        []error
		pollErrs    []error
		pollTimeout bool
		soError     unix.Errno
		want        error
		wantCause   error
		wantPolls   int
	}{
		{"Connected", nil, nil, false, 0, nil, nil, 0},
		{"AlreadyConnected", []error{unix.EISCONN}, nil, false, 0, nil, nil, 0},
		{"Interrupted", []error{unix.EINTR}, nil, false, 0, nil, nil, 1},
		{"InterruptedPollRepeated", []error{unix.EINTR}, interrupts, false, 0, nil, nil, 41},
		{"InterruptedRefused", []error{unix.EINTR}, nil, false, unix.ECONNREFUSED, transport.ErrConnection, unix.ECONNREFUSED, 1},
		{"InterruptedTimeout", []error{unix.EINTR}, nil, true, 0, transport.ErrTimeout, unix.ETIMEDOUT, 1},
		{"InProgress", []error{unix.EINPROGRESS}, nil, false, 0, transport.ErrTimeout, unix.EINPROGRESS, 0},
		{"Refused", []error{unix.ECONNREFUSED}, nil, false, 0, transport.ErrConnection, unix.ECONNREFUSED, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeSyscalls(3)
			f.connectErr = tt.errs
			f.pollErrs = tt.pollErrs
			f.pollTimeout = tt.pollTimeout
			f.soError = int(tt.soError)
			f.queueDial(&fakeConn{})
			fd, _ := f.Socket(0, 0, 0)
			sa, _, _ := resolveEndpoint("127.0.0.1:8080")

			config := common.DefaultTransportConfig()
			config.ConnectTimeout = 20 * time.Millisecond

			err := connect(f, fd, sa, config)
			if tt.want == nil && err != nil {
				t.Errorf("connect = %v; want success", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("connect = %v; want %v", err, tt.want)
			}
			if tt.wantCause != nil && !errors.Is(err, tt.wantCause) {
				t.Errorf("connect = %v; want it to wrap %v", err, tt.wantCause)
			}
			if f.polls != tt.wantPolls {
				t.Errorf("polls = %d; want %d", f.polls, tt.wantPolls)
			}
		})
	}
}

func TestApplySocketOptions(t *testing.T) {
	tests := []struct {
		name       string
		config     common.TransportConfig
		wantLinger bool
	}{
		{"ZeroValue", common.TransportConfig{}, false},
		{"Defaults", common.DefaultTransportConfig(), false},
		{"AbortiveClose", common.TransportConfig{TCPConf: common.TCPConf{TCPLingerEnabled: true}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeSyscalls(3)
			fd, _ := f.Socket(0, 0, 0)

			if err := applySocketOptions(f, fd, tt.config); err != nil {
				t.Fatalf("applySocketOptions failed: %v", err)
			}
			linger, ok := f.option(fd, unix.SO_LINGER)
			if ok != tt.wantLinger {
				t.Errorf("SO_LINGER set = %t; want %t", ok, tt.wantLinger)
			}
			if ok && linger != tt.config.TCPLingerSec {
				t.Errorf("SO_LINGER = %d; want %d", linger, tt.config.TCPLingerSec)
			}
		})
	}
}

func TestClientRPCClose(t *testing.T) {
	t.Run("BeforeGetReply", func(t *testing.T) {
		f := newFakeSyscalls(3)
		tr, _ := NewTCPTransport(common.TransportConfig{}, WithSyscalls(f))
		f.queueDial(&fakeConn{in: frame([]byte("ack"))})

		rpc, err := tr.ClientSend("127.0.0.1:8080", []byte("x"))
		if err != nil {
			t.Fatalf("ClientSend failed: %v", err)
		}
		fd := rpc.(*clientRPC).conn.descriptor()

		_ = rpc.Close()
		_ = rpc.Close()
		if f.closeCount(fd) != 1 {
			t.Errorf("descriptor closed %d times; want 1", f.closeCount(fd))
		}
		if _, err := rpc.GetReply(); !errors.Is(err, transport.ErrRPCFinished) {
			t.Errorf("GetReply after Close = %v; want ErrRPCFinished", err)
		}
	})

	t.Run("DuringGetReply", func(t *testing.T) {
		f := newFakeSyscalls(3)
		tr, _ := NewTCPTransport(common.TransportConfig{}, WithSyscalls(f))
		f.queueDial(&fakeConn{in: frame([]byte("ack"))})

		rpc, err := tr.ClientSend("127.0.0.1:8080", []byte("x"))
		if err != nil {
			t.Fatalf("ClientSend failed: %v", err)
		}
		cr := rpc.(*clientRPC)
		fd := cr.conn.descriptor()

		// a reader owns the connection, Close must only wake it
		cr.finished.Store(true)
		_ = rpc.Close()
		if f.shutdownCount(fd) != 1 || f.closeCount(fd) != 0 {
			t.Errorf("shutdowns = %d, closes = %d; want 1 and 0", f.shutdownCount(fd), f.closeCount(fd))
		}
		if _, err := cr.conn.receive(); !errors.Is(err, transport.ErrPeerClosed) {
			t.Errorf("receive after Close = %v; want ErrPeerClosed", err)
		}

		// once the reader released the descriptor Close does nothing
		cr.conn.close()
		_ = rpc.Close()
		if f.shutdownCount(fd) != 1 || f.closeCount(fd) != 1 {
			t.Errorf("shutdowns = %d, closes = %d; want 1 and 1", f.shutdownCount(fd), f.closeCount(fd))
		}
	})
}

func TestNextAcceptDelay(t *testing.T) {
	delay := time.Duration(0)
	want := []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}
	for _, w := range want {
		delay = nextAcceptDelay(delay)
		if delay != w {
			t.Errorf("nextAcceptDelay = %v; want %v", delay, w)
		}
	}
	if got := nextAcceptDelay(800 * time.Millisecond); got != maxAcceptDelay {
		t.Errorf("nextAcceptDelay(800ms) = %v; want %v", got, maxAcceptDelay)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{transport.ErrPeerClosed, "peer_closed"},
		{transport.ErrTimeout, "timeout"},
		{transport.ErrFrameTooLarge, "frame_too_large"},
		{transport.ErrTruncated, "truncated"},
		{transport.ErrConnection, "connection"},
		{errors.New("other"), "other"},
	}
	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.kind {
			t.Errorf("errorKind(%v) = %q; want %q", tt.err, got, tt.kind)
		}
	}
}
