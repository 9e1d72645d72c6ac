package tcp

import (
	"bytes"
	"math/rand"
	"sync"

	"golang.org/x/sys/unix"
)

// fakeConn is the scripted peer behind one fake descriptor
type fakeConn struct {
	// in holds the bytes the peer sent, handed out by Recv. Once it is
	// drained Recv reports an orderly shutdown (0 bytes, no error).
	in []byte
	// recvErrs and sendErrs are returned (in order) before any data moves
	recvErrs []error
	sendErrs []error
	// out collects everything written with Sendmsg
	out bytes.Buffer
	// largestRecv is the largest buffer passed to Recv
	largestRecv int
	// shut is set by Shutdown, Recv then reports an orderly shutdown
	shut bool
}

// fakeSyscalls implements ISyscalls without touching the operating system
type fakeSyscalls struct {
	mu        sync.Mutex
	nextFD    int
	conns     map[int]*fakeConn
	closes    map[int]int
	shutdowns map[int]int
	opts      map[int]map[int]int

	// maxChunk bounds the bytes moved per Recv / Sendmsg call (1..maxChunk)
	maxChunk int
	rng      *rand.Rand

	// fail maps a call name ("socket", "bind", ...) to a forced error
	fail map[string]error

	// listener is the descriptor passed to Listen, shutting it down wakes Accept
	listener int
	// accepts delivers the peers of accepted connections
	accepts    chan *fakeConn
	acceptErrs []error
	shutdownCh chan struct{}
	shutdown   bool

	// dialPeers are used, in order, for the connections made by Connect
	dialPeers  []*fakeConn
	connectErr []error

	// pollErrs are returned (in order) by Poll. Once they are used up Poll
	// reports the descriptor ready, or nothing ready if pollTimeout is set.
	pollErrs    []error
	pollTimeout bool
	polls       int
	// soError is reported as SO_ERROR
	soError int
}

func newFakeSyscalls(maxChunk int) *fakeSyscalls {
	return &fakeSyscalls{
		nextFD:     100,
		conns:      make(map[int]*fakeConn),
		closes:     make(map[int]int),
		shutdowns:  make(map[int]int),
		opts:       make(map[int]map[int]int),
		maxChunk:   maxChunk,
		rng:        rand.New(rand.NewSource(42)),
		fail:       make(map[string]error),
		accepts:    make(chan *fakeConn, 16),
		shutdownCh: make(chan struct{}),
	}
}

// queueAccept makes the next Accept return a connection whose peer sent data
func (f *fakeSyscalls) queueAccept(peer *fakeConn) {
	f.accepts <- peer
}

// queueDial makes the next Connect use peer as the remote side
func (f *fakeSyscalls) queueDial(peer *fakeConn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialPeers = append(f.dialPeers, peer)
}

func (f *fakeSyscalls) closeCount(fd int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes[fd]
}

func (f *fakeSyscalls) shutdownCount(fd int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdowns[fd]
}

func (f *fakeSyscalls) option(fd, opt int) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.opts[fd][opt]
	return v, ok
}

// openDescriptors returns the descriptors that were never closed
func (f *fakeSyscalls) openDescriptors() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var open []int
	for fd := 100; fd < f.nextFD; fd++ {
		if f.closes[fd] == 0 {
			open = append(open, fd)
		}
	}
	return open
}

func (f *fakeSyscalls) chunk(n int) int {
	if n <= 0 {
		return 0
	}
	c := 1 + f.rng.Intn(f.maxChunk)
	if c > n {
		c = n
	}
	return c
}

func (f *fakeSyscalls) newFD(peer *fakeConn) int {
	fd := f.nextFD
	f.nextFD++
	f.conns[fd] = peer
	return fd
}

// --------------------------------------------------------------------------
// Interface Methods (docu see tcp.ISyscalls)
// --------------------------------------------------------------------------

func (f *fakeSyscalls) Socket(domain, typ, proto int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["socket"]; err != nil {
		return -1, err
	}
	return f.newFD(&fakeConn{}), nil
}

func (f *fakeSyscalls) Bind(fd int, sa unix.Sockaddr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail["bind"]
}

func (f *fakeSyscalls) Listen(fd int, backlog int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["listen"]; err != nil {
		return err
	}
	f.listener = fd
	return nil
}

func (f *fakeSyscalls) Accept(fd int) (int, unix.Sockaddr, error) {
	f.mu.Lock()
	if len(f.acceptErrs) > 0 {
		err := f.acceptErrs[0]
		f.acceptErrs = f.acceptErrs[1:]
		f.mu.Unlock()
		return -1, nil, err
	}
	f.mu.Unlock()

	select {
	case peer := <-f.accepts:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.newFD(peer), &unix.SockaddrInet4{Port: 40000, Addr: [4]byte{10, 0, 0, 1}}, nil
	case <-f.shutdownCh:
		return -1, nil, unix.EINVAL
	}
}

func (f *fakeSyscalls) Connect(fd int, sa unix.Sockaddr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.connectErr) > 0 {
		err := f.connectErr[0]
		f.connectErr = f.connectErr[1:]
		return err
	}
	if len(f.dialPeers) == 0 {
		return unix.ECONNREFUSED
	}
	f.conns[fd] = f.dialPeers[0]
	f.dialPeers = f.dialPeers[1:]
	return nil
}

func (f *fakeSyscalls) Close(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes[fd]++
	return f.fail["close"]
}

func (f *fakeSyscalls) Shutdown(fd int, how int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns[fd]++
	if conn, ok := f.conns[fd]; ok {
		conn.shut = true
	}
	if fd == f.listener && !f.shutdown {
		f.shutdown = true
		close(f.shutdownCh)
	}
	return nil
}

func (f *fakeSyscalls) Getsockname(fd int) (unix.Sockaddr, error) {
	return &unix.SockaddrInet4{Port: 8080, Addr: [4]byte{127, 0, 0, 1}}, nil
}

func (f *fakeSyscalls) Recv(fd int, p []byte, flags int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, ok := f.conns[fd]
	if !ok || f.closes[fd] > 0 {
		return -1, unix.EBADF
	}
	if len(p) > conn.largestRecv {
		conn.largestRecv = len(p)
	}
	if conn.shut {
		return 0, nil
	}
	if len(conn.recvErrs) > 0 {
		err := conn.recvErrs[0]
		conn.recvErrs = conn.recvErrs[1:]
		return -1, err
	}
	n := copy(p[:f.chunk(len(p))], conn.in)
	conn.in = conn.in[n:]
	return n, nil
}

func (f *fakeSyscalls) Sendmsg(fd int, buffers [][]byte, flags int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, ok := f.conns[fd]
	if !ok || f.closes[fd] > 0 {
		return -1, unix.EBADF
	}
	if len(conn.sendErrs) > 0 {
		err := conn.sendErrs[0]
		conn.sendErrs = conn.sendErrs[1:]
		return -1, err
	}

	total := 0
	for _, b := range buffers {
		total += len(b)
	}
	n := f.chunk(total)
	for left := n; left > 0 && len(buffers) > 0; buffers = buffers[1:] {
		b := buffers[0]
		if len(b) > left {
			b = b[:left]
		}
		conn.out.Write(b)
		left -= len(b)
	}
	return n, nil
}

func (f *fakeSyscalls) Poll(fds []unix.PollFd, timeout int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if len(f.pollErrs) > 0 {
		err := f.pollErrs[0]
		f.pollErrs = f.pollErrs[1:]
		return -1, err
	}
	if f.pollTimeout {
		return 0, nil
	}
	for i := range fds {
		fds[i].Revents = fds[i].Events
	}
	return len(fds), nil
}

func (f *fakeSyscalls) GetsockoptInt(fd, level, opt int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if opt == unix.SO_ERROR {
		return f.soError, nil
	}
	return f.opts[fd][opt], nil
}

func (f *fakeSyscalls) SetsockoptInt(fd, level, opt, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["setsockopt"]; err != nil {
		return err
	}
	if f.opts[fd] == nil {
		f.opts[fd] = make(map[int]int)
	}
	f.opts[fd][opt] = value
	return nil
}

func (f *fakeSyscalls) SetsockoptTimeval(fd, level, opt int, tv *unix.Timeval) error {
	return f.SetsockoptInt(fd, level, opt, int(int64(tv.Sec)*1000+int64(tv.Usec)/1000))
}

func (f *fakeSyscalls) SetsockoptLinger(fd, level, opt int, l *unix.Linger) error {
	return f.SetsockoptInt(fd, level, opt, int(l.Linger))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// frame builds the wire representation of payload
func frame(payload []byte) []byte {
	out := make([]byte, HeaderLen+len(payload))
	out[0] = byte(len(payload) >> 24)
	out[1] = byte(len(payload) >> 16)
	out[2] = byte(len(payload) >> 8)
	out[3] = byte(len(payload))
	copy(out[HeaderLen:], payload)
	return out
}
