package tcp

import "golang.org/x/sys/unix"

const (
	// socketType is used for every listening and connecting socket
	socketType = unix.SOCK_STREAM | unix.SOCK_CLOEXEC
	// acceptFlags are applied to every accepted descriptor
	acceptFlags = unix.SOCK_CLOEXEC
	// sendFlags keeps a write to a reset connection from raising SIGPIPE
	sendFlags = unix.MSG_NOSIGNAL
	// keepIdleOpt is the TCP level option holding the keep-alive idle time
	keepIdleOpt = unix.TCP_KEEPIDLE
)
