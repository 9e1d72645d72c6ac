package tcp

import (
	"time"

	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// applySocketOptions applies the deadlines and TCP tuning of config to a
// connected (or about to be connected) descriptor
func applySocketOptions(sys ISyscalls, fd int, config common.TransportConfig) error {
	// Disable Nagle's algorithm if configured
	if config.TCPNoDelay {
		if err := sys.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			return errors.Wrap(err, "set TCP_NODELAY")
		}
	}

	// Socket buffer sizes
	if config.WriteBufferSize > 0 {
		if err := sys.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, config.WriteBufferSize); err != nil {
			return errors.Wrap(err, "set SO_SNDBUF")
		}
	}
	if config.ReadBufferSize > 0 {
		if err := sys.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, config.ReadBufferSize); err != nil {
			return errors.Wrap(err, "set SO_RCVBUF")
		}
	}

	// Keep-alive
	if config.TCPKeepAliveSec > 0 {
		if err := sys.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			return errors.Wrap(err, "set SO_KEEPALIVE")
		}
		if err := sys.SetsockoptInt(fd, unix.IPPROTO_TCP, keepIdleOpt, config.TCPKeepAliveSec); err != nil {
			return errors.Wrap(err, "set keep-alive idle time")
		}
	}

	// Linger
	if config.TCPLingerEnabled {
		linger := &unix.Linger{Onoff: 1, Linger: int32(config.TCPLingerSec)}
		if err := sys.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, linger); err != nil {
			return errors.Wrap(err, "set SO_LINGER")
		}
	}

	// Deadlines
	if err := setTimeout(sys, fd, unix.SO_RCVTIMEO, config.ReadTimeout); err != nil {
		return errors.Wrap(err, "set SO_RCVTIMEO")
	}
	if err := setTimeout(sys, fd, unix.SO_SNDTIMEO, config.WriteTimeout); err != nil {
		return errors.Wrap(err, "set SO_SNDTIMEO")
	}

	return nil
}

// setTimeout sets SO_RCVTIMEO or SO_SNDTIMEO. A zero duration is skipped on
// purpose so a fresh socket keeps blocking forever.
func setTimeout(sys ISyscalls, fd int, opt int, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return sys.SetsockoptTimeval(fd, unix.SOL_SOCKET, opt, &tv)
}
