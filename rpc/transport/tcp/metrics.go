package tcp

import (
	"fmt"

	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
)

var (
	metricAccepted       = metrics.NewCounter(`drpc_tcp_accepted_total`)
	metricAcceptErrors   = metrics.NewCounter(`drpc_tcp_accept_errors_total`)
	metricConnects       = metrics.NewCounter(`drpc_tcp_connects_total`)
	metricFramesSent     = metrics.NewCounter(`drpc_tcp_frames_sent_total`)
	metricFramesReceived = metrics.NewCounter(`drpc_tcp_frames_received_total`)
	metricBytesSent      = metrics.NewCounter(`drpc_tcp_bytes_sent_total`)
	metricBytesReceived  = metrics.NewCounter(`drpc_tcp_bytes_received_total`)
)

// countError increments the error counter matching the kind of err
func countError(err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`drpc_tcp_errors_total{kind=%q}`, errorKind(err))).Inc()
}

// errorKind maps an error to a short label, most specific kind first
func errorKind(err error) string {
	switch {
	case errors.Is(err, transport.ErrPeerClosed):
		return "peer_closed"
	case errors.Is(err, transport.ErrTimeout):
		return "timeout"
	case errors.Is(err, transport.ErrFrameTooLarge):
		return "frame_too_large"
	case errors.Is(err, transport.ErrTruncated):
		return "truncated"
	case errors.Is(err, transport.ErrConnection):
		return "connection"
	default:
		return "other"
	}
}
