package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds the kernel buffer sizes applied to every connection (0 keeps the OS default)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	// TCPNoDelay disables Nagle's algorithm
	TCPNoDelay bool
	// TCPKeepAliveSec enables keep-alive probes after the given idle time (0 = off)
	TCPKeepAliveSec int
	// TCPLingerEnabled sets SO_LINGER to TCPLingerSec. Off leaves the OS
	// default, a graceful close that still delivers unsent data.
	TCPLingerEnabled bool
	// TCPLingerSec is the linger time, 0 resets the connection on close
	TCPLingerSec int
}

// TransportConfig configures a single transport instance
type TransportConfig struct {
	// Endpoint is the host:port to listen on. Empty means client only.
	Endpoint string
	// Backlog is the listen queue length
	Backlog int

	// Optional deadlines (0 = block forever). They are applied as socket
	// options when a connection is established.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// RetryBudget is the number of transient failures (EINTR, EAGAIN, ...)
	// tolerated while sending or receiving one message
	RetryBudget int

	SocketConf
	TCPConf
}

// DefaultTransportConfig returns a config with the defaults used by the CLI
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Backlog:     1024,
		RetryBudget: 32,
		TCPConf: TCPConf{
			TCPNoDelay: true,
		},
	}
}

// String returns a formatted string representation of the transport configuration
func (c *TransportConfig) String() string {
	var sb strings.Builder
	t := newTable(&sb)

	t.addSection("Transport")
	if c.Endpoint == "" {
		t.addField("Endpoint", "(client only)")
	} else {
		t.addField("Endpoint", c.Endpoint)
	}
	t.addField("Backlog", strconv.Itoa(c.Backlog))
	t.addField("Connect Timeout", formatTimeout(c.ConnectTimeout))
	t.addField("Read Timeout", formatTimeout(c.ReadTimeout))
	t.addField("Write Timeout", formatTimeout(c.WriteTimeout))
	t.addField("Retry Budget", strconv.Itoa(c.RetryBudget))

	t.addSection("Socket Options")
	t.addField("TCP No Delay", fmt.Sprintf("%t", c.TCPNoDelay))
	t.addField("TCP Keep Alive", formatSeconds(c.TCPKeepAliveSec))
	if !c.TCPLingerEnabled {
		t.addField("TCP Linger", "os default")
	} else {
		t.addField("TCP Linger", fmt.Sprintf("%d sec", c.TCPLingerSec))
	}
	t.addField("Write Buffer", formatBytes(c.WriteBufferSize))
	t.addField("Read Buffer", formatBytes(c.ReadBufferSize))

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of an RPC server
type ServerConfig struct {
	// Workers is the number of goroutines blocked in ServerRecv at the same
	// time, i.e. the number of RPCs served concurrently
	Workers int

	// MetricsEndpoint is the address of the prometheus endpoint (empty = disabled)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string

	Transport TransportConfig
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder
	t := newTable(&sb)

	t.addSection("RPC Server")
	t.addField("Workers", strconv.Itoa(int(math.Max(1, float64(c.Workers)))))
	if c.MetricsEndpoint != "" {
		t.addField("Metrics Endpoint", c.MetricsEndpoint)
	} else {
		t.addField("Metrics Endpoint", "disabled")
	}

	t.addSection("Logging")
	t.addField("Log Level", c.LogLevel)

	sb.WriteString(c.Transport.String())
	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters of an RPC client
type ClientConfig struct {
	Endpoints []string
	// RetryCount is how often a request that could not be delivered is attempted
	RetryCount int

	Transport TransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder
	t := newTable(&sb)

	// General Client Settings
	t.addSection("Client Configuration")
	t.addField("Retry Count", strconv.Itoa(c.RetryCount))

	// Endpoints
	t.addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		t.addField(strconv.Itoa(i), endpoint)
	}

	sb.WriteString(c.Transport.String())
	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// table writes aligned "name: value" rows grouped in upper case sections
type table struct {
	sb *strings.Builder
}

func newTable(sb *strings.Builder) table {
	return table{sb: sb}
}

func (t table) addSection(title string) {
	t.sb.WriteString("\n")
	t.sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
}

func (t table) addField(name, value string) {
	t.sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
}

func formatTimeout(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}

func formatSeconds(sec int) string {
	if sec <= 0 {
		return "off"
	}
	return fmt.Sprintf("%d sec", sec)
}

func formatBytes(n int) string {
	if n <= 0 {
		return "os default"
	}
	return fmt.Sprintf("%d KB", n/1024)
}
