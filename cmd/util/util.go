package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (DRPC_<FLAG>)
	EnvPrefix = "drpc"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupTransportFlags adds the flags of common.TransportConfig (except the endpoint) to a command
func SetupTransportFlags(cmd *cobra.Command) {
	defaults := common.DefaultTransportConfig()

	key := "connect-timeout"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Timeout for establishing a connection (e.g. 500ms, 0 = block)"))

	key = "read-timeout"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Timeout of every receive call on a connection (0 = block)"))

	key = "write-timeout"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Timeout of every send call on a connection (0 = block)"))

	key = "retry-budget"
	cmd.PersistentFlags().Int(key, defaults.RetryBudget, WrapString("How many transient errors (EINTR, EAGAIN, ...) are tolerated while sending or receiving one message"))

	key = "backlog"
	cmd.PersistentFlags().Int(key, defaults.Backlog, WrapString("Length of the listen queue (server only)"))

	key = "write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the kernel send buffer (in KB, 0 = os default)"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the kernel receive buffer (in KB, 0 = os default)"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, defaults.TCPNoDelay, WrapString("Whether to enable TCP_NODELAY"))

	key = "tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("Idle time before keep-alive probes are sent (in seconds, 0 = off)"))

	key = "tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time on close (in seconds, negative = os default)"))
}

// SetupRPCClientFlags adds the flags of common.ClientConfig to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "endpoints"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the dRPC server. Multiple endpoints can be specified as a comma-separated list and are used round robin"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to attempt a request that could not be delivered"))

	SetupTransportFlags(cmd)
}

// InitConfig loads the .env files and makes viper read DRPC_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetTransportConfig reads the transport configuration from viper
func GetTransportConfig() common.TransportConfig {
	linger := viper.GetInt("tcp-linger")
	return common.TransportConfig{
		Backlog:        viper.GetInt("backlog"),
		ConnectTimeout: viper.GetDuration("connect-timeout"),
		ReadTimeout:    viper.GetDuration("read-timeout"),
		WriteTimeout:   viper.GetDuration("write-timeout"),
		RetryBudget:    viper.GetInt("retry-budget"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:       viper.GetBool("tcp-nodelay"),
			TCPKeepAliveSec:  viper.GetInt("tcp-keepalive"),
			TCPLingerEnabled: linger >= 0,
			TCPLingerSec:     linger,
		},
	}
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	var endpoints []string
	for _, endpoint := range strings.Split(viper.GetString("endpoints"), ",") {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			endpoints = append(endpoints, endpoint)
		}
	}

	return &common.ClientConfig{
		Endpoints:  endpoints,
		RetryCount: viper.GetInt("retries"),
		Transport:  GetTransportConfig(),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
