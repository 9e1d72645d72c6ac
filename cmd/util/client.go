package util

import (
	"github.com/ValentinKolb/dRPC/rpc/client"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport/tcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// SetupRPCClient binds the flags of cmd, initializes the loggers and creates
// a client from the resulting configuration
func SetupRPCClient(cmd *cobra.Command) (client.IRPCClient, *common.ClientConfig, error) {
	// Bind command flags to viper
	if err := BindCommandFlags(cmd); err != nil {
		return nil, nil, err
	}

	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return nil, nil, err
	}

	config := GetClientConfig()

	s, err := GetSerializer()
	if err != nil {
		return nil, nil, err
	}

	t, err := tcp.NewTCPTransport(config.Transport)
	if err != nil {
		return nil, nil, err
	}

	c, err := client.NewRPCClient(*config, t, s)
	if err != nil {
		_ = t.Close()
		return nil, nil, err
	}
	return c, config, nil
}
