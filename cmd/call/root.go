package call

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dRPC/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// CallCmd sends a single request and prints the reply
	CallCmd = &cobra.Command{
		Use:   "call [payload]",
		Short: "Send a single request to a dRPC server",
		Long: `Send a single request to a dRPC server and print the reply body.
The payload is sent as is; without a payload an empty body is sent.

Examples:
  drpc call --endpoints localhost:8080 "point a"
  drpc call --endpoints localhost:8080 --method methods`,
		Args: cobra.MaximumNArgs(1),
		RunE: run,
	}
)

func init() {
	key := "method"
	CallCmd.Flags().String(key, "echo", util.WrapString("The method to invoke"))

	key = "log-level"
	CallCmd.PersistentFlags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	util.SetupRPCClientFlags(CallCmd)
}

func run(cmd *cobra.Command, args []string) error {
	c, _, err := util.SetupRPCClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	var body []byte
	if len(args) == 1 {
		body = []byte(args[0])
	}

	reply, err := c.Call(viper.GetString("method"), body)
	if err != nil {
		return err
	}

	if _, err := os.Stdout.Write(reply); err != nil {
		return err
	}
	fmt.Println()
	return nil
}
