package perf

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/ValentinKolb/dRPC/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

var (
	// PerfCmd load tests a dRPC server
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dRPC servers",
		Long:    `Send a fixed number of requests with a fixed payload size from several threads and report latency percentiles and throughput.`,
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfOpts = options{
		Threads:     10,
		PayloadSize: 1024,
		Requests:    10000,
		Method:      "echo",
	}
)

func init() {
	// add flags
	key := "threads"
	PerfCmd.Flags().Int(key, perfOpts.Threads, util.WrapString("Number of threads sending requests concurrently"))
	key = "payload-size"
	PerfCmd.Flags().Int(key, perfOpts.PayloadSize, util.WrapString("Size of the request body in bytes"))
	key = "requests"
	PerfCmd.Flags().Int(key, perfOpts.Requests, util.WrapString("Total number of requests to send"))
	key = "rate"
	PerfCmd.Flags().Float64(key, 0, util.WrapString("Maximum number of requests per second over all threads (0 = unlimited)"))
	key = "method"
	PerfCmd.Flags().String(key, perfOpts.Method, util.WrapString("The method to invoke"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "log-level"
	PerfCmd.PersistentFlags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	util.SetupRPCClientFlags(PerfCmd)
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfOpts.Threads = viper.GetInt("threads")
	perfOpts.PayloadSize = viper.GetInt("payload-size")
	perfOpts.Requests = viper.GetInt("requests")
	perfOpts.Rate = viper.GetFloat64("rate")
	perfOpts.Method = viper.GetString("method")

	if perfOpts.Threads < 1 {
		return fmt.Errorf("at least one thread is required, got %d", perfOpts.Threads)
	}
	if perfOpts.PayloadSize < 0 || perfOpts.Requests < 0 {
		return fmt.Errorf("payload size and request count must not be negative")
	}

	return nil
}

func run(cmd *cobra.Command, _ []string) error {
	c, config, err := util.SetupRPCClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Println("Performance testing tool for dRPC servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d, Payload: %d bytes, Requests: %d, Rate: %s\n",
		perfOpts.Threads, perfOpts.PayloadSize, perfOpts.Requests, formatRate(perfOpts.Rate))
	fmt.Println()

	var limiter *rate.Limiter
	if perfOpts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(perfOpts.Rate), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("starting test...")
	result, err := benchmark(ctx, c, perfOpts, limiter)
	if err != nil {
		return err
	}
	printResult(perfOpts.Method, result)

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, result, perfOpts, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// printResult prints the result of a benchmark in a formatted way
func printResult(test string, result *result) {
	if result.Requests == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	p := result.Latency.Percentiles([]float64{0.5, 0.9, 0.99})
	fmt.Printf("%-20s%d requests (%d errors) in %s\n", test, result.Requests, result.Errors, result.Duration.Round(time.Millisecond))
	fmt.Printf("%-20s%.0f ops/sec\n", "throughput", result.OpsPerSec())
	fmt.Printf("%-20smean %s, p50 %s, p90 %s, p99 %s, max %s\n", "latency",
		time.Duration(result.Latency.Mean()), time.Duration(p[0]), time.Duration(p[1]), time.Duration(p[2]),
		time.Duration(result.Latency.Max()))
}

func formatRate(r float64) string {
	if r <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%.0f/s", r)
}
