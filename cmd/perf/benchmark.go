package perf

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRPC/rpc/client"
	"github.com/ValentinKolb/dRPC/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// latencySamples is the reservoir size of the latency histogram
const latencySamples = 100_000

// options of one benchmark run
type options struct {
	Threads     int
	PayloadSize int
	Requests    int
	Rate        float64
	Method      string
}

// result of one benchmark run. Latencies are recorded in nanoseconds.
type result struct {
	Requests   int64
	Errors     int64
	Duration   time.Duration
	Latency    gometrics.Histogram
	Throughput gometrics.Meter
}

// OpsPerSec returns the number of requests completed per second
func (r *result) OpsPerSec() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Requests) / r.Duration.Seconds()
}

// benchmark sends opts.Requests calls of opts.Method from opts.Threads
// goroutines. A limiter, if given, paces the calls of all goroutines. Failed
// calls are counted, not returned; only a cancelled ctx stops the run early.
func benchmark(ctx context.Context, c client.IRPCClient, opts options, limiter *rate.Limiter) (*result, error) {
	payload := make([]byte, opts.PayloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	res := &result{
		Latency:    gometrics.NewHistogram(gometrics.NewUniformSample(latencySamples)),
		Throughput: gometrics.NewMeter(),
	}
	defer res.Throughput.Stop()

	var remaining, errs atomic.Int64
	remaining.Store(int64(opts.Requests))

	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()

	for i := 0; i < opts.Threads; i++ {
		g.Go(func() error {
			for remaining.Add(-1) >= 0 {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return err
					}
				} else if err := ctx.Err(); err != nil {
					return err
				}

				begin := time.Now()
				_, err := c.Call(opts.Method, payload)
				res.Latency.Update(time.Since(begin).Nanoseconds())
				res.Throughput.Mark(1)

				if err != nil && errs.Add(1) == 1 {
					// report the first error only, the rest is counted
					fmt.Fprintf(os.Stderr, "(%s) - error: %v\n", opts.Method, err)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	res.Duration = time.Since(start)
	res.Requests = res.Throughput.Count()
	res.Errors = errs.Load()

	if err != nil {
		return res, fmt.Errorf("benchmark aborted after %d requests: %w", res.Requests, err)
	}
	return res, nil
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, res *result, opts options, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	// Write header
	header := []string{
		"Method", "Requests", "Errors", "DurationMs", "OpsPerSec",
		"MeanNs", "P50Ns", "P90Ns", "P99Ns", "MaxNs",
		"Endpoints", "RetryCount", "Serializer",
		"Threads", "PayloadSize", "Rate",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	p := res.Latency.Percentiles([]float64{0.5, 0.9, 0.99})
	row := []string{
		opts.Method,
		strconv.FormatInt(res.Requests, 10),
		strconv.FormatInt(res.Errors, 10),
		strconv.FormatInt(res.Duration.Milliseconds(), 10),
		fmt.Sprintf("%.0f", res.OpsPerSec()),
		fmt.Sprintf("%.0f", res.Latency.Mean()),
		fmt.Sprintf("%.0f", p[0]),
		fmt.Sprintf("%.0f", p[1]),
		fmt.Sprintf("%.0f", p[2]),
		strconv.FormatInt(res.Latency.Max(), 10),
		strings.Join(config.Endpoints, ";"),
		strconv.Itoa(config.RetryCount),
		viper.GetString("serializer"),
		strconv.Itoa(opts.Threads),
		strconv.Itoa(opts.PayloadSize),
		fmt.Sprintf("%g", opts.Rate),
	}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("failed to write CSV row: %v", err)
	}

	writer.Flush()
	return writer.Error()
}
