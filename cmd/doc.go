// Package cmd implements the command-line interface of dRPC. It provides a
// server command and two client commands built on the rpc packages.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a server with the built-in methods and an optional metrics endpoint
//   - call: Sends a single request and prints the reply
//   - perf: Load tests a server and reports latency percentiles and throughput
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See drpc -help for a list of all commands.
package cmd
