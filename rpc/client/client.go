package client

import (
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/ValentinKolb/dRPC/rpc/transport"
)

// initialBackoff is the pause before the second attempt, it doubles after
// every further failed attempt
const initialBackoff = 50 * time.Millisecond

// IRPCClient issues calls to one or more RPC servers
type IRPCClient interface {
	// Call invokes method on the next endpoint (round robin) and returns the
	// reply body. Requests that could not be delivered are retried on the
	// following endpoints, errors after the request was sent are not.
	Call(method string, body []byte) ([]byte, error)
	// CallEndpoint is like Call but always uses endpoint
	CallEndpoint(endpoint, method string, body []byte) ([]byte, error)
	// Ping checks that endpoint answers the built-in ping method
	Ping(endpoint string) error
	// Close closes the underlying transport
	Close() error
}

// NewRPCClient creates a new RPC client
// It takes a config, a transport and a serializer as parameters.
// The transport is used for sending only, it does not need an endpoint.
//
// Usage:
//
//	t, _ := tcp.NewTCPTransport(config.Transport)
//	c, err := client.NewRPCClient(*config, t, serializer.NewBinarySerializer())
//	if err != nil {
//		return err
//	}
//	reply, err := c.Call("echo", []byte("hello"))
func NewRPCClient(
	config common.ClientConfig,
	transport transport.ITransport,
	serializer serializer.IRPCSerializer,
) (IRPCClient, error) {
	if len(config.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints provided")
	}

	Logger.Debugf("Created RPC Client (%s transport, %s serializer)", transport.GetName(), serializer.GetName())

	return &rpcClient{
		config:     config,
		transport:  transport,
		serializer: serializer,
		backoff:    initialBackoff,
	}, nil
}

type rpcClient struct {
	config       common.ClientConfig
	transport    transport.ITransport
	serializer   serializer.IRPCSerializer
	nextEndpoint uint64 // Atomic counter for Round Robin
	backoff      time.Duration
}

// --------------------------------------------------------------------------
// Interface Methods (docu see client.IRPCClient)
// --------------------------------------------------------------------------

func (c *rpcClient) Call(method string, body []byte) ([]byte, error) {
	return c.call(c.getNextEndpoint, method, body)
}

func (c *rpcClient) CallEndpoint(endpoint, method string, body []byte) ([]byte, error) {
	return c.call(func() string { return endpoint }, method, body)
}

func (c *rpcClient) Ping(endpoint string) error {
	reply, err := c.CallEndpoint(endpoint, "ping", nil)
	if err != nil {
		return err
	}
	if string(reply) != "pong" {
		return fmt.Errorf("unexpected ping reply from %s: %q", endpoint, reply)
	}
	return nil
}

func (c *rpcClient) Close() error {
	return c.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// call runs the retry loop, next picks the endpoint of each attempt
func (c *rpcClient) call(next func() string, method string, body []byte) ([]byte, error) {
	req := common.NewRequest(method, body)

	// We always try at least once, and up to maxRetries times
	maxRetries := c.config.RetryCount
	if maxRetries < 1 {
		maxRetries = 1
	}

	backoff := c.backoff
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		endpoint := next()

		resp, err := invokeRPCRequest(endpoint, req, c.transport, c.serializer)
		if err == nil {
			return resp.Body, nil
		}

		// Only requests that never reached the server are repeated
		var delivery *deliveryError
		if !errors.As(err, &delivery) {
			return nil, err
		}

		lastErr = delivery.err
		Logger.Debugf("Request attempt %d/%d to %s failed: %v", i+1, maxRetries, endpoint, lastErr)

		if i+1 < maxRetries {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoff) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter))
			backoff *= 2
		}
	}

	// All attempts failed
	return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, lastErr)
}

// getNextEndpoint selects the next endpoint via Round Robin
func (c *rpcClient) getNextEndpoint() string {
	if len(c.config.Endpoints) == 1 {
		return c.config.Endpoints[0]
	}
	index := atomic.AddUint64(&c.nextEndpoint, 1) - 1
	return c.config.Endpoints[index%uint64(len(c.config.Endpoints))]
}
