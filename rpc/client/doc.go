// Package client implements the calling side of the RPC system on top of any
// transport.ITransport.
//
// A call wraps the method name and the body in a common.Message request
// envelope, sends it with one ClientSend, waits for the reply with GetReply
// and unwraps the reply envelope. Error envelopes come back as *RemoteError.
//
// Endpoints are used round robin. A request that could not be delivered
// (connection refused, connect timeout, ...) is retried on the next endpoint
// up to ClientConfig.RetryCount times with exponential backoff (50ms, doubled
// per attempt, +-10% jitter). A failure after the request was written is
// returned right away since the server may already have executed it.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:  []string{"10.0.0.1:8080", "10.0.0.2:8080"},
//	  RetryCount: 3,
//	  Transport:  common.DefaultTransportConfig(),
//	}
//
//	t, err := tcp.NewTCPTransport(config.Transport)
//	if err != nil {
//	  return err
//	}
//	c, err := client.NewRPCClient(config, t, serializer.NewBinarySerializer())
//	if err != nil {
//	  return err
//	}
//	defer c.Close()
//
//	reply, err := c.Call("echo", []byte("hello"))
package client
