// Package tcp implements the TCP transport of the RPC system without any
// RPC framework underneath: it turns a byte stream socket into discrete,
// length-prefixed messages and uses one connection per RPC.
//
// Every socket primitive goes through ISyscalls. NewSyscalls returns the
// pass-through to the operating system (Linux), tests inject a scripted fake
// with WithSyscalls.
//
// Layering, leaves first:
//
//   - socket: owns one descriptor and closes it exactly once.
//
//   - listenSocket: binds, listens (SO_REUSEADDR, fixed backlog) and accepts,
//     retrying interrupted accepts.
//
//   - messageSocket: the framing protocol. A frame is a 4 byte big-endian
//     length followed by that many payload bytes, at most MaxRPCLen (8 MiB).
//     Partial reads and writes are resumed, transient errors consume a
//     retry budget.
//
//   - serverSocket / serverRPC: the accepted side of one RPC, finished by
//     SendReply or Ignore.
//
//   - clientSocket / clientRPC: the connecting side of one RPC, finished by
//     GetReply.
//
//   - tcpTransport: ServerRecv and ClientSend as required by
//     transport.ITransport.
//
// There are no goroutines inside the package: every call blocks the calling
// goroutine. Deadlines are optional and set as socket options
// (SO_RCVTIMEO / SO_SNDTIMEO) when a connection is established.
//
// The package exports prometheus counters (drpc_tcp_*) through
// github.com/VictoriaMetrics/metrics.
package tcp
