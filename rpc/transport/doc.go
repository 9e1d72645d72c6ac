// Package transport defines the contract between the RPC dispatcher and the
// transports that move request and reply bytes between processes.
//
// The package focuses on:
//   - A small, synchronous interface: ServerRecv on the receiving side and
//     ClientSend / GetReply on the calling side
//   - One connection per RPC, no multiplexing
//   - A shared error taxonomy so callers can tell a clean hang-up from a
//     corrupt frame regardless of the transport in use
//
// Key Components:
//
//   - ITransport: Entry point used by the dispatcher (server) and the caller
//     (client). Implemented by the tcp and bind sub packages.
//
//   - IServerRPC: One inbound request. Answered with SendReply or dropped
//     with Ignore.
//
//   - IClientRPC: One outbound request whose reply is collected with GetReply.
//
//   - Errors: ErrConnection and its children (ErrPeerClosed, ErrTimeout,
//     ErrFraming, ErrFrameTooLarge, ErrTruncated) are local to a single RPC
//     and are matched with errors.Is.
package transport
