// Package rpc provides a small request/reply framework on top of a framed
// TCP transport. Every RPC uses its own connection: the client connects,
// writes one request frame and waits for one reply frame.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message envelope, configuration structures, and logging.
//
//   - transport: The transport contract and its error taxonomy. The tcp
//     sub package implements it over kernel sockets, the bind sub package
//     in process for tests.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: Calls methods on remote servers with round robin endpoint
//     selection and retries for requests that could not be delivered.
//
//   - server: Receives requests with a pool of workers and routes them to
//     registered handlers by method name.
package rpc
