// Package common provides core data structures and utilities shared across
// the RPC system. It defines the message envelope, configuration structures
// and logging.
//
// Key Components:
//
//   - Message: Envelope carried in the payload of every frame. It holds the
//     method name, the opaque body and the error text of a failed call.
//
//   - TransportConfig: Listen endpoint, deadlines, retry budget and socket
//     options of one transport instance.
//
//   - ServerConfig / ClientConfig: Configuration for the dispatcher and the
//     client, both wrapping a TransportConfig.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logger package, used by every package of the module.
package common
