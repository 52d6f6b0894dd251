// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// The server owns the socket file lifecycle. Request and response types reuse
// the HTTP API DTOs so both surfaces render pipelines identically.
package ipc
