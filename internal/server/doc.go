// Package server implements the WebSocket and HTTP surface of the chat service.
//
// The Hub goroutine owns live membership and fans frames out to per-room
// client queues. Each Client runs a read pump that decodes frames and calls
// the message store, and a write pump that drains its queue onto the socket.
// The REST handlers are thin wrappers over the users, rooms and messages
// packages; message edits and deletes are announced to the owning room
// through the same hub.
package server
