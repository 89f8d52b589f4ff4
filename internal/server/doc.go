// Package server implements the HTTP and WebSocket surface of LanDrop.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, routing, and HTTP handlers to keep the codebase
// maintainable and testable as the project grows. File storage, durable
// chat history, and identity assignment live in their own packages under
// internal/ and are wired together here by the App type.
package server
