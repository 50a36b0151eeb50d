// Package server implements the TCP listener shared by all protocol handlers.
//
// The listener:
//   - Accepts connections and runs one handler goroutine per connection
//   - Assigns every connection a session ID (UUID) and a cancellable context
//   - Publishes session lifecycle events to an optional EventPublisher
//   - Shuts down gracefully, cancelling sessions still open after the grace period
package server
