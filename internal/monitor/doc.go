// Package monitor serves the operational HTTP endpoints.
//
// Endpoints:
//   - GET /health          listener stats and archive status as JSON
//   - GET /debug/sessions  open sessions per listener
//   - GET /ws/sessions     websocket stream of session lifecycle events
package monitor
