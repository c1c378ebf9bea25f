// Package app is tagplayer's composition root.
//
// Run loads the config and settings, builds the API client, tag reader,
// network monitor, feedback sinks and state machine, and runs three services
// under a suture supervisor:
//
//   - host-loop: ticks the machine, runs jobs submitted by the web API and
//     publishes the client session to the state store
//   - web-api: the HTTP API
//   - status-panel: the Bubble Tea panel, when enabled
//
// The host loop is the only goroutine that touches the API client. Other
// services reach it through Loop.Do, which queues a function to run between
// ticks and waits for it.
//
// When the machine gives up (or /api/restart is called) the loop ends the
// supervisor tree and Run returns ErrRestart. The caller is expected to
// restart the process.
package app
