// Package machine implements the player's state machine.
//
// The machine starts in BOOT, waits for the network, brings up the tag source
// and the API session, then sits in IDLE waiting for taps:
//
//	BOOT → WIFI_CONNECTING → WIFI_CONNECTED → API_INITIALIZING → IDLE
//	IDLE → TAG_DETECTED → TAG_READING → TAG_PROCESSING → PLAYBACK_SUCCESS|PLAYBACK_FAILED → IDLE
//	IDLE → WIFI_RECONNECTING → IDLE | ERROR_RECOVERY
//
// ERROR_RECOVERY has one way out: after a cooldown Tick returns ErrRestart
// and the process restarts itself.
//
// # Ticks
//
// Tick is called from one goroutine at a fixed cadence and ignores calls that
// arrive sooner than Timing.Tick. Each state has an entry action, run once on
// the first tick after a transition, and a per-tick action that does at most
// one unit of work. HTTP calls made through the client may block inside a
// tick. Everything else that waits (boot delay, probe spacing, API retry,
// feedback display, timeouts) is a deadline compared on every tick.
//
// # Taps
//
// A tap leaves IDLE only if the debounce interval has passed since the last
// accepted tap. Taps inside the window are drained and dropped.
package machine
