// Package state holds the observable snapshot of the player.
//
// The host loop is the only writer: the state machine records state changes,
// cues and playback results, and the loop copies the API client's session
// after each tick. The web API and the TUI read copies through Snapshot, so
// neither ever touches the client or the machine directly.
//
// Store is ready to use as a zero value. Snapshot clones the device slice and
// wraps the last error so readers cannot mutate shared data.
package state
