// Package ui renders a terminal status panel with Bubble Tea.
//
// The panel shows the latest feedback cue as a colored badge, with a spinner
// for cues that mean work is in progress, and a summary of the state
// snapshot: machine state, target device, session and last tap. It refreshes
// the snapshot once a second; cues arrive through Sink as they happen.
//
// Keys: t cycles the theme (persisted through Options.SaveTheme), q quits.
package ui
