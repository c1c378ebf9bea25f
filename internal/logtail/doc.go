// Package logtail reads the tail of tagplayer's JSON log file.
//
// Read returns the last N lines using a ring buffer, so memory stays
// O(N) regardless of file size. Parse turns a zerolog JSON line into an
// Entry, keeping unrecognised keys in Fields. Tail combines the two and
// filters by minimum level; it backs the web interface's log view.
package logtail
