// Package storage persists crawl run history and seen-keys.
//
// Drivers: "file" (JSON Lines + snapshot), "sqlite" (behind the sqlite build
// tag), or "none". Seen-keys back new-entry detection and SJR miss caching.
package storage
