package models

import "time"

// Snapshot is a complete, immutable view of one location's inventory as
// pushed by the remote store. It replaces any earlier snapshot wholesale.
type Snapshot struct {
	Location   string    `json:"location"`
	Items      []Item    `json:"items"`
	Version    uint64    `json:"version"`
	ReceivedAt time.Time `json:"received_at"`
}
