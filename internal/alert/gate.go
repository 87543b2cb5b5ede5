package alert

import (
	"sync"

	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

type gateKey struct {
	location string
	owner    string
}

// Gate suppresses repeated alerts. It remembers which items of an owner were
// low after the previous evaluation and only lets an alert through when the
// item was not low before.
type Gate struct {
	mu  sync.Mutex
	low map[gateKey]map[string]bool
}

func NewGate() *Gate {
	return &Gate{low: map[gateKey]map[string]bool{}}
}

// Admit takes the complete result of one evaluation for (location, owner)
// and returns the alerts that represent a transition to low stock. Items not
// in events are considered back above their threshold.
func (g *Gate) Admit(location, owner string, events []models.AlertEvent) []models.AlertEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := gateKey{location: location, owner: owner}
	prev := g.low[key]
	next := make(map[string]bool, len(events))

	var admitted []models.AlertEvent
	for _, ev := range events {
		next[ev.ItemKey] = true
		if !prev[ev.ItemKey] {
			admitted = append(admitted, ev)
		}
	}

	if len(next) == 0 {
		delete(g.low, key)
	} else {
		g.low[key] = next
	}
	return admitted
}
