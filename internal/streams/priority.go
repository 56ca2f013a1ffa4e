package streams

import "github.com/coldwave-io/qcore/internal/protocol"

// priorityMap keeps every open stream's priority in one place so the
// Manager can answer "what's the highest-priority level with work to do"
// without walking every quartet. setStreamPriority is a no-op when the
// priority hasn't actually changed.
type priorityMap struct {
	byLevel map[int]map[protocol.StreamID]struct{}
}

func newPriorityMap() *priorityMap {
	return &priorityMap{byLevel: make(map[int]map[protocol.StreamID]struct{})}
}

// set records id's priority, returning true if the level or the
// incremental flag actually changed (the caller uses this to decide
// whether to notify write schedulers).
func (p *priorityMap) set(id protocol.StreamID, old, new Priority) bool {
	if old.Level == new.Level && old.Incremental == new.Incremental {
		return false
	}
	if set, ok := p.byLevel[old.Level]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(p.byLevel, old.Level)
		}
	}
	set, ok := p.byLevel[new.Level]
	if !ok {
		set = make(map[protocol.StreamID]struct{})
		p.byLevel[new.Level] = set
	}
	set[id] = struct{}{}
	return true
}

func (p *priorityMap) remove(id protocol.StreamID, level int) {
	if set, ok := p.byLevel[level]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(p.byLevel, level)
		}
	}
}

// highestLevel returns the numerically lowest (highest-precedence) level
// with at least one stream, or DefaultMaxPriorityLevel if none is open.
func (p *priorityMap) highestLevel() int {
	best := DefaultMaxPriorityLevel
	found := false
	for level := range p.byLevel {
		if !found || level < best {
			best = level
			found = true
		}
	}
	return best
}
