package campaign

import (
	"github.com/qubic/go-crowdsensing/entities"
	"slices"
)

// emit appends an event to the log. Must be called with the lock held and
// only after the operation committed.
func (s *Service) emit(e entities.Event) {
	e.CampaignID = s.id
	e.Sequence = uint64(len(s.events)) + 1
	e.Cycle = s.cycle
	e.Timestamp = s.now().UTC()
	s.events = append(s.events, e)
}

// Events returns a copy of the complete event log in sequence order.
func (s *Service) Events() []entities.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.events)
}

// EventsSince returns at most limit events with a sequence greater than
// after. A limit <= 0 returns all of them.
func (s *Service) EventsSince(after uint64, limit int) []entities.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if after >= uint64(len(s.events)) {
		return nil
	}
	// sequences are contiguous and start at 1
	pending := s.events[after:]
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return slices.Clone(pending)
}

// LastSequence returns the sequence of the latest event, 0 for an empty log.
func (s *Service) LastSequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return uint64(len(s.events))
}
