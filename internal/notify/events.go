package notify

import (
	"fmt"
	"sort"
)

// Event names a business mutation that may produce a notification
type Event string

const (
	EventTransactionApplied    Event = "transaction.applied"
	EventCardIssued            Event = "card.issued"
	EventCardStatusChanged     Event = "card.status_changed"
	EventCardRemoved           Event = "card.removed"
	EventCardLimitsChanged     Event = "card.limits_changed"
	EventCardFreezeChanged     Event = "card.freeze_changed"
	EventCardNotificationsPref Event = "card.notifications_changed"
	EventGoalContribution      Event = "goal.contribution"
)

// Rules decides per event whether a notification is produced
type Rules map[Event]bool

// DefaultRules: status toggles and issue/remove notify, the quieter card
// settings and goal contributions do not.
func DefaultRules() Rules {
	return Rules{
		EventTransactionApplied:    true,
		EventCardIssued:            true,
		EventCardStatusChanged:     true,
		EventCardRemoved:           true,
		EventCardLimitsChanged:     false,
		EventCardFreezeChanged:     false,
		EventCardNotificationsPref: false,
		EventGoalContribution:      false,
	}
}

// Override switches the named events on and off. Unknown names are an error.
func (r Rules) Override(enabled, disabled []string) error {
	for _, name := range enabled {
		if _, ok := r[Event(name)]; !ok {
			return fmt.Errorf("unknown notification event %q", name)
		}
		r[Event(name)] = true
	}
	for _, name := range disabled {
		if _, ok := r[Event(name)]; !ok {
			return fmt.Errorf("unknown notification event %q", name)
		}
		r[Event(name)] = false
	}
	return nil
}

// Enabled reports whether ev should notify; unknown events never do.
func (r Rules) Enabled(ev Event) bool {
	return r[ev]
}

// Events lists the known events in stable order.
func (r Rules) Events() []Event {
	out := make([]Event, 0, len(r))
	for ev := range r {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
