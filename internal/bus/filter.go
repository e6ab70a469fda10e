package bus

import "github.com/mocraimer/genflow/pkg/models"

// Filter selects messages a MessageHandler cares about. Every non-empty
// predicate must match (logical AND); MetadataFilters requires exact
// equality for every listed key (§4.6 Filter).
type Filter struct {
	Sender          string
	Recipient       string
	MessageType     string
	MetadataFilters map[string]any
}

// Matches reports whether msg satisfies every predicate set on f.
func (f Filter) Matches(msg models.AgentMessage) bool {
	if f.Sender != "" && f.Sender != msg.Sender {
		return false
	}
	if f.Recipient != "" && f.Recipient != msg.Recipient {
		return false
	}
	if f.MessageType != "" && f.MessageType != msg.MessageType {
		return false
	}
	for k, v := range f.MetadataFilters {
		if msg.Metadata == nil {
			return false
		}
		got, ok := msg.Metadata[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// HandlerFunc processes one delivered message. Errors and panics are logged
// and never abort the routing batch (§4.6 Send); they are not counted in
// Stats.
type HandlerFunc func(msg models.AgentMessage) error

// Handler pairs a Filter with a HandlerFunc under a stable id.
type Handler struct {
	ID      string
	Filter  Filter
	Handle  HandlerFunc
}
