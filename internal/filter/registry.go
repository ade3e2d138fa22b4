package filter

import (
	"github.com/amishk599/hirewire/internal/model"
)

// Recipient pairs a recipient id with the filter for that recipient's criteria.
type Recipient struct {
	ID     string
	Filter model.JobFilter
}

// Registry maps recipients to their interest. Order is preserved so
// fan-out happens in configuration order.
type Registry struct {
	recipients []Recipient
}

func NewRegistry(recipients ...Recipient) *Registry {
	return &Registry{recipients: recipients}
}

// MatchingRecipients returns the ids of every recipient whose filter accepts job.
func (r *Registry) MatchingRecipients(job model.Job) []string {
	var ids []string
	for _, rc := range r.recipients {
		if rc.Filter.Match(job) {
			ids = append(ids, rc.ID)
		}
	}
	return ids
}

// IDs lists the registered recipient ids.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.recipients))
	for i, rc := range r.recipients {
		ids[i] = rc.ID
	}
	return ids
}
