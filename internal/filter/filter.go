package filter

import (
	"strings"

	"github.com/amishk599/hirewire/internal/model"
)

// contractFallback counts as an employment match even when no configured
// employment keyword is present.
const contractFallback = "contract"

// Criteria is one recipient's interest: role, employment and location
// keyword lists. Matching is case-insensitive substring containment, so a
// keyword can match inside a larger word.
type Criteria struct {
	Roles      []string
	Employment []string
	Locations  []string
}

// CriteriaFilter evaluates a Criteria against jobs. It is immutable after
// construction and safe for concurrent use.
type CriteriaFilter struct {
	roles      []string
	employment []string
	locations  []string
}

// NewCriteriaFilter lower-cases and trims the keyword lists; empty entries are dropped.
func NewCriteriaFilter(c Criteria) *CriteriaFilter {
	return &CriteriaFilter{
		roles:      normalize(c.Roles),
		employment: normalize(c.Employment),
		locations:  normalize(c.Locations),
	}
}

// Match returns roleOk AND (employmentOk OR text contains "contract") AND locationOk.
// Role and employment are checked against title, company, location and
// description together; location only against the location field. An empty
// location list allows any location; an empty role list matches nothing.
func (f *CriteriaFilter) Match(job model.Job) bool {
	text := strings.ToLower(strings.Join([]string{job.Title, job.Company, job.Location, job.Description}, " "))

	if !containsAny(text, f.roles) {
		return false
	}
	if !containsAny(text, f.employment) && !strings.Contains(text, contractFallback) {
		return false
	}
	if len(f.locations) > 0 && !containsAny(strings.ToLower(job.Location), f.locations) {
		return false
	}
	return true
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
