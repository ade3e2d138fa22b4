package filter

import (
	"reflect"
	"testing"

	"github.com/amishk599/hirewire/internal/model"
)

func job(title, location, description string) model.Job {
	return model.Job{Title: title, Location: location, Description: description}
}

func TestCriteriaFilter_Match(t *testing.T) {
	tests := []struct {
		name      string
		criteria  Criteria
		job       model.Job
		wantMatch bool
	}{
		{
			name: "role, employment and location all match",
			criteria: Criteria{
				Roles:      []string{"backend java"},
				Employment: []string{"c2c"},
				Locations:  []string{"remote"},
			},
			job:       job("Backend Java Engineer", "Remote, USA", "C2C contract available"),
			wantMatch: true,
		},
		{
			name: "location not allowed",
			criteria: Criteria{
				Roles:      []string{"backend java"},
				Employment: []string{"c2c"},
				Locations:  []string{"usa", "remote"},
			},
			job:       job("Backend Java Engineer", "Berlin, Germany", "C2C contract available"),
			wantMatch: false,
		},
		{
			name: "contract word stands in for employment keywords",
			criteria: Criteria{
				Roles:      []string{"java"},
				Employment: []string{"w2"},
			},
			job:       job("Java Developer", "Austin, TX", "12 month contract"),
			wantMatch: true,
		},
		{
			name: "no employment signal",
			criteria: Criteria{
				Roles:      []string{"java"},
				Employment: []string{"w2"},
			},
			job:       job("Java Developer", "Austin, TX", "permanent role"),
			wantMatch: false,
		},
		{
			name: "role missing",
			criteria: Criteria{
				Roles:      []string{"golang"},
				Employment: []string{"c2c"},
			},
			job:       job("Java Developer", "Remote", "c2c"),
			wantMatch: false,
		},
		{
			name: "role found in description",
			criteria: Criteria{
				Roles:      []string{"spring boot"},
				Employment: []string{"c2c"},
			},
			job:       job("Software Engineer", "Remote", "Spring Boot microservices, C2C ok"),
			wantMatch: true,
		},
		{
			name: "keywords are case-insensitive and trimmed",
			criteria: Criteria{
				Roles:      []string{"  FULLSTACK "},
				Employment: []string{"W2"},
				Locations:  []string{" US "},
			},
			job:       job("Fullstack Developer", "US Remote", "w2 only"),
			wantMatch: true,
		},
		{
			name: "substring match inside a larger word",
			criteria: Criteria{
				Roles:      []string{"java"},
				Employment: []string{"c2c"},
			},
			job:       job("JavaScript Engineer", "Remote", "c2c"),
			wantMatch: true,
		},
		{
			name:      "empty role list matches nothing",
			criteria:  Criteria{Employment: []string{"c2c"}},
			job:       job("Anything", "Anywhere", "c2c"),
			wantMatch: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewCriteriaFilter(tt.criteria)
			if got := f.Match(tt.job); got != tt.wantMatch {
				t.Errorf("Match() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

func TestRegistry_MatchingRecipients(t *testing.T) {
	java := NewCriteriaFilter(Criteria{Roles: []string{"java"}, Employment: []string{"c2c"}})
	golang := NewCriteriaFilter(Criteria{Roles: []string{"golang"}, Employment: []string{"c2c"}})
	remoteJava := NewCriteriaFilter(Criteria{Roles: []string{"java"}, Employment: []string{"c2c"}, Locations: []string{"remote"}})

	reg := NewRegistry(
		Recipient{ID: "alice", Filter: java},
		Recipient{ID: "bob", Filter: golang},
		Recipient{ID: "carol", Filter: remoteJava},
	)

	got := reg.MatchingRecipients(job("Java Developer", "Remote", "c2c"))
	if want := []string{"alice", "carol"}; !reflect.DeepEqual(got, want) {
		t.Errorf("MatchingRecipients() = %v, want %v", got, want)
	}

	if got := reg.MatchingRecipients(job("Java Developer", "Dallas", "c2c")); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Errorf("expected only alice, got %v", got)
	}

	if got := reg.MatchingRecipients(job("Rust Developer", "Remote", "c2c")); len(got) != 0 {
		t.Errorf("expected no recipient to match, got %v", got)
	}
	if !reflect.DeepEqual(reg.IDs(), []string{"alice", "bob", "carol"}) {
		t.Errorf("unexpected IDs %v", reg.IDs())
	}
}
