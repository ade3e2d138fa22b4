package notifier

import (
	"fmt"
	"strings"

	"github.com/amishk599/hirewire/internal/model"
)

// DefaultPreviewLimit is how many entries a digest lists before "+K more".
const DefaultPreviewLimit = 20

// ComposeDigest renders one summary message for a cycle's matches. The body
// numbers the first limit entries and ends with "+K more" when truncated.
func ComposeDigest(payloads []model.NotificationPayload, limit int) (subject, body string) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}

	noun := "jobs"
	if len(payloads) == 1 {
		noun = "job"
	}
	subject = fmt.Sprintf("%d new matching %s", len(payloads), noun)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", subject)

	shown := min(limit, len(payloads))
	for i, p := range payloads[:shown] {
		fmt.Fprintf(&b, "%d. %s", i+1, p.Title)
		if p.Company != "" {
			fmt.Fprintf(&b, " at %s", p.Company)
		}
		if p.Location != "" {
			fmt.Fprintf(&b, " (%s)", p.Location)
		}
		if p.Contract != "" {
			fmt.Fprintf(&b, " [%s]", p.Contract)
		}
		b.WriteByte('\n')
		if p.URL != "" {
			fmt.Fprintf(&b, "   %s\n", p.URL)
		}
	}
	if rest := len(payloads) - shown; rest > 0 {
		fmt.Fprintf(&b, "+%d more\n", rest)
	}

	return subject, b.String()
}
