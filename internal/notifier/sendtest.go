package notifier

import (
	"context"
	"time"

	"github.com/amishk599/hirewire/internal/model"
)

// SendTest pushes one synthetic payload through pub (on recipient's topic)
// and, if sender is non-nil, a one-entry digest to digestRecipients.
func SendTest(ctx context.Context, pub model.Publisher, recipient string, sender model.DigestSender, digestRecipients []string) error {
	contract := "C2C"
	job := model.Job{
		ID:           "test:hirewire:1",
		Source:       "test:hirewire",
		Title:        "Test Notification (Integration Verified)",
		Company:      "hirewire",
		Location:     "Everywhere",
		URL:          "https://github.com/amishk599/hirewire",
		ContractType: &contract,
	}
	p := model.NewPayload(job, time.Now())

	if pub != nil {
		b, err := p.Marshal()
		if err != nil {
			return err
		}
		if err := pub.Publish(ctx, Topic(recipient), b); err != nil {
			return err
		}
	}
	if sender != nil && len(digestRecipients) > 0 {
		subject, body := ComposeDigest([]model.NotificationPayload{p}, DefaultPreviewLimit)
		if err := sender.Send(ctx, digestRecipients, subject, body); err != nil {
			return err
		}
	}
	return nil
}
