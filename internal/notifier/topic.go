package notifier

import "strings"

// TopicPrefix namespaces realtime channels; subscribers pattern-match on TopicPrefix+"*".
const TopicPrefix = "notifications:"

// Topic returns the realtime channel for a recipient.
func Topic(recipient string) string {
	return TopicPrefix + recipient
}

// RecipientFromTopic extracts the recipient id, reporting false for foreign topics.
func RecipientFromTopic(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, TopicPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
