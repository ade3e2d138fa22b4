package pipeline

import "fmt"

// SourceFailure is one adapter's network or parse error. The source
// contributed no jobs to the cycle.
type SourceFailure struct {
	Source string
	Err    error
}

func (f SourceFailure) Error() string { return fmt.Sprintf("source %s: %v", f.Source, f.Err) }
func (f SourceFailure) Unwrap() error { return f.Err }

// StorageFailure is a ledger or upsert error for one job.
type StorageFailure struct {
	JobID string
	Op    string // "ledger" or "upsert"
	Err   error
}

func (f StorageFailure) Error() string {
	return fmt.Sprintf("storage %s for %s: %v", f.Op, f.JobID, f.Err)
}
func (f StorageFailure) Unwrap() error { return f.Err }

// NotificationFailure is a realtime publish or digest dispatch error.
type NotificationFailure struct {
	Channel   string // "realtime" or "digest"
	Recipient string
	JobID     string
	Err       error
}

func (f NotificationFailure) Error() string {
	if f.Channel == "digest" {
		return fmt.Sprintf("digest dispatch: %v", f.Err)
	}
	return fmt.Sprintf("realtime publish for %s to %s: %v", f.JobID, f.Recipient, f.Err)
}
func (f NotificationFailure) Unwrap() error { return f.Err }

// CycleFailure is an error that escaped every per-item boundary, including
// a recovered panic.
type CycleFailure struct {
	CycleID string
	Err     error
}

func (f CycleFailure) Error() string { return fmt.Sprintf("cycle %s failed: %v", f.CycleID, f.Err) }
func (f CycleFailure) Unwrap() error { return f.Err }

// Kind names the failure category, as logged under the "kind" attribute.
func Kind(err error) string {
	switch err.(type) {
	case SourceFailure:
		return "source"
	case StorageFailure:
		return "storage"
	case NotificationFailure:
		return "notification"
	case CycleFailure:
		return "cycle"
	}
	return "unknown"
}
