package model

// Notifier delivers a rendered run report to operators.
type Notifier interface {
	// Send delivers body, an HTML fragment, under the given subject line.
	Send(subject, body string) error
}
