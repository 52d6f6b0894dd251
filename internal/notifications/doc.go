// Package notifications turns detected status changes into user alerts.
//
// Compose renders a change into title/body content using the outcome-pair
// wording. The Dispatcher consumes the monitor's change stream in order, asks
// the injected AlertService for its live settings before every delivery, and
// makes exactly one delivery attempt per change. The ntfy-backed AlertService
// posts alerts to a topic URL and degrades to a no-op when no topic is set.
package notifications
