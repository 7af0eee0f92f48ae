package events

import "github.com/sirupsen/logrus"

// Kind identifies the type of a crawl event.
type Kind string

const (
	KindAdded   Kind = "added"   // URL accepted into the sitemap
	KindIgnored Kind = "ignored" // URL discovered but excluded by policy
	KindError   Kind = "error"   // Fetch/parse failure for a single URL; non-fatal
	KindDone    Kind = "done"    // Crawl finished and sitemap file finalized; emitted exactly once
)

// Event is a transient notification raised during sitemap generation.
// Added/Ignored carry a URL; Error carries a URL and an error code; Done
// carries neither.
type Event struct {
	Kind Kind
	URL  string
	Code string // Error category code, set only for KindError
}

// Sink receives crawl events. Handlers are fire-and-forget: no return value,
// and the producer never delivers events concurrently.
type Sink interface {
	Publish(ev Event)
}

// LogSink writes a human-readable console line per event via logrus.
type LogSink struct {
	log *logrus.Entry
}

// NewLogSink creates a LogSink writing through the given entry.
func NewLogSink(log *logrus.Entry) *LogSink {
	return &LogSink{log: log}
}

// Publish implements Sink.
func (s *LogSink) Publish(ev Event) {
	switch ev.Kind {
	case KindAdded:
		s.log.Infof("Added: %s", ev.URL)
	case KindIgnored:
		s.log.Infof("Ignored: %s", ev.URL)
	case KindError:
		s.log.Warnf("Error: %s (%s)", ev.URL, ev.Code)
	case KindDone:
		s.log.Info("Sitemap generation completed!")
	default:
		s.log.Warnf("Unknown crawl event kind: %q", ev.Kind)
	}
}

// MultiSink fans a single event out to several sinks in order.
type MultiSink []Sink

// Publish implements Sink.
func (m MultiSink) Publish(ev Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}

// NopSink discards all events.
type NopSink struct{}

// Publish implements Sink.
func (NopSink) Publish(Event) {}
