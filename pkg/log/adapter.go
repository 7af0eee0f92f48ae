// Package log bridges third-party logger interfaces onto logrus.
package log

import "github.com/sirupsen/logrus"

// BadgerAdapter satisfies badger.Logger by forwarding to a logrus entry.
// Badger's routine Infof chatter (compaction, value log activity) is demoted
// to debug so it does not drown the crawl log.
type BadgerAdapter struct {
	entry *logrus.Entry
}

// NewBadgerAdapter wraps the given entry for use as a badger.Logger.
func NewBadgerAdapter(entry *logrus.Entry) *BadgerAdapter {
	return &BadgerAdapter{entry: entry}
}

func (a *BadgerAdapter) Errorf(format string, args ...interface{}) {
	a.entry.Errorf(format, args...)
}

func (a *BadgerAdapter) Warningf(format string, args ...interface{}) {
	a.entry.Warningf(format, args...)
}

func (a *BadgerAdapter) Infof(format string, args ...interface{}) {
	a.entry.Debugf(format, args...)
}

func (a *BadgerAdapter) Debugf(format string, args ...interface{}) {
	a.entry.Debugf(format, args...)
}
