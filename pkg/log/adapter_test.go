package log

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newCaptureEntry() (*logrus.Entry, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), &buf
}

func TestBadgerAdapterForwardsLevels(t *testing.T) {
	entry, buf := newCaptureEntry()
	adapter := NewBadgerAdapter(entry)

	adapter.Errorf("err %s", "one")
	adapter.Warningf("warn %d", 2)
	adapter.Debugf("dbg %v", true)

	out := buf.String()
	assert.Contains(t, out, "err one")
	assert.Contains(t, out, "warn 2")
	assert.Contains(t, out, "dbg true")
}

func TestBadgerAdapterDemotesInfoToDebug(t *testing.T) {
	entry, buf := newCaptureEntry()
	adapter := NewBadgerAdapter(entry)

	adapter.Infof("compaction chatter")
	assert.Contains(t, buf.String(), "level=debug")
}
