// Package common provides the process-wide structured logger shared by every
// package: a single logrus instance with stream-splitting output so error
// records go to stderr and everything else to stdout, letting container log
// collectors apply different retention/alerting per stream. The split keys on
// the text formatter's "level=error"; JSON-formatted records all go to stdout.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes logrus's formatted output by level: messages
// containing "level=error" go to stderr, everything else to stdout.
type OutputSplitter struct{}

func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the global logger instance every package logs through.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
