//go:build unix

package log

import (
	"io"
	"log/syslog"
)

func newSyslogWriter(tag string) (io.WriteCloser, error) {
	return syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, tag)
}
