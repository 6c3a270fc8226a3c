//go:build !unix

package log

import (
	"errors"
	"io"
)

func newSyslogWriter(string) (io.WriteCloser, error) {
	return nil, errors.New("not supported on this platform")
}
