//go:build unix

package log

import (
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// OSInfo describes the running host as slog attributes.
func OSInfo() []any {
	attrs := baseOSInfo()
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return attrs
	}
	return append(attrs,
		slog.String("sysname", unix.ByteSliceToString(uts.Sysname[:])),
		slog.String("release", unix.ByteSliceToString(uts.Release[:])),
		slog.String("machine", unix.ByteSliceToString(uts.Machine[:])),
	)
}

func baseOSInfo() []any {
	attrs := []any{
		slog.String("goos", runtime.GOOS),
		slog.String("goarch", runtime.GOARCH),
		slog.String("go", runtime.Version()),
		slog.Int("pid", os.Getpid()),
	}
	if hostname, err := os.Hostname(); err == nil {
		attrs = append(attrs, slog.String("hostname", hostname))
	}
	return attrs
}
