package log

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const appName = "sqriak"

var (
	logDir     string
	logDirOnce sync.Once
)

// GetLogDir returns a writable log directory, created on first use:
// /var/log/sqriak on Linux when writable, else ~/.sqriak, else a
// directory under the system temp dir.
func GetLogDir() string {
	logDirOnce.Do(func() {
		for _, dir := range candidateLogDirs() {
			if writable(dir) {
				logDir = dir
				return
			}
		}
		logDir = filepath.Join(os.TempDir(), appName)
		_ = os.MkdirAll(logDir, 0o755)
	})
	return logDir
}

func candidateLogDirs() []string {
	var dirs []string
	if runtime.GOOS == "linux" {
		dirs = append(dirs, filepath.Join("/var/log", appName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "."+appName))
	}
	return dirs
}

func writable(dir string) bool {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	f, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

// GetLogFilePath returns the default log file path.
func GetLogFilePath() string {
	return filepath.Join(GetLogDir(), appName+".log")
}
