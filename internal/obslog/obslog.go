// Package obslog provides the structured logging setup shared by every
// component of the proxy, grounded on the zerolog conventions in
// Nirmitee-tech-headless-ehr-fhir's middleware and cmd/ehr-server/main.go.
package obslog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the base logger. When logFilePath is non-empty, the "{Date}"
// token (spec.md §6) is replaced with the current date as yyyymmdd and
// output fans out to both stdout and the file via zerolog.MultiLevelWriter.
func New(logFilePath string) (zerolog.Logger, error) {
	writers := []io.Writer{os.Stdout}

	if logFilePath != "" {
		resolved := strings.ReplaceAll(logFilePath, "{Date}", time.Now().Format("20060102"))
		f, err := os.OpenFile(resolved, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, err
		}
		writers = append(writers, f)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return logger, nil
}

// For returns a child logger tagged with the given component name, mirroring
// the teacher pack's per-package `.With()` convention.
func For(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}
