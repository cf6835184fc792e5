package utils

import (
	"strings"

	"github.com/jfrog/gofrog/log"
)

// Log is the logger injected into long running components such as the resolver.
// gofrog's logger satisfies it.
type Log interface {
	Debug(a ...interface{})
	Info(a ...interface{})
	Warn(a ...interface{})
	Error(a ...interface{})
	Output(a ...interface{})
}

// NullLog is a logger that does nothing
type NullLog struct {
}

func (nl *NullLog) Debug(...interface{}) {
}

func (nl *NullLog) Info(...interface{}) {
}

func (nl *NullLog) Warn(...interface{}) {
}

func (nl *NullLog) Error(...interface{}) {
}

func (nl *NullLog) Output(...interface{}) {
}

// ParseLogLevel maps a level name (ERROR, WARN, INFO, DEBUG) to a gofrog level. Unknown names map to INFO.
func ParseLogLevel(level string) log.LevelType {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "ERROR":
		return log.ERROR
	case "WARN":
		return log.WARN
	case "DEBUG":
		return log.DEBUG
	default:
		return log.INFO
	}
}
