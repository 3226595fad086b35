// Package logparse derives lightweight metadata from raw log lines.
package logparse

import (
	"regexp"
	"strings"
)

// Level is a normalized log severity. The zero value means no severity
// was recognized.
type Level int

const (
	LevelUnknown Level = iota
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"", "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return ""
	}
	return levelNames[l]
}

// SeverityRegex matches common severity tokens in log text.
var SeverityRegex = regexp.MustCompile(`(?i)\b(TRACE|TRC|DEBUG|DBG|INFO|INF|WARN|WARNING|WRN|ERROR|ERR|FATAL|CRITICAL|CRIT|PANIC)\b`)

// ParseLevel converts the many spellings of a severity to a Level.
// Unrecognized input yields LevelUnknown.
func ParseLevel(severity string) Level {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "TRACE", "TRAC", "TRC":
		return LevelTrace
	case "DEBUG", "DEBU", "DBG", "DEB":
		return LevelDebug
	case "INFO", "INFORMATION", "INF":
		return LevelInfo
	case "WARN", "WARNING", "WRNG", "WRN":
		return LevelWarn
	case "ERROR", "ERR", "ERRO":
		return LevelError
	case "FATAL", "FATL", "FTL", "CRITICAL", "CRIT", "CRT", "PANIC", "PNC":
		return LevelFatal
	}
	if len(normalized) >= 4 {
		switch normalized[:4] {
		case "INFO":
			return LevelInfo
		case "WARN":
			return LevelWarn
		case "ERRO":
			return LevelError
		case "DEBU":
			return LevelDebug
		case "TRAC":
			return LevelTrace
		case "FATA", "CRIT":
			return LevelFatal
		}
	}
	return LevelUnknown
}

// NormalizeSeverity returns the canonical short name for severity, or
// "INFO" when it is not recognized.
func NormalizeSeverity(severity string) string {
	if l := ParseLevel(severity); l != LevelUnknown {
		return l.String()
	}
	return LevelInfo.String()
}

// DetectLevel finds the first severity token in a log line.
func DetectLevel(line string) Level {
	m := SeverityRegex.FindStringSubmatch(line)
	if len(m) < 2 {
		return LevelUnknown
	}
	return ParseLevel(m[1])
}

// ExtractSeverityFromText returns the severity named in message, or
// "INFO" when none is found.
func ExtractSeverityFromText(message string) string {
	if l := DetectLevel(message); l != LevelUnknown {
		return l.String()
	}
	return LevelInfo.String()
}
