package logging

import (
	"bytes"
	"log/slog"
	"strings"
)

// BridgeWriter is an io.Writer that turns lines written through the standard
// library log package (ours or a dependency's) into structured records. A
// leading "[category] " prefix becomes the component field.
type BridgeWriter struct {
	component string
}

// NewBridgeWriter creates a writer using defaultComponent for lines without a
// category prefix.
func NewBridgeWriter(defaultComponent string) *BridgeWriter {
	return &BridgeWriter{component: defaultComponent}
}

// Write treats p as one log line.
func (bw *BridgeWriter) Write(p []byte) (int, error) {
	n := len(p)
	msg := string(bytes.TrimSpace(p))
	if msg == "" {
		return n, nil
	}
	msg = stripLogTimestamp(msg)

	component := bw.component
	if strings.HasPrefix(msg, "[") {
		if idx := strings.Index(msg, "] "); idx > 0 {
			component = strings.ToLower(msg[1:idx])
			msg = msg[idx+2:]
		}
	}

	Logger().Info(msg, slog.String("component", canonicalComponent(component)))
	return n, nil
}

// stripLogTimestamp removes the "15:04:05" or "15:04:05.000000" prefix the
// log package adds with Ltime or Lmicroseconds.
func stripLogTimestamp(s string) string {
	if len(s) > 16 && s[2] == ':' && s[5] == ':' && s[8] == '.' && s[15] == ' ' {
		return s[16:]
	}
	if len(s) > 9 && s[2] == ':' && s[5] == ':' && s[8] == ' ' {
		return s[9:]
	}
	return s
}

// canonicalComponent folds category aliases onto the component constants.
func canonicalComponent(cat string) string {
	switch cat {
	case "query", "parser", "lexer":
		return CompQuery
	case "search", "executor", "builder":
		return CompSearch
	case "highlight", "highlighter":
		return CompHighlight
	case "storage", "statedb", "sqlite", "watcher":
		return CompStorage
	case "ui", "tui":
		return CompUI
	case "cli":
		return CompCLI
	case "perf", "pprof":
		return CompPerf
	default:
		return cat
	}
}
