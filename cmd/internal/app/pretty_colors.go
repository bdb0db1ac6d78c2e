package app

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ANSI escape codes used by the pretty handler.
const (
	ansiReset   = "\x1b[0m"
	ansiDim     = "\x1b[2m"
	ansiBright  = "\x1b[1m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

const (
	prettyMinWidth     = 40
	prettyDefaultWidth = 100
)

// stripANSI removes ESC[...m sequences so widths can be measured.
func stripANSI(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// visualLen is the printable rune count, ANSI sequences excluded.
func visualLen(s string) int {
	return len([]rune(stripANSI(s)))
}

// truncateVisual shortens s to at most width printable runes, appending a
// truncation marker. Color is dropped on truncation.
func truncateVisual(s string, width int) string {
	if width <= 1 || visualLen(s) <= width {
		return s
	}
	plain := []rune(stripANSI(s))
	return string(plain[:width-1]) + "…"
}

// wrapSegments packs segments into lines no wider than width. Continuation
// lines start with contPrefix. A single segment wider than its line budget is
// truncated rather than split.
func wrapSegments(segments []string, sep string, width int, contPrefix string) []string {
	if width < prettyMinWidth {
		width = prettyMinWidth
	}

	var lines []string
	line := ""
	for _, seg := range segments {
		if seg == "" {
			continue
		}

		if line == "" {
			line = truncateVisual(seg, width)
			continue
		}

		if visualLen(line)+visualLen(sep)+visualLen(seg) <= width {
			line += sep + seg
			continue
		}

		lines = append(lines, line)
		line = contPrefix + truncateVisual(seg, width-visualLen(contPrefix))
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// terminalWidth resolves the output width: explicit override first, then the
// COLUMNS convention, then a fixed default. Implausibly narrow values fall
// through.
func (h *prettyHandler) terminalWidth() int {
	if n := envWidth("COURIER_LOG_WIDTH"); n >= prettyMinWidth {
		return n
	}
	if n := envWidth("COLUMNS"); n >= prettyMinWidth {
		return n
	}
	return prettyDefaultWidth
}

func envWidth(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// ---- value colorizers ----

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	default:
		return 0, false
	}
}

func colorizeHTTPMethod(m string, color bool) string {
	if !color {
		return m
	}
	switch m {
	case "GET":
		return ansiGreen + m + ansiReset
	case "POST", "PUT", "PATCH":
		return ansiBlue + m + ansiReset
	case "DELETE":
		return ansiRed + m + ansiReset
	default:
		return m
	}
}

func colorizeStatusCode(n int, color bool) string {
	s := strconv.Itoa(n)
	if !color {
		return s
	}
	switch {
	case n >= 500:
		return ansiRed + s + ansiReset
	case n >= 400:
		return ansiYellow + s + ansiReset
	case n >= 300:
		return ansiCyan + s + ansiReset
	default:
		return ansiGreen + s + ansiReset
	}
}

func colorizeStatusClass(s string, color bool) string {
	if !color {
		return s
	}
	switch s {
	case "5xx":
		return ansiRed + s + ansiReset
	case "4xx":
		return ansiYellow + s + ansiReset
	case "3xx":
		return ansiCyan + s + ansiReset
	case "2xx":
		return ansiGreen + s + ansiReset
	default:
		return s
	}
}

func colorizeDurationMS(n int64, color bool) string {
	s := strconv.FormatInt(n, 10) + "ms"
	if !color {
		return s
	}
	switch {
	case n >= 1000:
		return ansiRed + s + ansiReset
	case n >= 250:
		return ansiYellow + s + ansiReset
	default:
		return ansiDim + s + ansiReset
	}
}

func colorizeResult(s string, color bool) string {
	if !color {
		return s
	}
	switch s {
	case "success":
		return ansiGreen + s + ansiReset
	case "redirect":
		return ansiCyan + s + ansiReset
	case "client_error":
		return ansiYellow + s + ansiReset
	case "server_error":
		return ansiRed + s + ansiReset
	default:
		return s
	}
}
