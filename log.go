package main

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// tag prefixes every diagnostic line.
const tag = "nixuserchroot"

// tagHandler writes one line per record:
//
//	warning: nixuserchroot: could not stat, skip path=/lost+found err="..."
//
// Info records carry no level word.
type tagHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Level
	color  bool
	attrs  string
	prefix string
}

// colorEnabled reports whether w is a terminal that accepts color. The
// fatih/color default only looks at stdout, and diagnostics go to stderr.
func colorEnabled(w io.Writer, getenv func(string) string) bool {
	if getenv("NO_COLOR") != "" || getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newLogger(w io.Writer, verbose, colored bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(&tagHandler{mu: new(sync.Mutex), out: w, level: level, color: colored})
}

func (h *tagHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *tagHandler) levelWord(level slog.Level) string {
	var word string
	var c *color.Color
	switch {
	case level >= slog.LevelError:
		word, c = "error", color.New(color.FgRed, color.Bold)
	case level >= slog.LevelWarn:
		word, c = "warning", color.New(color.FgYellow)
	case level >= slog.LevelInfo:
		return ""
	default:
		word, c = "debug", color.New(color.FgCyan)
	}
	if h.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(word) + ": "
}

func (h *tagHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(h.levelWord(r.Level))
	b.WriteString(tag + ": ")
	b.WriteString(r.Message)
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *tagHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	for _, a := range attrs {
		appendAttr(&b, h.prefix, a)
	}
	h2 := *h
	h2.attrs += b.String()
	return &h2
}

func (h *tagHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix += name + "."
	return &h2
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, prefix, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix + a.Key + "=")
	v := a.Value.String()
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		v = strconv.Quote(v)
	}
	b.WriteString(v)
}
