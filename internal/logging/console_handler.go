package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"
)

var timeColor = color.New(color.FgWhite)
var componentColor = color.New(color.FgCyan)
var attrColor = color.New(color.FgWhite).Add(color.Faint)

var debugColor = color.New(color.FgBlue)
var infoColor = color.New(color.FgGreen)
var warnColor = color.New(color.FgYellow, color.Bold)
var errorColor = color.New(color.FgRed, color.Bold)
var errorLabelColor = color.New(color.BgRed)
var errorDetailColor = color.New(color.FgRed)

func levelColor(level slog.Level) *color.Color {
	switch {
	case level >= slog.LevelError:
		return errorColor
	case level >= slog.LevelWarn:
		return warnColor
	case level >= slog.LevelInfo:
		return infoColor
	default:
		return debugColor
	}
}

// ConsoleHandler prints one colored line per record for local development.
type ConsoleHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

var _ slog.Handler = &ConsoleHandler{}

func NewConsoleHandler(w io.Writer, level slog.Leveler) *ConsoleHandler {
	return &ConsoleHandler{mu: &sync.Mutex{}, out: w, level: level}
}

func (h *ConsoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ConsoleHandler) Handle(ctx context.Context, r slog.Record) error {
	var component, errText string
	var other []slog.Attr

	collect := func(attr slog.Attr, prefix string) {
		switch attr.Key {
		case "component":
			component = attr.Value.String()
		case "error":
			errText = attr.Value.String()
		default:
			if prefix != "" {
				attr.Key = prefix + attr.Key
			}
			other = append(other, attr)
		}
	}
	for _, a := range h.attrs {
		collect(a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a, h.prefix)
		return true
	})

	var buf bytes.Buffer
	timeColor.Fprint(&buf, r.Time.Format("2006-01-02 15:04:05.000 "))
	levelColor(r.Level).Fprint(&buf, r.Level.String())
	buf.WriteByte(' ')
	if component != "" {
		componentColor.Fprint(&buf, component)
		buf.WriteByte(' ')
	}
	buf.WriteString(r.Message)
	for _, a := range other {
		buf.WriteByte(' ')
		attrColor.Fprint(&buf, fmt.Sprintf("%s=%v", a.Key, a.Value.Resolve().Any()))
	}
	buf.WriteByte('\n')
	if errText != "" {
		errorLabelColor.Fprint(&buf, "ERR")
		buf.WriteByte(' ')
		errorDetailColor.Fprint(&buf, errText)
		buf.WriteByte('\n')
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" && a.Key != "component" {
			a.Key = h.prefix + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return &c
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}
