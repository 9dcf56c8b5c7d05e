package monitor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"shopmate/pkg/llm"
)

// level backs the default logger so verbosity can change at runtime.
var level = new(slog.LevelVar)

// CustomHandler implements slog.Handler with a
// "[TIME] [LEVEL] [REQUEST_ID] message k=v" layout.
type CustomHandler struct {
	w     io.Writer
	mu    *sync.Mutex
	opts  slog.HandlerOptions
	attrs []slog.Attr
}

func NewCustomHandler(w io.Writer, opts slog.HandlerOptions) *CustomHandler {
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	return &CustomHandler{
		w:    w,
		mu:   &sync.Mutex{},
		opts: opts,
	}
}

func (h *CustomHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.opts.Level.Level()
}

func (h *CustomHandler) Handle(ctx context.Context, r slog.Record) error {
	buf := bytes.NewBuffer(nil)

	fmt.Fprintf(buf, "[%s] [%s]",
		r.Time.Format("2006-01-02 15:04:05"),
		r.Level,
	)

	if ctx != nil {
		if id := llm.RequestID(ctx); id != "" {
			fmt.Fprintf(buf, " [%s]", id)
		}
	}

	fmt.Fprintf(buf, " %s", r.Message)

	for _, a := range h.attrs {
		h.appendAttr(buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(buf, a)
		return true
	})

	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *CustomHandler) appendAttr(buf *bytes.Buffer, a slog.Attr) {
	buf.WriteString(" ")
	buf.WriteString(a.Key)
	buf.WriteString("=")

	val := a.Value.Resolve()
	switch val.Kind() {
	case slog.KindString:
		fmt.Fprintf(buf, "%q", val.String())
	case slog.KindTime:
		buf.WriteString(val.Time().Format(time.RFC3339))
	default:
		fmt.Fprintf(buf, "%v", val.Any())
	}
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &CustomHandler{
		w:     h.w,
		mu:    h.mu,
		opts:  h.opts,
		attrs: merged,
	}
}

// WithGroup is not supported; attributes stay flat.
func (h *CustomHandler) WithGroup(name string) slog.Handler {
	return h
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupSlog installs the CustomHandler as the global logger.
func SetupSlog(levelStr string) {
	level.Set(ParseLevel(levelStr))
	handler := NewCustomHandler(os.Stderr, slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// SetLevel changes the global log level; used on config reload.
func SetLevel(levelStr string) {
	next := ParseLevel(levelStr)
	if level.Level() != next {
		slog.Info("Log level changed", "from", level.Level(), "to", next)
		level.Set(next)
	}
}

// PrintBanner prints the startup banner
func PrintBanner() {
	banner := `
  ___ _                              _
 / __| |_  ___ _ __  _ __  __ _ ___| |_ ___
 \__ \ ' \/ _ \ '_ \| '  \/ _' |___|  _/ -_)
 |___/_||_\___/ .__/|_|_|_\__,_|    \__\___|
              |_|    todo list + Shopify assistant
`
	fmt.Println(banner)
}
