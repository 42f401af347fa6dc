package log

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type Options struct {
	Level  string // debug|info|warn|error
	Format string // json|console
	Output io.Writer
}

var current atomic.Pointer[zerolog.Logger]

func init() {
	Setup(Options{})
}

// Setup replaces the process-wide logger.
func Setup(opts Options) {
	var out io.Writer = opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	zerolog.TimeFieldFormat = time.RFC3339
	l := zerolog.New(out).With().Timestamp().Logger().Level(parseLevel(opts.Level))
	current.Store(&l)
}

// SetOutput points the logger at w and returns a func restoring the previous one.
func SetOutput(w io.Writer) func() {
	prev := current.Load()
	l := prev.Output(w)
	current.Store(&l)
	return func() { current.Store(prev) }
}

func parseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func write(ev *zerolog.Event, kind string, c *fiber.Ctx, action string, err error, fields map[string]any) {
	if ev == nil {
		return
	}
	ev = ev.Str("kind", kind).Str("action", action)
	if c != nil {
		ev = ev.Str("ip", c.IP()).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode())
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			ev = ev.Str("req_id", rid)
		}
	}
	if err != nil {
		ev = ev.Str("err", err.Error())
	}
	if len(fields) > 0 {
		ev = ev.Interface("fields", fields)
	}
	ev.Send()
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	write(current.Load().Info(), "info", c, action, nil, fields)
}
func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	write(current.Load().Info(), "audit", c, action, nil, fields)
}
func Security(c *fiber.Ctx, action string, fields map[string]any) {
	write(current.Load().Warn(), "security", c, action, nil, fields)
}
func Warn(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write(current.Load().Warn(), "warn", c, action, err, fields)
}
func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write(current.Load().Error(), "error", c, action, err, fields)
}
