// Package observability provides the ambient logging and diagnostic
// rate-limiting stack used by herder and cmd/tcphandoffd: structured logging
// via logiface with a zerolog sink, and noisy-diagnostic throttling via
// catrate.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/go-catrate"
	"github.com/rs/zerolog"
)

// Builder is the event builder passed to Logger's field-setting callbacks.
type Builder = logiface.Builder[*izerolog.Event]

// Logger wraps a logiface.Logger[*izerolog.Event], scoped with a cpu field
// identifying the herder an entry came from.
type Logger struct {
	zl   zerolog.Logger
	base *logiface.Logger[*izerolog.Event]
}

// New builds a Logger writing pretty-printed, leveled events to w (os.Stderr
// if nil).
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	return newLogger(zl)
}

func newLogger(zl zerolog.Logger) *Logger {
	return &Logger{
		zl: zl,
		base: logiface.New[*izerolog.Event](
			izerolog.L.WithZerolog(zl),
			logiface.WithLevel[*izerolog.Event](logiface.LevelTrace),
		),
	}
}

// ForCPU returns a Logger whose entries are tagged with the given herder's
// CPU identity.
func (l *Logger) ForCPU(cpu int) *Logger {
	return newLogger(l.zl.With().Int("cpu", cpu).Logger())
}

// Info logs an informational event with a category and fields.
func (l *Logger) Info(category string, fn func(b *Builder) *Builder) {
	b := l.base.Info().Str("category", category)
	if fn != nil {
		b = fn(b)
	}
	b.Log("")
}

// Warn logs a warning event.
func (l *Logger) Warn(category string, fn func(b *Builder) *Builder) {
	b := l.base.Warning().Str("category", category)
	if fn != nil {
		b = fn(b)
	}
	b.Log("")
}

// Err logs an error-level event.
func (l *Logger) Err(category string, err error, fn func(b *Builder) *Builder) {
	b := l.base.Err().Str("category", category).Err(err)
	if fn != nil {
		b = fn(b)
	}
	b.Log("")
}

// Limiter throttles repeated diagnostic log lines per category, so a burst
// of identical warnings (e.g. worker pool saturation under load) surfaces
// once rather than once per ready item.
type Limiter struct {
	rate *catrate.Limiter
}

// NewLimiter returns a Limiter allowing at most maxPerSecond events per
// second, per category.
func NewLimiter(maxPerSecond int) *Limiter {
	if maxPerSecond <= 0 {
		maxPerSecond = 1
	}
	return &Limiter{
		rate: catrate.NewLimiter(map[time.Duration]int{
			time.Second: maxPerSecond,
		}),
	}
}

// Allow reports whether a diagnostic for category may be logged now.
func (l *Limiter) Allow(category any) bool {
	if l == nil || l.rate == nil {
		return true
	}
	_, ok := l.rate.Allow(category)
	return ok
}
