package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/angelmondragon/cropmarket-backend/pkg/env"
	"github.com/rs/zerolog"
)

const redacted = "[redacted]"

// Keys whose values never reach the log output. Matching is case-insensitive
// on the full key or on a suffix after the last underscore.
var sensitiveKeys = map[string]struct{}{
	"password":       {},
	"authorization":  {},
	"token":          {},
	"secret":         {},
	"client_secret":  {},
	"card_number":    {},
	"webhook_secret": {},
}

// Options configures the structured logger. Format is "json" or "console";
// empty falls back to CROPMARKET_LOG_FORMAT.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Format      string
	Output      io.Writer
}

// Logger wraps zerolog and carries request-scoped fields through context.
type Logger struct {
	base      *zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	if opts.Format == "" {
		opts.Format = env.Prefixed("LOG_FORMAT", "json")
	}

	var output io.Writer = os.Stdout
	if opts.Output != nil {
		output = opts.Output
	}
	if strings.EqualFold(strings.TrimSpace(opts.Format), "console") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	base := zerolog.New(output).
		Level(opts.Level).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()

	return &Logger{base: &base, warnStack: opts.WarnStack}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(Options{ServiceName: "nop", Output: io.Discard, Level: zerolog.Disabled})
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) fromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return entry
		}
	}
	return l.base
}

func (l *Logger) attach(ctx context.Context, entry zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, &entry)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.WithFields(ctx, map[string]any{key: value})
}

// WithFields returns a context whose log entries carry fields. Sensitive keys
// are masked.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	builder := l.fromContext(ctx).With()
	for k, v := range fields {
		if isSensitive(k) {
			builder = builder.Str(k, redacted)
			continue
		}
		builder = builder.Interface(k, v)
	}
	return l.attach(ctx, builder.Logger())
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.WithField(ctx, "user_id", userID)
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.WithField(ctx, "actor_role", role)
}

func (l *Logger) WithPurchaseID(ctx context.Context, purchaseID string) context.Context {
	return l.WithField(ctx, "purchase_id", purchaseID)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.fromContext(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.fromContext(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.fromContext(ctx).Warn()
	if l.warnStack && event.Enabled() {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

// Error logs at error level with the caller's stack attached.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.fromContext(ctx).Error()
	if !event.Enabled() {
		return
	}
	if err != nil {
		event = event.Err(err)
	}
	event.Str("stack", stackTrace()).Msg(msg)
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	if _, ok := sensitiveKeys[k]; ok {
		return true
	}
	if i := strings.LastIndexByte(k, '_'); i >= 0 {
		_, ok := sensitiveKeys[k[i+1:]]
		return ok
	}
	return false
}

func isLoggerFrame(line string) bool {
	return strings.Contains(line, "/pkg/logger.(*Logger)") || strings.Contains(line, "/pkg/logger.stackTrace")
}

// stackTrace drops the goroutine header and the frames inside this package.
func stackTrace() string {
	lines := strings.Split(strings.TrimSpace(string(debug.Stack())), "\n")
	start := 1
	for i := 1; i+1 < len(lines); i += 2 {
		if strings.Contains(lines[i], "runtime/debug.Stack") || isLoggerFrame(lines[i]) {
			start = i + 2
			continue
		}
		break
	}
	if start >= len(lines) {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[start:], "\n")
}
