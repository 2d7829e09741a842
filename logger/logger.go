// Package logger fournit le logger slog global du moteur.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	once   sync.Once
	mu     sync.RWMutex
	logger *slog.Logger
)

// Config décrit le logger.
type Config struct {
	Level     string // DEBUG, INFO, WARN, ERROR
	Format    string // json, text
	AddSource bool
	Output    io.Writer // os.Stderr par défaut
}

// ParseLevel convertit un niveau textuel ; INFO par défaut.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New construit un logger sans toucher au logger global.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// Init initialise le logger global. Seul le premier appel compte.
func Init(cfg Config) {
	once.Do(func() {
		l := New(cfg)
		mu.Lock()
		logger = l
		mu.Unlock()
		slog.SetDefault(l)
	})
}

// Get retourne le logger global.
func Get() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l == nil {
		Init(Config{Level: "INFO", Format: "text"})
		mu.RLock()
		l = logger
		mu.RUnlock()
	}
	return l
}

type ctxKey struct{}

// WithStatement attache le texte de l'instruction en cours au contexte.
func WithStatement(ctx context.Context, sql string) context.Context {
	return context.WithValue(ctx, ctxKey{}, sql)
}

// FromContext retourne le logger global enrichi de l'instruction en cours.
func FromContext(ctx context.Context) *slog.Logger {
	l := Get()
	if sql, ok := ctx.Value(ctxKey{}).(string); ok && sql != "" {
		return l.With("sql", sql)
	}
	return l
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}
