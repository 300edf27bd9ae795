// Package logging provides categorized, zap-backed logging for townhall.
// Every subsystem logs through its own category so that noisy areas (the
// store, HTTP access logs) can be silenced from config without touching the
// rest. Until Initialize is called all loggers are no-ops.
package logging

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, config, shutdown
	CategoryStore    Category = "store"    // SQLite persistence
	CategoryHTTP     Category = "http"     // Request handling
	CategoryOutreach Category = "outreach" // Representative selection and submissions
	CategoryAuth     Category = "auth"     // Login codes, sessions
	CategoryImport   Category = "import"   // Civic data import
)

// AllCategories lists every known category.
var AllCategories = []Category{
	CategoryBoot,
	CategoryStore,
	CategoryHTTP,
	CategoryOutreach,
	CategoryAuth,
	CategoryImport,
}

// Options controls how the shared zap logger is built.
type Options struct {
	Level      string          // debug, info, warn, error
	JSONFormat bool            // production JSON encoder when true, console otherwise
	Categories map[string]bool // nil or missing key means enabled
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	base       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
	mu         sync.RWMutex
)

// New builds a zap logger from options. The CLI uses it for its own logger
// and hands the result to Initialize.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.JSONFormat {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// ParseLevel maps a config level string onto a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// Initialize installs the shared zap logger and the category filter.
// Passing nil resets logging to a no-op.
func Initialize(l *zap.Logger, enabled map[string]bool) {
	mu.Lock()
	defer mu.Unlock()

	if l == nil {
		l = zap.NewNop()
	}
	base = l
	categories = enabled
	loggers = make(map[Category]*Logger)
}

// Base returns the shared zap logger.
func Base() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes the shared logger.
func Sync() {
	_ = Base().Sync()
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	l := &Logger{category: category}
	if categoryEnabledLocked(category) {
		l.sugar = base.Named(string(category)).Sugar()
	}
	loggers[category] = l
	return l
}

// Zap returns the underlying structured logger for callers that want typed
// fields. Disabled categories get a no-op logger.
func (l *Logger) Zap() *zap.Logger {
	if l.sugar == nil {
		return zap.NewNop()
	}
	return l.sugar.Desugar()
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// =============================================================================
// CATEGORY SHORTHANDS
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func StoreWarn(format string, args ...interface{})  { Get(CategoryStore).Warn(format, args...) }
func StoreError(format string, args ...interface{}) { Get(CategoryStore).Error(format, args...) }

func HTTP(format string, args ...interface{})      { Get(CategoryHTTP).Info(format, args...) }
func HTTPDebug(format string, args ...interface{}) { Get(CategoryHTTP).Debug(format, args...) }
func HTTPWarn(format string, args ...interface{})  { Get(CategoryHTTP).Warn(format, args...) }
func HTTPError(format string, args ...interface{}) { Get(CategoryHTTP).Error(format, args...) }

func Outreach(format string, args ...interface{})      { Get(CategoryOutreach).Info(format, args...) }
func OutreachDebug(format string, args ...interface{}) { Get(CategoryOutreach).Debug(format, args...) }
func OutreachWarn(format string, args ...interface{})  { Get(CategoryOutreach).Warn(format, args...) }

func Auth(format string, args ...interface{})      { Get(CategoryAuth).Info(format, args...) }
func AuthDebug(format string, args ...interface{}) { Get(CategoryAuth).Debug(format, args...) }
func AuthWarn(format string, args ...interface{})  { Get(CategoryAuth).Warn(format, args...) }

func Import(format string, args ...interface{})      { Get(CategoryImport).Info(format, args...) }
func ImportDebug(format string, args ...interface{}) { Get(CategoryImport).Debug(format, args...) }
func ImportWarn(format string, args ...interface{})  { Get(CategoryImport).Warn(format, args...) }

// =============================================================================
// REQUEST ID TRACING
// =============================================================================

// RequestLogger provides request-scoped logging with a correlation ID
type RequestLogger struct {
	logger    *Logger
	requestID string
	fields    []interface{}
}

// WithRequestID creates a request-scoped logger.
func WithRequestID(category Category, requestID string) *RequestLogger {
	return &RequestLogger{
		logger:    Get(category),
		requestID: requestID,
	}
}

// RequestID returns the correlation ID.
func (r *RequestLogger) RequestID() string {
	return r.requestID
}

// WithField adds a field to the request logger
func (r *RequestLogger) WithField(key string, value interface{}) *RequestLogger {
	r.fields = append(r.fields, key, value)
	return r
}

type requestKey struct{}

// NewContext returns a context carrying the request logger.
func NewContext(ctx context.Context, r *RequestLogger) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// FromContext returns the request logger stored in ctx, rebound to
// category. Contexts without one get a logger with an empty request ID.
func FromContext(ctx context.Context, category Category) *RequestLogger {
	r, ok := ctx.Value(requestKey{}).(*RequestLogger)
	if !ok {
		return WithRequestID(category, "")
	}
	out := WithRequestID(category, r.requestID)
	out.fields = append(out.fields, r.fields...)
	return out
}

func (r *RequestLogger) sugar() *zap.SugaredLogger {
	if r.logger.sugar == nil {
		return nil
	}
	return r.logger.sugar.With(append([]interface{}{"req", r.requestID}, r.fields...)...)
}

func (r *RequestLogger) Debug(format string, args ...interface{}) {
	if s := r.sugar(); s != nil {
		s.Debugf(format, args...)
	}
}

func (r *RequestLogger) Info(format string, args ...interface{}) {
	if s := r.sugar(); s != nil {
		s.Infof(format, args...)
	}
}

func (r *RequestLogger) Warn(format string, args ...interface{}) {
	if s := r.sugar(); s != nil {
		s.Warnf(format, args...)
	}
}

func (r *RequestLogger) Error(format string, args ...interface{}) {
	if s := r.sugar(); s != nil {
		s.Errorf(format, args...)
	}
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
