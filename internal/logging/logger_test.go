package logging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, enabled map[string]bool) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	Initialize(zap.New(core), enabled)
	t.Cleanup(func() { Initialize(nil, nil) })
	return logs
}

func TestGet_NoopBeforeInitialize(t *testing.T) {
	Initialize(nil, nil)
	// Must not panic.
	Get(CategoryStore).Info("nothing %d", 1)
	Store("still nothing")
}

func TestCategoryLoggers_WriteNamedEntries(t *testing.T) {
	logs := observe(t, nil)

	for _, cat := range AllCategories {
		Get(cat).Info("hello from %s", cat)
	}

	entries := logs.All()
	require.Len(t, entries, len(AllCategories))
	for i, cat := range AllCategories {
		assert.Equal(t, string(cat), entries[i].LoggerName)
		assert.Equal(t, "hello from "+string(cat), entries[i].Message)
	}
}

func TestDisabledCategory_IsSilent(t *testing.T) {
	logs := observe(t, map[string]bool{"store": false, "http": true})

	StoreError("should not appear")
	HTTP("should appear")
	Outreach("enabled by default")

	assert.Equal(t, 0, logs.FilterLoggerName("store").Len())
	assert.Equal(t, 1, logs.FilterLoggerName("http").Len())
	assert.Equal(t, 1, logs.FilterLoggerName("outreach").Len())
	assert.False(t, IsCategoryEnabled(CategoryStore))
	assert.True(t, IsCategoryEnabled(CategoryAuth))
}

func TestRequestLogger_CarriesRequestID(t *testing.T) {
	logs := observe(t, nil)

	WithRequestID(CategoryHTTP, "req-123").
		WithField("path", "/call-us-rep/").
		Info("handled %s", "GET")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-123", fields["req"])
	assert.Equal(t, "/call-us-rep/", fields["path"])
	assert.Equal(t, "handled GET", entries[0].Message)
}

func TestFromContext(t *testing.T) {
	logs := observe(t, nil)

	ctx := NewContext(context.Background(), WithRequestID(CategoryHTTP, "req-9").WithField("method", "POST"))
	FromContext(ctx, CategoryOutreach).Warn("redisplay")
	FromContext(context.Background(), CategoryOutreach).Info("no request")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "outreach", entries[0].LoggerName)
	assert.Equal(t, "req-9", entries[0].ContextMap()["req"])
	assert.Equal(t, "POST", entries[0].ContextMap()["method"])
	assert.Equal(t, "", entries[1].ContextMap()["req"])
}

func TestTimer_StopWithThreshold(t *testing.T) {
	logs := observe(t, nil)

	timer := StartTimer(CategoryStore, "slow op")
	time.Sleep(2 * time.Millisecond)
	elapsed := timer.StopWithThreshold(time.Nanosecond)

	assert.Greater(t, elapsed, time.Duration(0))
	require.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"WARNING", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"chatty", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNew_BuildsLogger(t *testing.T) {
	l, err := New(Options{Level: "debug", JSONFormat: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestLogger_Zap(t *testing.T) {
	logs := observe(t, map[string]bool{"store": false})

	Get(CategoryHTTP).Zap().Info("request", zap.Int("status", 418))
	Get(CategoryStore).Zap().Info("dropped")
	HTTPWarn("warned %d", 1)
	HTTPDebug("debugged")

	entries := logs.FilterLoggerName("http").All()
	require.Len(t, entries, 3)
	assert.Equal(t, int64(418), entries[0].ContextMap()["status"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
	assert.Equal(t, 0, logs.FilterLoggerName("store").Len())
}
