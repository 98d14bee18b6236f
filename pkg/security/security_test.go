package security

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*SecurityLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return NewSecurityLogger(zap.New(core), "test", "test"), logs
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@x.com", MaskEmail("ana@x.com"))
	assert.Equal(t, "***", MaskEmail("ab"))
	assert.Equal(t, "***@example.com", MaskEmail("j@example.com"))
	assert.Len(t, HashValue("anything"), 16)
}

func TestSecurityLoggerMasksEmail(t *testing.T) {
	sl, logs := newObservedLogger()
	sl.LogLoginFailed(context.Background(), "owner@example.com", "10.0.0.1", "curl", "req-1", "invalid_credentials")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, string(EventLoginFailed), entry.Message)
	assert.Equal(t, "o***@example.com", entry.ContextMap()["subject_value"])
	assert.Equal(t, "req-1", entry.ContextMap()["request_id"])
}

func TestLoginTrackerBlocksAfterMaxAttempts(t *testing.T) {
	sl, logs := newObservedLogger()
	cfg := DefaultLoginTrackerConfig()
	cfg.MaxAttempts = 3
	store := NewMemoryCounterStore()
	lt := NewLoginTracker(cfg, store, sl)
	ctx := context.Background()

	for i := 1; i < 3; i++ {
		blocked, n, err := lt.RecordFailedAttempt(ctx, "Owner@Example.com", "10.0.0.1", "", "", "invalid_credentials")
		require.NoError(t, err)
		assert.False(t, blocked)
		assert.Equal(t, i, n)
	}
	blocked, err := lt.IsBlocked(ctx, "owner@example.com", "")
	require.NoError(t, err)
	assert.False(t, blocked)

	blocked, _, err = lt.RecordFailedAttempt(ctx, "owner@example.com", "10.0.0.1", "", "", "invalid_credentials")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, _ = lt.IsBlocked(ctx, "OWNER@example.com", "")
	assert.True(t, blocked)
	blocked, _ = lt.IsBlocked(ctx, "someone@else.com", "10.0.0.1")
	assert.True(t, blocked)
	assert.Equal(t, 1, logs.FilterMessage(string(EventBlockCreated)).Len())

	now := time.Now()
	store.now = func() time.Time { return now.Add(cfg.BlockDuration + time.Second) }
	blocked, _ = lt.IsBlocked(ctx, "owner@example.com", "10.0.0.1")
	assert.False(t, blocked)
}

func TestLoginTrackerClearAttempts(t *testing.T) {
	sl, _ := newObservedLogger()
	cfg := DefaultLoginTrackerConfig()
	lt := NewLoginTracker(cfg, NewMemoryCounterStore(), sl)
	ctx := context.Background()

	_, n, _ := lt.RecordFailedAttempt(ctx, "owner@example.com", "", "", "", "x")
	assert.Equal(t, 1, n)
	require.NoError(t, lt.ClearAttempts(ctx, "owner@example.com", ""))
	_, n, _ = lt.RecordFailedAttempt(ctx, "owner@example.com", "", "", "", "x")
	assert.Equal(t, 1, n)
}

func TestPasswordAndTOTP(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("", "correct horse"))
	_, err = HashPassword("")
	assert.Error(t, err)

	secret, url, err := GenerateTOTPSecret("Portfolio", "owner@example.com")
	require.NoError(t, err)
	assert.Contains(t, url, "otpauth://totp/")

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	assert.True(t, ValidateTOTP(secret, code))
	assert.False(t, ValidateTOTP(secret, ""))
	assert.True(t, ValidateTOTP("", ""))
}
