package logging

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"ERROR":   logrus.ErrorLevel,
		"fatal":   logrus.FatalLevel,
		"Info":    logrus.InfoLevel,
		"trace":   logrus.TraceLevel,
		"warn":    logrus.WarnLevel,
		"unknown": logrus.TraceLevel,
		"":        logrus.TraceLevel,
	}
	for in, expected := range cases {
		assert.Equal(t, expected, GetLevel(in), in)
	}
}

func TestSetup_LogFile(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)

	logFile := filepath.Join(t.TempDir(), "nested", "setpad")
	require.NoError(t, Setup(LoggerSetupParams{
		LogFileName: logFile,
		LogLevel:    "info",
		Environment: "test",
	}))

	logrus.Info("sort orders backfilled")
	logrus.Debug("not written at info level")

	content, err := os.ReadFile(logFile + ".log")
	require.NoError(t, err)
	assert.Contains(t, string(content), "sort orders backfilled")
	assert.NotContains(t, string(content), "not written at info level")
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

type transportMock struct {
	events []*sentry.Event
}

func (t *transportMock) Configure(_ sentry.ClientOptions) {}

func (t *transportMock) SendEvent(event *sentry.Event) {
	t.events = append(t.events, event)
}

func (t *transportMock) Flush(_ time.Duration) bool {
	return true
}

func (t *transportMock) FlushWithContext(_ context.Context) bool {
	return true
}

func (t *transportMock) Close() {}

func TestSentryHook_Fire(t *testing.T) {
	transport := &transportMock{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:       "https://public@example.com/1",
		Transport: transport,
	})
	require.NoError(t, err)

	hook := &SentryHook{
		levels: []logrus.Level{logrus.ErrorLevel},
		hub:    sentry.NewHub(client, sentry.NewScope()),
	}
	assert.Equal(t, []logrus.Level{logrus.ErrorLevel}, hook.Levels())

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.AddHook(hook)

	logger.WithField("workout_id", "w-1").Error("add workout failed")
	logger.WithError(errors.New("db down")).Error("migrate sort orders")
	logger.Warn("not forwarded")

	require.Len(t, transport.events, 2)
	assert.Equal(t, "add workout failed", transport.events[0].Message)
	assert.Equal(t, sentry.LevelError, transport.events[0].Level)
	assert.Equal(t, "w-1", transport.events[0].Extra["workout_id"])
	require.NotEmpty(t, transport.events[1].Exception)
	assert.Equal(t, "db down", transport.events[1].Exception[0].Value)
}

func TestSentryHook_Fire_NoClient(t *testing.T) {
	hook := &SentryHook{hub: sentry.NewHub(nil, sentry.NewScope())}
	assert.Error(t, hook.Fire(logrus.NewEntry(logrus.New())))
}
