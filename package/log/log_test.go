package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPreforkHookInterface(t *testing.T) {
	var _ zerolog.Hook = prefork{}
}

func TestPreforkHookDoesNotPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("prefork.Run should not panic: %v", r)
		}
	}()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	prefork{}.Run(logger.Info(), zerolog.InfoLevel, "test message")
}

func TestGetLogLevelFromEnv(t *testing.T) {
	cases := []struct {
		value string
		want  zerolog.Level
	}{
		{"TRACE", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"Info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"FATAL", zerolog.FatalLevel},
		{"PANIC", zerolog.PanicLevel},
		{"OFF", zerolog.Disabled},
	}

	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("TEST_LOG_LEVEL", tc.value)
			if got := GetLogLevelFromEnv("TEST_LOG_LEVEL", zerolog.InfoLevel); got != tc.want {
				t.Errorf("expected %v for %q, got %v", tc.want, tc.value, got)
			}
		})
	}
}

func TestGetLogLevelFromEnvDefault(t *testing.T) {
	if got := GetLogLevelFromEnv("TEST_LOG_LEVEL_UNSET", zerolog.WarnLevel); got != zerolog.WarnLevel {
		t.Errorf("expected default WarnLevel, got %v", got)
	}
}

func TestGetLogLevelFromEnvUnknownPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("unknown log level should panic")
		}
	}()

	t.Setenv("TEST_LOG_LEVEL", "VERBOSE")
	GetLogLevelFromEnv("TEST_LOG_LEVEL", zerolog.InfoLevel)
}

func TestNewConfiguresGlobals(t *testing.T) {
	originalLevel := zerolog.GlobalLevel()
	originalFormat := zerolog.TimeFieldFormat
	defer func() {
		zerolog.SetGlobalLevel(originalLevel)
		zerolog.TimeFieldFormat = originalFormat
	}()

	logger := New("test-service")

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected global level InfoLevel, got %v", zerolog.GlobalLevel())
	}
	if zerolog.TimeFieldFormat != zerolog.TimeFormatUnixMs {
		t.Errorf("expected unix ms time format, got %s", zerolog.TimeFieldFormat)
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("logging should not panic: %v", r)
		}
	}()
	logger.Info().Str("component", "test").Msg("startup")
}

func TestServiceFieldAttached(t *testing.T) {
	var buf bytes.Buffer

	logger := zerolog.New(&buf).With().Str("service", "account-directory").Logger()
	logger.Info().Msg("field test")

	if !strings.Contains(buf.String(), "account-directory") {
		t.Error("service field should be present in output")
	}
}
