package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/opencoreai/turnengine/internal/testutil"
)

func TestWithContextRoundTrips(testingHandle *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.InfoLevel)
	ctx := WithContext(context.Background(), logger)

	FromContext(ctx).Info().Msg("hello")
	testutil.RequireStringContains(testingHandle, buf.String(), "hello", "expected attached logger to be used")
}

func TestFromContextFallsBackWithoutPanicking(testingHandle *testing.T) {
	logger := FromContext(context.Background())
	testutil.RequireTrue(testingHandle, logger.GetLevel() != zerolog.Disabled, "expected usable fallback logger")
}

func TestNewRespectsLevel(testingHandle *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.WarnLevel)
	logger.Info().Msg("should be suppressed")
	logger.Warn().Msg("should appear")

	output := buf.String()
	testutil.RequireTrue(testingHandle, !strings.Contains(output, "should be suppressed"), "expected info-level message suppressed")
	testutil.RequireStringContains(testingHandle, output, "should appear", "expected warn-level message present")
}
