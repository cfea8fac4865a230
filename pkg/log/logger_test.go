package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mlerrors "github.com/YuminosukeSato/mlcompare/pkg/errors"
)

func TestTestLoggerLevels(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelInfo)

	testLogger.Debug("hidden")
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message", ErrorCodeKey, ErrorConvergence)
	testLogger.Error("error message", fmt.Errorf("boom"), SamplesKey, 100)

	assert.NotContains(t, buffer.String(), "hidden")
	assert.True(t, testLogger.ContainsMessage("info message"))
	assert.True(t, testLogger.ContainsField(OperationKey, OperationFit))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "boom"))
	assert.True(t, testLogger.ContainsField(SamplesKey, 100.0))

	ctx := context.Background()
	assert.False(t, testLogger.Enabled(ctx, LevelDebug))
	assert.True(t, testLogger.Enabled(ctx, LevelError))
}

func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	modelLogger := testLogger.With(
		ModelNameKey, "Random Forest",
		TaskTypeKey, "classification",
	)
	modelLogger.Info("Training completed", DurationMsKey, 12)

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Random Forest", entries[0][ModelNameKey])
	assert.Equal(t, "classification", entries[0][TaskTypeKey])
	assert.Equal(t, 12.0, entries[0][DurationMsKey])
	assert.Equal(t, "INFO", entries[0]["level"])
}

func TestTestLoggerProvider(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelDebug)
	provider.GetLoggerWithName("trainer").Info("named logger message")
	provider.SetLevel(LevelError)
	provider.GetLogger().Info("dropped")

	assert.Contains(t, buffer.String(), "named logger message")
	assert.Contains(t, buffer.String(), `"ml.component":"trainer"`)
	assert.NotContains(t, buffer.String(), "dropped")
}

func TestTestLoggerConcurrent(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l := testLogger.With("worker", id)
			for j := 0; j < 5; j++ {
				l.Info("tick", "n", j)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupLogger(Options{Level: "debug", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)
	defer SetLogger(nil)

	cause := mlerrors.NewDataFormatError(3, "expected 4 fields, got 2", nil)
	logger.Error("Error processing dataset", errors.Wrap(cause, "parse"), PhaseKey, PhaseParsing)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "ERROR", entry["severity"])
	assert.Equal(t, "Error processing dataset", entry["message"])
	assert.Equal(t, PhaseParsing, entry[PhaseKey])
	assert.Contains(t, entry[StacktraceAttrKey], "logger_test.go")
	assert.Same(t, logger, GetLogger())
}

func TestSetupLoggerZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupLogger(Options{Level: "warn", Format: FormatZerolog, Output: &buf})
	require.NoError(t, err)
	defer SetLogger(nil)
	defer mlerrors.SetStructuredWarnFunc(nil)

	logger.Info("dropped")
	trainErr := mlerrors.NewTrainingError("SVM", "classification", "fit", mlerrors.ErrSingularMatrix)
	logger.With(ModelNameKey, "SVM").Error("Model training failed", trainErr, PhaseKey, PhaseTraining)
	mlerrors.Warn(mlerrors.NewConvergenceWarning("LogisticRegression", 1000, ""))

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"model.name":"SVM"`)
	assert.Contains(t, out, `"stage":"fit"`)
	assert.Contains(t, out, "failed to converge")
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(out), "\n")+1)
}

func TestSetupLoggerRejectsBadInput(t *testing.T) {
	_, err := SetupLogger(Options{Level: "verbose"})
	assert.Error(t, err)

	_, err = SetupLogger(Options{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func BenchmarkTestLogger(b *testing.B) {
	testLogger, _ := NewTestLogger(LevelInfo)
	l := testLogger.With(ModelNameKey, "K-Means")
	for i := 0; i < b.N; i++ {
		l.Info("benchmark message", OperationKey, OperationPredict, SamplesKey, 1000)
	}
}
