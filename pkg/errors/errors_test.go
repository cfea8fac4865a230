package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "mlcompare: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "mlcompare: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースにテストファイル名が含まれること
			assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 4, 3, 1)
	assert.Equal(t, "mlcompare: Predict: dimension mismatch on axis 1 (features). Expected 4, got 3", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 4, dimErr.Expected)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LinearRegression", "Predict")
	assert.Equal(t, "mlcompare: LinearRegression: this model is not fitted yet. Call Fit() before using Predict()", err.Error())

	var notFittedErr *NotFittedError
	assert.True(t, As(err, &notFittedErr))
}

func TestDataFormatError(t *testing.T) {
	tests := []struct {
		name    string
		line    int
		reason  string
		cause   error
		wantMsg string
	}{
		{
			name:    "line bound",
			line:    3,
			reason:  "expected 4 fields, got 2",
			wantMsg: "mlcompare: invalid data format: line 3: expected 4 fields, got 2",
		},
		{
			name:    "no line",
			reason:  "empty input",
			wantMsg: "mlcompare: invalid data format: empty input",
		},
		{
			name:    "with cause",
			reason:  "unreadable",
			cause:   fmt.Errorf("bare quote"),
			wantMsg: "mlcompare: invalid data format: unreadable: bare quote",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDataFormatError(tt.line, tt.reason, tt.cause)
			assert.Equal(t, tt.wantMsg, err.Error())

			var dfErr *DataFormatError
			assert.True(t, As(err, &dfErr))
		})
	}
}

func TestProcessingErrorUnwrapsToCause(t *testing.T) {
	cause := NewDataFormatError(2, "expected 3 fields, got 1", nil)
	err := NewProcessingError("Error processing dataset", cause)

	assert.True(t, strings.HasPrefix(err.Error(), "Error processing dataset: "))

	var dfErr *DataFormatError
	require.True(t, As(err, &dfErr))
	assert.Equal(t, 2, dfErr.Line)

	var procErr *ProcessingError
	require.True(t, As(err, &procErr))
	assert.Equal(t, "Error processing dataset", procErr.Stage)
}

func TestTrainingError(t *testing.T) {
	err := NewTrainingError("SVM", "classification", "fit", ErrSingularMatrix)
	assert.Contains(t, err.Error(), `training "SVM" (classification) failed during fit`)
	assert.True(t, Is(err, ErrSingularMatrix))
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("GradientDescent", 1000, "loss did not decrease")
	assert.Equal(t, "GradientDescent failed to converge after 1000 iterations: loss did not decrease", warn.Error())
}

func TestWarnUsesStructuredFunc(t *testing.T) {
	var got []error
	SetStructuredWarnFunc(func(w error) { got = append(got, w) })
	defer SetStructuredWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("precision", "no predicted samples", 0))
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Error(), "'precision' is ill-defined")
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Predict", 10, 0)
	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "in Predict: expected 10, got 0")
}
