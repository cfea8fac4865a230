package comparator

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
	"github.com/YuminosukeSato/mlcompare/pkg/log"
	"github.com/YuminosukeSato/mlcompare/trainer"
)

func init() {
	errors.SetWarningHandler(nil)
}

func newTestComparator() *Comparator {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	return New(WithLogger(logger), WithConfig(Config{TestSize: 0.2, RandomState: 42, NJobs: 2}))
}

// classificationCSV は数値2列・カテゴリ1列と3クラスのラベルを持つ100行
func classificationCSV() []byte {
	rng := rand.New(rand.NewSource(7))
	var b strings.Builder
	b.WriteString("sepal,petal,color,label\n")
	names := []string{"setosa", "versicolor", "virginica"}
	colors := []string{"red", "green"}
	for i := 0; i < 100; i++ {
		c := i % 3
		petal := fmt.Sprintf("%.3f", float64(c)*2+rng.NormFloat64()*0.3)
		if i == 5 {
			petal = ""
		}
		fmt.Fprintf(&b, "%.3f,%s,%s,%s\n", float64(c)*3+rng.NormFloat64()*0.3, petal, colors[i%2], names[c])
	}
	return []byte(b.String())
}

func regressionCSV() []byte {
	rng := rand.New(rand.NewSource(8))
	var b strings.Builder
	b.WriteString("rooms,area,price\n")
	for i := 0; i < 100; i++ {
		rooms := rng.Float64() * 5
		area := rng.Float64() * 100
		fmt.Fprintf(&b, "%.4f,%.4f,%.4f\n", rooms, area, 10*rooms+2*area+rng.NormFloat64())
	}
	return []byte(b.String())
}

func clusteringCSV() []byte {
	rng := rand.New(rand.NewSource(9))
	var b strings.Builder
	b.WriteString("f1,f2,customer_id\n")
	for i := 0; i < 30; i++ {
		c := float64(i % 3)
		fmt.Fprintf(&b, "%.4f,%.4f,%d\n", c*10+rng.NormFloat64(), rng.NormFloat64(), i)
	}
	return []byte(b.String())
}

func TestCompareModelsClassification(t *testing.T) {
	res, err := newTestComparator().CompareModels(classificationCSV())
	require.NoError(t, err)

	assert.Equal(t, "classification", res.TaskType)
	assert.Len(t, res.Models, 8)
	for _, m := range res.Models {
		for _, key := range []string{trainer.AccuracyKey, trainer.PrecisionKey, trainer.RecallKey, trainer.F1Key} {
			assert.Contains(t, m.Metrics, key, m.Name)
		}
		assert.Greater(t, m.TrainingTime, 0.0)
	}

	assert.Equal(t, 100, res.DatasetInfo.Rows)
	assert.Equal(t, 4, res.DatasetInfo.Columns)
	assert.Equal(t, []string{"sepal", "petal", "color"}, res.DatasetInfo.Features)
	require.NotNil(t, res.DatasetInfo.Target)
	assert.Equal(t, "label", *res.DatasetInfo.Target)

	assert.Equal(t, 1, res.PreprocessingInfo.MissingValuesHandled)
	assert.Equal(t, 1, res.PreprocessingInfo.CategoricalFeaturesEncoded)
	assert.True(t, res.PreprocessingInfo.FeaturesScaled)
}

func TestCompareModelsRegression(t *testing.T) {
	res, err := newTestComparator().CompareModels(regressionCSV())
	require.NoError(t, err)
	assert.Equal(t, "regression", res.TaskType)
	require.Len(t, res.Models, 7)
	for _, m := range res.Models {
		assert.Len(t, m.Metrics, 3)
		assert.Contains(t, m.Metrics, trainer.R2Key)
	}
	assert.Greater(t, res.Models[0].Metrics[trainer.R2Key], 0.99)
}

func TestCompareModelsClustering(t *testing.T) {
	res, err := newTestComparator().CompareModels(clusteringCSV())
	require.NoError(t, err)
	assert.Equal(t, "clustering", res.TaskType)
	require.Len(t, res.Models, 1)
	assert.Equal(t, trainer.KMeansName, res.Models[0].Name)
	assert.Contains(t, res.Models[0].Metrics, trainer.SilhouetteKey)
	assert.Contains(t, res.Models[0].Metrics, trainer.InertiaKey)
	assert.Nil(t, res.DatasetInfo.Target)
	assert.Equal(t, []string{"f1", "f2", "customer_id"}, res.DatasetInfo.Features)
	assert.False(t, res.PreprocessingInfo.FeaturesScaled)
}

func TestComparisonResultJSON(t *testing.T) {
	res, err := newTestComparator().CompareModels(clusteringCSV())
	require.NoError(t, err)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.ElementsMatch(t, []string{"task_type", "models", "dataset_info", "preprocessing_info"}, keys(decoded))
	info := decoded["dataset_info"].(map[string]interface{})
	assert.Contains(t, info, "target")
	assert.Nil(t, info["target"])
	model := decoded["models"].([]interface{})[0].(map[string]interface{})
	assert.ElementsMatch(t, []string{"name", "metrics", "training_time", "type"}, keys(model))
	prep := decoded["preprocessing_info"].(map[string]interface{})
	assert.ElementsMatch(t, []string{"missing_values_handled", "categorical_features_encoded", "features_scaled"}, keys(prep))
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestCompareModelsProcessingErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"ragged rows", "a,b,target\n1,2,0\n3,4\n"},
		{"empty input", ""},
		{"header only", "a,b,target\n"},
		{"too few rows to split", "a,target\n1,0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestComparator().CompareModels([]byte(tt.input))
			require.Error(t, err)
			var pe *errors.ProcessingError
			assert.True(t, errors.As(err, &pe))
		})
	}

	_, err := newTestComparator().CompareModels([]byte("a,b,target\n1,2,0\n3,4\n"))
	var df *errors.DataFormatError
	assert.True(t, errors.As(err, &df))
}
