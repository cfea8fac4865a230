package trainer

import (
	"github.com/YuminosukeSato/mlcompare/core/model"
	"github.com/YuminosukeSato/mlcompare/sklearn/cluster"
	"github.com/YuminosukeSato/mlcompare/sklearn/ensemble"
	"github.com/YuminosukeSato/mlcompare/sklearn/linear_model"
	"github.com/YuminosukeSato/mlcompare/sklearn/naive_bayes"
	"github.com/YuminosukeSato/mlcompare/sklearn/neighbors"
	"github.com/YuminosukeSato/mlcompare/sklearn/neural_network"
	"github.com/YuminosukeSato/mlcompare/sklearn/svm"
	"github.com/YuminosukeSato/mlcompare/sklearn/tree"
	"github.com/YuminosukeSato/mlcompare/task"
)

// Entry は比較対象の1モデル。New は呼び出しごとに新しい推定器を返す
type Entry struct {
	Name string
	New  func(cfg Config) model.Estimator
}

// Display names shown to clients.
const (
	LogisticRegressionName = "Logistic Regression"
	LinearRegressionName   = "Linear Regression"
	DecisionTreeName       = "Decision Tree"
	RandomForestName       = "Random Forest"
	SVMName                = "SVM"
	KNeighborsName         = "K-Nearest Neighbors"
	NaiveBayesName         = "Naive Bayes"
	GradientBoostingName   = "Gradient Boosting"
	NeuralNetworkName      = "Neural Network"
	KMeansName             = "K-Means"
)

var registry = map[task.Type][]Entry{
	task.Classification: {
		{LogisticRegressionName, func(cfg Config) model.Estimator {
			return linear_model.NewLogisticRegression(linear_model.WithLRMaxIter(1000))
		}},
		{DecisionTreeName, func(cfg Config) model.Estimator {
			return tree.NewDecisionTreeClassifier(tree.WithRandomState(cfg.RandomState))
		}},
		{RandomForestName, func(cfg Config) model.Estimator {
			return ensemble.NewRandomForestClassifier(
				ensemble.WithForestNEstimators(100),
				ensemble.WithForestRandomState(cfg.RandomState),
				ensemble.WithForestNJobs(cfg.NJobs),
			)
		}},
		{SVMName, func(cfg Config) model.Estimator {
			return svm.NewSVC()
		}},
		{KNeighborsName, func(cfg Config) model.Estimator {
			return neighbors.NewKNeighborsClassifier(neighbors.WithNNeighbors(5), neighbors.WithNJobs(cfg.NJobs))
		}},
		{NaiveBayesName, func(cfg Config) model.Estimator {
			return naive_bayes.NewGaussianNB()
		}},
		{GradientBoostingName, func(cfg Config) model.Estimator {
			return ensemble.NewGradientBoostingClassifier(ensemble.WithGBRandomState(cfg.RandomState))
		}},
		{NeuralNetworkName, func(cfg Config) model.Estimator {
			return neural_network.NewMLPClassifier(
				neural_network.WithMaxIter(500),
				neural_network.WithRandomState(cfg.RandomState),
			)
		}},
	},
	task.Regression: {
		{LinearRegressionName, func(cfg Config) model.Estimator {
			return linear_model.NewLinearRegression()
		}},
		{DecisionTreeName, func(cfg Config) model.Estimator {
			return tree.NewDecisionTreeRegressor(tree.WithRandomState(cfg.RandomState))
		}},
		{RandomForestName, func(cfg Config) model.Estimator {
			return ensemble.NewRandomForestRegressor(
				ensemble.WithForestNEstimators(100),
				ensemble.WithForestRandomState(cfg.RandomState),
				ensemble.WithForestNJobs(cfg.NJobs),
			)
		}},
		{SVMName, func(cfg Config) model.Estimator {
			return svm.NewSVR()
		}},
		{KNeighborsName, func(cfg Config) model.Estimator {
			return neighbors.NewKNeighborsRegressor(neighbors.WithNNeighbors(5), neighbors.WithNJobs(cfg.NJobs))
		}},
		{GradientBoostingName, func(cfg Config) model.Estimator {
			return ensemble.NewGradientBoostingRegressor(ensemble.WithGBRandomState(cfg.RandomState))
		}},
		{NeuralNetworkName, func(cfg Config) model.Estimator {
			return neural_network.NewMLPRegressor(
				neural_network.WithMaxIter(500),
				neural_network.WithRandomState(cfg.RandomState),
			)
		}},
	},
	task.Clustering: {
		{KMeansName, func(cfg Config) model.Estimator {
			return cluster.NewKMeans(
				cluster.WithKMeansNClusters(3),
				cluster.WithKMeansRandomState(cfg.RandomState),
				cluster.WithKMeansNJobs(cfg.NJobs),
			)
		}},
	},
}

// Roster returns the models compared for a task, in declaration order.
func Roster(taskType task.Type) []Entry {
	return append([]Entry(nil), registry[taskType]...)
}
