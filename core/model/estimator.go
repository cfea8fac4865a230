package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。教師なしモデルは y を無視する
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は比較対象となる全モデルが満たすインターフェース
type Estimator interface {
	Fitter
	Predictor
}

// ProbabilisticClassifier は各クラスの確率を推定できる分類器
type ProbabilisticClassifier interface {
	Estimator

	// PredictProba は n×k の確率行列を返す。列の順序は Classes() に従う
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes は学習時に観測したクラスラベルを昇順で返す
	Classes() []float64
}

// ClusterMixin はクラスタリングモデルのインターフェース
type ClusterMixin interface {
	Estimator

	// ClusterCenters は k×d のクラスタ中心を返す
	ClusterCenters() mat.Matrix

	// NClusters はクラスタ数を返す
	NClusters() int
}

// ParameterGetter はハイパーパラメータを公開するモデルのインターフェース
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
