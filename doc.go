// Package mlcompare compares machine learning models on a tabular dataset.
//
// Given the bytes of a CSV file, mlcompare infers the learning task
// (classification, regression or clustering) and the target column,
// preprocesses the features, holds out a test partition and trains a fixed
// roster of models, returning one set of metrics per model.
//
// # Packages
//
//   - dataset: CSV parsing into typed columns
//   - task: task type and target detection
//   - preprocessing: imputation, label encoding and standard scaling
//   - model_selection: (stratified) train/test split
//   - sklearn/...: the estimators of the roster
//   - metrics: classification, regression and clustering scores
//   - trainer: roster training and evaluation
//   - comparator: the end-to-end pipeline
//   - server, cmd/mlcompare: HTTP API and command line
//   - report: tables, exports and charts of a result
//
// # Quick Start
//
//	raw, _ := os.ReadFile("iris.csv")
//	res, err := comparator.New().CompareModels(raw)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, m := range res.Models {
//	    fmt.Println(m.Name, m.Metrics)
//	}
//
// The same pipeline is served over HTTP by "mlcompare serve" and run
// locally by "mlcompare compare data.csv".
package mlcompare
