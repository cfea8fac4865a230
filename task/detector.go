// Package task infers the learning task and target column of a table.
package task

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"

	"github.com/YuminosukeSato/mlcompare/dataset"
)

// Type is the learning task a dataset is compared under.
type Type string

const (
	Classification Type = "classification"
	Regression     Type = "regression"
	Clustering     Type = "clustering"
)

// Valid reports whether t is one of the known task types.
func (t Type) Valid() bool {
	return t == Classification || t == Regression || t == Clustering
}

func (t Type) String() string { return string(t) }

// targetCandidates is checked in order; the first hit wins.
var targetCandidates = []string{
	"target", "label", "class", "y", "output",
	"result", "outcome", "response", "dependent", "prediction",
}

var candidateSet = mapset.NewSet(targetCandidates...)

// identifierTokens disqualify the last column as a fallback target.
var identifierTokens = []string{"id", "index", "key"}

const (
	// MaxClassificationUnique is the distinct value count at or below which a
	// numeric target is treated as class labels.
	MaxClassificationUnique = 10
	// MaxClassificationRatio is the distinct/rows ratio below which a numeric
	// target is treated as class labels.
	MaxClassificationRatio = 0.05
)

// Detect returns the task type and the target column name. An empty target
// means no target was found and the task is clustering.
func Detect(table *dataset.Table) (Type, string) {
	target := DetectTarget(table.ColumnNames())
	if target == "" {
		return Clustering, ""
	}
	col, _ := table.Column(target)
	return classify(col, table.NumRows()), target
}

// DetectTarget picks the target column by name. Matching is case-insensitive:
// exact candidate names first, then column names containing a candidate,
// then the last column unless it looks like an identifier.
func DetectTarget(columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	lower := lo.Map(columns, func(c string, _ int) string { return strings.ToLower(c) })

	if _, i, ok := lo.FindIndexOf(lower, func(n string) bool { return candidateSet.Contains(n) }); ok {
		return columns[i]
	}

	for i, name := range lower {
		if lo.ContainsBy(targetCandidates, func(cand string) bool { return strings.Contains(name, cand) }) {
			return columns[i]
		}
	}

	last := lower[len(lower)-1]
	if lo.ContainsBy(identifierTokens, func(tok string) bool { return strings.Contains(last, tok) }) {
		return ""
	}
	return columns[len(columns)-1]
}

func classify(col *dataset.Column, rows int) Type {
	if col.Kind != dataset.Numeric {
		return Classification
	}
	unique := col.NUnique()
	if unique <= MaxClassificationUnique {
		return Classification
	}
	if rows > 0 && float64(unique)/float64(rows) < MaxClassificationRatio {
		return Classification
	}
	return Regression
}
