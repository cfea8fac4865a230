package model

import "gonum.org/v1/gonum/mat"

// Transformer is a feature transformation learned from a matrix, such as
// standard scaling. Each Fit replaces the previously learned parameters.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// InverseTransformer maps transformed values back to the input space.
type InverseTransformer interface {
	Transformer
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}
