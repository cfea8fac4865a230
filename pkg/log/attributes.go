package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator by its display name, e.g. "Random Forest".
	ModelNameKey = "model.name"

	// EstimatorIDKey is a unique identifier for one estimator instance (UUID).
	EstimatorIDKey = "estimator.id"

	// OperationKey is the ML operation: "fit", "predict", "transform", "score".
	OperationKey = "ml.operation"

	// ComponentKey identifies the package doing the work.
	ComponentKey = "ml.component"

	// PhaseKey is the pipeline phase, see the Phase* constants.
	PhaseKey = "ml.phase"

	// TaskTypeKey is the detected task: classification, regression or clustering.
	TaskTypeKey = "ml.task_type"

	// ComparisonIDKey ties together all records of one comparison run.
	ComparisonIDKey = "comparison.id"
)

// Data shape and characteristics.
const (
	SamplesKey       = "data.samples"
	FeaturesKey      = "data.features"
	ColumnsKey       = "data.columns"
	TargetKey        = "data.target"
	DataSizeKey      = "data.size_bytes"
	MissingValuesKey = "data.missing_values"
	EncodedKey       = "data.categorical_encoded"
	ClassesKey       = "data.classes"
)

// Performance and metrics.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// DurationSecondsKey records the execution time in seconds.
	DurationSecondsKey = "perf.duration_seconds"

	AccuracyKey  = "metrics.accuracy"
	LossKey      = "metrics.loss"
	R2ScoreKey   = "metrics.r2_score"
	IterationKey = "training.iteration"
	WorkersKey   = "training.workers"

	RandomSeedKey = "config.random_seed"
)

// Error context.
const (
	ErrorCodeKey  = "error.code"
	ErrorTypeKey  = "error.type"
	SuggestionKey = "error.suggestion"
)

// HTTP request context.
const (
	RequestIDKey = "http.request_id"
	FileNameKey  = "http.file_name"
	StatusKey    = "http.status"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"

	PhaseParsing       = "parsing"
	PhaseDetection     = "detection"
	PhasePreprocessing = "preprocessing"
	PhaseSplitting     = "splitting"
	PhaseTraining      = "training"
	PhaseEvaluation    = "evaluation"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
	ErrorTrainingFailed    = "TRAINING_FAILED"
)
