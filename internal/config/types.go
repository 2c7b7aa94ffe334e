package config

// PluginID is the Stash plugin identifier settings are stored under
const PluginID = "face_attributes"

// PluginConfig holds plugin settings from Stash
type PluginConfig struct {
	// Face detection
	Detector         string // compreface, dlib, pigo or auto
	ComprefaceURL    string
	DetectionAPIKey  string
	MinDetectionProb float64
	CascadePath      string // pigo facefinder cascade
	PuplocPath       string // pigo pupil cascade, optional
	DlibModelsDir    string
	MinFaceSize      int

	// Attribute models
	Engine          string // tflite, onnx or auto
	ModelsDir       string
	AgeGenderModel  string
	ExpressionModel string
	OnnxLibraryPath string
	NumThreads      int

	// Orchestration
	InferenceTimeoutSeconds int
	Sequential              bool

	// Batch tasks
	CooldownSeconds int
	MaxBatchSize    int
	OutputDir       string
}

// Setting keys shared by the Stash plugin settings and FACEATTR_* env overrides
const (
	keyDetector                = "detector"
	keyComprefaceURL           = "comprefaceUrl"
	keyDetectionAPIKey         = "detectionApiKey"
	keyMinDetectionProb        = "minDetectionProb"
	keyCascadePath             = "cascadePath"
	keyPuplocPath              = "puplocPath"
	keyDlibModelsDir           = "dlibModelsDir"
	keyMinFaceSize             = "minFaceSize"
	keyEngine                  = "engine"
	keyModelsDir               = "modelsDir"
	keyAgeGenderModel          = "ageGenderModel"
	keyExpressionModel         = "expressionModel"
	keyOnnxLibraryPath         = "onnxLibraryPath"
	keyNumThreads              = "numThreads"
	keyInferenceTimeoutSeconds = "inferenceTimeoutSeconds"
	keySequential              = "sequential"
	keyCooldownSeconds         = "cooldownSeconds"
	keyMaxBatchSize            = "maxBatchSize"
	keyOutputDir               = "outputDir"
)
