package config

const (
	defaultOutputDir    = "~/.local/share/placeforge/sprites"
	defaultModelsDir    = "~/.local/share/placeforge/models"
	defaultRegistryPath = "~/.local/share/placeforge/registry.json"
	defaultDataDir      = "~/.local/share/placeforge"

	defaultPlacesBaseURL    = "https://places.googleapis.com/v1"
	defaultCaptureBaseURL   = "http://127.0.0.1:7601"
	defaultCaptureWidth     = 1280
	defaultCaptureHeight    = 960
	defaultCaptureReadiness = 15
	defaultCapturePollMS    = 500

	defaultInferenceBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultInferenceModel   = "google/gemini-3-flash-preview"
	defaultImageGenBaseURL  = "https://openrouter.ai/api/v1/chat/completions"
	defaultImageGenModel    = "google/gemini-3-pro-image-preview"

	defaultObjectStoreBaseURL = "https://storage.placeforge.dev"
	defaultMeshGenBaseURL     = "https://api.meshy.ai/openapi/v2"

	defaultServiceTimeout      = 60
	defaultFallbackPollSeconds = 5
	defaultMinPollSeconds      = 2
	defaultMaxPollSeconds      = 30
	defaultMaxWaitMinutes      = 10
	defaultUploadDelayMS       = 1000
	defaultItemDelayMS         = 2000

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:    defaultOutputDir,
			ModelsDir:    defaultModelsDir,
			RegistryPath: defaultRegistryPath,
			DataDir:      defaultDataDir,
		},
		Places: Places{
			BaseURL:        defaultPlacesBaseURL,
			TimeoutSeconds: defaultServiceTimeout,
		},
		Capture: Capture{
			BaseURL:          defaultCaptureBaseURL,
			Width:            defaultCaptureWidth,
			Height:           defaultCaptureHeight,
			ReadinessTimeout: defaultCaptureReadiness,
			PollIntervalMS:   defaultCapturePollMS,
		},
		Inference: Inference{
			BaseURL:        defaultInferenceBaseURL,
			Model:          defaultInferenceModel,
			TimeoutSeconds: defaultServiceTimeout,
		},
		ImageGen: ImageGen{
			BaseURL:        defaultImageGenBaseURL,
			Model:          defaultImageGenModel,
			TimeoutSeconds: defaultServiceTimeout,
		},
		ObjectStore: ObjectStore{
			BaseURL:        defaultObjectStoreBaseURL,
			TimeoutSeconds: defaultServiceTimeout,
		},
		MeshGen: MeshGen{
			BaseURL:             defaultMeshGenBaseURL,
			TimeoutSeconds:      defaultServiceTimeout,
			FallbackPollSeconds: defaultFallbackPollSeconds,
			MinPollSeconds:      defaultMinPollSeconds,
			MaxPollSeconds:      defaultMaxPollSeconds,
			MaxWaitMinutes:      defaultMaxWaitMinutes,
			UploadDelayMS:       defaultUploadDelayMS,
		},
		Workflow: Workflow{
			ItemDelayMS: defaultItemDelayMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
