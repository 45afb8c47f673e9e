package config

const (
	defaultDataDir  = "~/.local/share/lumen"
	defaultCacheDir = "~/.cache/lumen"
	defaultLogDir   = "~/.local/share/lumen/logs"

	defaultVisionBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultVisionModel          = "google/gemini-3-flash-preview"
	defaultVisionTimeoutSeconds = 15

	defaultCacheTimeoutSeconds = 5

	defaultMuseumBaseURL       = "https://collectionapi.metmuseum.org/public/collection/v1"
	defaultEncyclopediaBaseURL = "https://en.wikipedia.org/api/rest_v1"
	defaultReferenceTimeout    = 5

	defaultTTSVoice          = "alloy"
	defaultTTSTimeoutSeconds = 30

	defaultSessionDeadlineSeconds = 20
	defaultGenerateTimeoutSeconds = 12
	defaultSessionLanguage        = "en"
	defaultMaxImageEdge           = 1536

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
		},
		Vision: Vision{
			BaseURL:        defaultVisionBaseURL,
			Model:          defaultVisionModel,
			TimeoutSeconds: defaultVisionTimeoutSeconds,
		},
		Cache: Cache{
			Enabled:        true,
			TimeoutSeconds: defaultCacheTimeoutSeconds,
		},
		Reference: Reference{
			Order:               []string{"museum", "encyclopedia"},
			MuseumBaseURL:       defaultMuseumBaseURL,
			EncyclopediaBaseURL: defaultEncyclopediaBaseURL,
			TimeoutSeconds:      defaultReferenceTimeout,
		},
		TTS: TTS{
			Enabled:        false,
			Voice:          defaultTTSVoice,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
		},
		Session: Session{
			DeadlineSeconds:        defaultSessionDeadlineSeconds,
			GenerateTimeoutSeconds: defaultGenerateTimeoutSeconds,
			Language:               defaultSessionLanguage,
			MaxImageEdge:           defaultMaxImageEdge,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
