package config

// Defaults for the pipeline configuration. Anything here can be overridden by
// the YAML file and then by environment variables.
const (
	DefaultConfigPath = "config/news_sources.yaml"
	DefaultDataDir    = "./data"
	DefaultDBPath     = "./data/pipeline.db"
	DefaultLogDir     = "./logs"
	DefaultLogLevel   = "info"

	DefaultServerPort = 5000
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultLookbackDays = 7

	DefaultModel          = "gpt-4"
	DefaultFastModel      = "gpt-3.5-turbo"
	DefaultTemperature    = 0.7
	DefaultMaxTokens      = 1500
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultRedditAgent    = "NDTA News Pipeline Bot 1.0"
	DefaultSMTPServer     = "smtp.gmail.com"
	DefaultSMTPPort       = 587
	DefaultGraphicsWebURL = "www.thendta.org"

	// Fixed pacing between calls to third-party services, in milliseconds.
	DefaultLLMDelayMS    = 1000
	DefaultRSSDelayMS    = 2000
	DefaultRedditDelayMS = 2000
	DefaultDOTDelayMS    = 1000
	DefaultSocialDelayMS = 2000
)

// DefaultPriorityStates are the DOT newsrooms scraped when the config names none.
var DefaultPriorityStates = []string{"GA"}

// DefaultSubreddits mirrors the communities the association follows.
var DefaultSubreddits = []string{
	"Truckers", "trucking", "Construction", "heavyequipment",
	"CommercialTrucking", "OwnerOperators", "Diesel", "mechanics",
}

// DefaultKeywords are the search terms used by the web and Reddit sources.
var DefaultKeywords = []string{
	"dump truck", "dump trailer", "tipper truck", "aggregate hauling", "material hauling",
}
