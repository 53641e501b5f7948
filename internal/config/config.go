package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"ndta-news/pipeline/internal/states"
)

// Config holds all configuration for the pipeline. It is built once in main
// and handed to every component constructor.
type Config struct {
	// File paths
	DataDir string `yaml:"data_dir"`
	DBPath  string `yaml:"db_path"`
	LogDir  string `yaml:"log_dir"`

	// Server settings
	ServerHost string `yaml:"server_host"`
	ServerPort int    `yaml:"server_port"`
	APIKey     string `yaml:"-"`

	Scraping ScrapingConfig `yaml:"scraping"`
	RSSFeeds []FeedConfig   `yaml:"rss_feeds"`
	Web      WebConfig      `yaml:"web_search"`
	Reddit   RedditConfig   `yaml:"reddit"`
	DOT      DOTConfig      `yaml:"dot_sources"`
	AI       AIConfig       `yaml:"ai_settings"`
	States   StatesConfig   `yaml:"state_detection"`
	Social   SocialConfig   `yaml:"social"`
	Pacing   PacingConfig   `yaml:"pacing"`

	Credentials Credentials `yaml:"-"`

	// Log settings
	LogLevel zerolog.Level `yaml:"-"`
}

// ScrapingConfig controls the scrape stage.
type ScrapingConfig struct {
	LookbackDays   int           `yaml:"lookback_days"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UserAgent      string        `yaml:"user_agent"`
}

// FeedConfig is one configured RSS feed.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// WebConfig controls the NewsAPI search source.
type WebConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Endpoint string   `yaml:"endpoint"`
	Keywords []string `yaml:"keywords"`
}

// RedditConfig controls the Reddit source.
type RedditConfig struct {
	Enabled    bool     `yaml:"enabled"`
	BaseURL    string   `yaml:"base_url"`
	Subreddits []string `yaml:"subreddits"`
	Keywords   []string `yaml:"keywords"`
}

// DOTConfig controls the state DOT newsroom source.
type DOTConfig struct {
	Enabled        bool     `yaml:"enabled"`
	PriorityStates []string `yaml:"priority_states"`
}

// AIConfig holds chat model settings shared by every prompt.
type AIConfig struct {
	Model       string        `yaml:"model"`
	FastModel   string        `yaml:"fast_model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// StatesConfig tunes the state abbreviation heuristic.
type StatesConfig struct {
	// AbbreviationPolicy is one of "all", "unambiguous" or "none".
	AbbreviationPolicy string   `yaml:"abbreviation_policy"`
	ExcludeAbbrevs     []string `yaml:"exclude_abbreviations"`
}

// SocialConfig holds non-secret posting settings.
type SocialConfig struct {
	TwitterAPIBase   string              `yaml:"twitter_api_base"`
	TwitterUploadURL string              `yaml:"twitter_upload_url"`
	GraphAPIBase     string              `yaml:"graph_api_base"`
	FacebookGroupIDs map[string][]string `yaml:"facebook_group_ids"`
	WebsiteLabel     string              `yaml:"website_label"`
}

// PacingConfig holds the fixed delays between external calls.
type PacingConfig struct {
	LLMDelay    time.Duration `yaml:"llm_delay"`
	RSSDelay    time.Duration `yaml:"rss_delay"`
	RedditDelay time.Duration `yaml:"reddit_delay"`
	DOTDelay    time.Duration `yaml:"dot_delay"`
	SocialDelay time.Duration `yaml:"social_delay"`
}

// Credentials are read from the environment only.
type Credentials struct {
	OpenAIKey     string
	OpenAIBaseURL string
	NewsAPIKey    string

	TwitterAPIKey       string
	TwitterAPISecret    string
	TwitterAccessToken  string
	TwitterAccessSecret string

	FacebookAccessToken string
	FacebookPageID      string

	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string

	SMTPServer   string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	AlertEmail   string
}

// DefaultConfig returns an initial configuration with hardcoded defaults.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		DataDir:    DefaultDataDir,
		DBPath:     DefaultDBPath,
		LogDir:     DefaultLogDir,
		ServerHost: DefaultServerHost,
		ServerPort: DefaultServerPort,
		Scraping: ScrapingConfig{
			LookbackDays:   DefaultLookbackDays,
			RequestTimeout: 30 * time.Second,
			UserAgent:      DefaultRedditAgent,
		},
		Web: WebConfig{
			Enabled:  true,
			Endpoint: "https://newsapi.org/v2/everything",
			Keywords: DefaultKeywords,
		},
		Reddit: RedditConfig{
			Enabled:    true,
			BaseURL:    "https://www.reddit.com",
			Subreddits: DefaultSubreddits,
			Keywords:   DefaultKeywords,
		},
		DOT: DOTConfig{
			Enabled:        true,
			PriorityStates: DefaultPriorityStates,
		},
		AI: AIConfig{
			Model:       DefaultModel,
			FastModel:   DefaultFastModel,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
			Timeout:     60 * time.Second,
		},
		States: StatesConfig{
			AbbreviationPolicy: "unambiguous",
		},
		Social: SocialConfig{
			TwitterAPIBase:   "https://api.twitter.com",
			TwitterUploadURL: "https://upload.twitter.com/1.1/media/upload.json",
			GraphAPIBase:     "https://graph.facebook.com/v18.0",
			WebsiteLabel:     DefaultGraphicsWebURL,
		},
		Pacing: PacingConfig{
			LLMDelay:    DefaultLLMDelayMS * time.Millisecond,
			RSSDelay:    DefaultRSSDelayMS * time.Millisecond,
			RedditDelay: DefaultRedditDelayMS * time.Millisecond,
			DOTDelay:    DefaultDOTDelayMS * time.Millisecond,
			SocialDelay: DefaultSocialDelayMS * time.Millisecond,
		},
		Credentials: Credentials{
			OpenAIBaseURL:   DefaultOpenAIBaseURL,
			RedditUserAgent: DefaultRedditAgent,
			SMTPServer:      DefaultSMTPServer,
			SMTPPort:        DefaultSMTPPort,
		},
		LogLevel: logLevel,
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and environment variables, in that order of precedence. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// defaults and env only
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DataDir = GetEnvString("NDTA_DATA_DIR", c.DataDir)
	c.DBPath = GetEnvString("NDTA_DB_PATH", c.DBPath)
	c.LogDir = GetEnvString("NDTA_LOG_DIR", c.LogDir)
	c.LogLevel = GetEnvLogLevel("NDTA_LOG_LEVEL", c.LogLevel)
	c.ServerHost = GetEnvString("NDTA_HOST", c.ServerHost)
	c.ServerPort = GetEnvInt("NDTA_PORT", c.ServerPort)
	c.APIKey = GetEnvString("NDTA_API_KEY", c.APIKey)

	c.Scraping.LookbackDays = GetEnvInt("NDTA_LOOKBACK_DAYS", c.Scraping.LookbackDays)
	c.Reddit.Enabled = GetEnvBool("NDTA_REDDIT_ENABLED", c.Reddit.Enabled)
	c.DOT.Enabled = GetEnvBool("NDTA_DOT_ENABLED", c.DOT.Enabled)
	c.DOT.PriorityStates = GetEnvList("NDTA_PRIORITY_STATES", c.DOT.PriorityStates)
	c.AI.Model = GetEnvString("NDTA_AI_MODEL", c.AI.Model)
	c.AI.Timeout = GetEnvDuration("NDTA_AI_TIMEOUT", c.AI.Timeout)
	c.States.AbbreviationPolicy = GetEnvString("NDTA_STATE_ABBREVIATIONS", c.States.AbbreviationPolicy)

	cr := &c.Credentials
	cr.OpenAIKey = GetEnvString("OPENAI_API_KEY", cr.OpenAIKey)
	cr.OpenAIBaseURL = GetEnvString("OPENAI_BASE_URL", cr.OpenAIBaseURL)
	cr.NewsAPIKey = GetEnvString("NEWSAPI_KEY", cr.NewsAPIKey)
	cr.TwitterAPIKey = GetEnvString("TWITTER_API_KEY", cr.TwitterAPIKey)
	cr.TwitterAPISecret = GetEnvString("TWITTER_API_SECRET", cr.TwitterAPISecret)
	cr.TwitterAccessToken = GetEnvString("TWITTER_ACCESS_TOKEN", cr.TwitterAccessToken)
	cr.TwitterAccessSecret = GetEnvString("TWITTER_ACCESS_SECRET", cr.TwitterAccessSecret)
	cr.FacebookAccessToken = GetEnvString("FACEBOOK_ACCESS_TOKEN", cr.FacebookAccessToken)
	cr.FacebookPageID = GetEnvString("FACEBOOK_PAGE_ID", cr.FacebookPageID)
	cr.RedditClientID = GetEnvString("REDDIT_CLIENT_ID", cr.RedditClientID)
	cr.RedditClientSecret = GetEnvString("REDDIT_CLIENT_SECRET", cr.RedditClientSecret)
	cr.RedditUserAgent = GetEnvString("REDDIT_USER_AGENT", cr.RedditUserAgent)
	cr.SMTPServer = GetEnvString("SMTP_SERVER", cr.SMTPServer)
	cr.SMTPPort = GetEnvInt("SMTP_PORT", cr.SMTPPort)
	cr.SMTPUsername = GetEnvString("SMTP_USERNAME", cr.SMTPUsername)
	cr.SMTPPassword = GetEnvString("SMTP_PASSWORD", cr.SMTPPassword)
	cr.AlertEmail = GetEnvString("ALERT_EMAIL", cr.AlertEmail)
}

// fillDefaults restores defaults for values a YAML file zeroed out.
func (c *Config) fillDefaults() {
	if c.Scraping.LookbackDays <= 0 {
		c.Scraping.LookbackDays = DefaultLookbackDays
	}
	if c.Scraping.RequestTimeout <= 0 {
		c.Scraping.RequestTimeout = 30 * time.Second
	}
	if len(c.Web.Keywords) == 0 {
		c.Web.Keywords = DefaultKeywords
	}
	if len(c.Reddit.Keywords) == 0 {
		c.Reddit.Keywords = DefaultKeywords
	}
	if len(c.DOT.PriorityStates) == 0 {
		c.DOT.PriorityStates = DefaultPriorityStates
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = DefaultMaxTokens
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 60 * time.Second
	}
	if c.Credentials.AlertEmail == "" {
		c.Credentials.AlertEmail = c.Credentials.SMTPUsername
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "pipeline.db")
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// GraphicsDir is where rendered graphics are written.
func (c *Config) GraphicsDir() string {
	return filepath.Join(c.DataDir, "graphics")
}

// Feature names reported by Features.
const (
	FeatureLLM      = "openai"
	FeatureNewsAPI  = "newsapi"
	FeatureReddit   = "reddit_oauth"
	FeatureTwitter  = "twitter"
	FeatureFacebook = "facebook"
	FeatureSMTP     = "smtp"
)

// Features reports which credential-gated features are configured.
func (c *Config) Features() map[string]bool {
	cr := c.Credentials
	return map[string]bool{
		FeatureLLM:     cr.OpenAIKey != "",
		FeatureNewsAPI: cr.NewsAPIKey != "",
		FeatureReddit:  cr.RedditClientID != "" && cr.RedditClientSecret != "",
		FeatureTwitter: cr.TwitterAPIKey != "" && cr.TwitterAPISecret != "" &&
			cr.TwitterAccessToken != "" && cr.TwitterAccessSecret != "",
		FeatureFacebook: cr.FacebookAccessToken != "" && cr.FacebookPageID != "",
		FeatureSMTP:     cr.SMTPUsername != "",
	}
}

// Validate returns the problems that make the configuration unusable. Missing
// credentials are not problems; they only disable features.
func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path is empty"))
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.ServerPort))
	}
	switch c.States.AbbreviationPolicy {
	case "all", "unambiguous", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown abbreviation policy %q", c.States.AbbreviationPolicy))
	}
	for _, abbr := range c.DOT.PriorityStates {
		if _, ok := states.Name(abbr); !ok {
			errs = append(errs, fmt.Errorf("unknown priority state %q", abbr))
		}
	}
	for _, abbr := range c.States.ExcludeAbbrevs {
		if _, ok := states.Name(abbr); !ok {
			errs = append(errs, fmt.Errorf("unknown excluded abbreviation %q", abbr))
		}
	}
	for abbr := range c.Social.FacebookGroupIDs {
		if _, ok := states.Name(abbr); !ok {
			errs = append(errs, fmt.Errorf("unknown state %q in facebook group ids", abbr))
		}
	}
	return errors.Join(errs...)
}
