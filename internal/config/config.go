package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Cloud    CloudConfig               `toml:"cloud"`
	Models   ModelsConfig              `toml:"models"`
	LLMs     map[string]*LLMConfig     `toml:"llm"`
	Travel   TravelConfig              `toml:"travel"`
	UI       UIConfig                  `toml:"ui"`
	Channels map[string]*ChannelConfig `toml:"channel"`
	DB       DBConfig                  `toml:"db"`
	Trace    TraceConfig               `toml:"trace"`
}

// CloudConfig locates the Vertex AI project the agents are deployed to.
type CloudConfig struct {
	Project       string `toml:"project"`
	Location      string `toml:"location"`
	Bucket        string `toml:"bucket"`
	UseVertexAI   bool   `toml:"use_vertexai"`
	GoogleAPIKey  string `toml:"google_api_key"`
	WeatherAPIKey string `toml:"weather_api_key"`
}

type ModelsConfig struct {
	Default    string   `toml:"default"`
	MultiModel []string `toml:"multi_model"`
}

// LLMConfig holds credentials for a non-Gemini provider, keyed by provider
// name ("openai", "anthropic").
type LLMConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type TravelConfig struct {
	ScenarioPath string `toml:"scenario_path"`
	PlacesAPIKey string `toml:"places_api_key"`
	BraveAPIKey  string `toml:"brave_api_key"`
}

type UIConfig struct {
	Addr   string `toml:"addr"`
	UserID string `toml:"user_id"`
}

type ChannelConfig struct {
	Enabled  bool              `toml:"enabled"`
	Type     string            `toml:"type"`
	Settings map[string]string `toml:"settings"`
}

type DBConfig struct {
	Path string `toml:"path"`
}

type TraceConfig struct {
	Endpoint string `toml:"endpoint"`
	URLPath  string `toml:"url_path"`
	APIKey   string `toml:"api_key"`
	Insecure bool   `toml:"insecure"`
}

const (
	DefaultModel     = "gemini-2.0-flash"
	DefaultUIAddr    = ":8501"
	DefaultUIUserID  = "streamlit_user"
	defaultOpenAI    = "openai/gpt-4o"
	defaultAnthropic = "anthropic/claude-sonnet-4-20250514"
)

func defaults() *Config {
	return &Config{
		Models: ModelsConfig{
			Default:    DefaultModel,
			MultiModel: []string{DefaultModel, defaultOpenAI, defaultAnthropic},
		},
		LLMs: map[string]*LLMConfig{
			"openai":    {},
			"anthropic": {},
		},
		UI: UIConfig{
			Addr:   DefaultUIAddr,
			UserID: DefaultUIUserID,
		},
		DB: DBConfig{
			Path: defaultDBPath(),
		},
	}
}

// Load reads .env files, the TOML config file and the environment, in that
// order of increasing precedence.
func Load() (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}
	return LoadFile(configPath(), os.LookupEnv)
}

// LoadFile decodes path (if it exists) over the defaults, then applies
// overrides from lookup.
func LoadFile(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	if cfg.LLMs == nil {
		cfg.LLMs = map[string]*LLMConfig{}
	}
	for _, name := range []string{"openai", "anthropic"} {
		if cfg.LLMs[name] == nil {
			cfg.LLMs[name] = &LLMConfig{}
		}
	}

	applyEnv(cfg, lookup)
	return cfg, nil
}

// LoadEnvFiles loads .env.local then .env from the working directory.
// Variables already set in the process environment win.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading %s: %w", file, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str(&cfg.Cloud.Project, "GOOGLE_CLOUD_PROJECT")
	str(&cfg.Cloud.Location, "GOOGLE_CLOUD_LOCATION")
	str(&cfg.Cloud.Bucket, "GOOGLE_CLOUD_STORAGE_BUCKET")
	str(&cfg.Cloud.GoogleAPIKey, "GOOGLE_API_KEY")
	str(&cfg.Cloud.WeatherAPIKey, "WEATHER_API_KEY")
	if v, ok := lookup("GOOGLE_GENAI_USE_VERTEXAI"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		cfg.Cloud.UseVertexAI = err == nil && b
	}

	str(&cfg.LLMs["openai"].APIKey, "OPENAI_API_KEY")
	str(&cfg.LLMs["anthropic"].APIKey, "ANTHROPIC_API_KEY")

	str(&cfg.Travel.ScenarioPath, "TRAVEL_CONCIERGE_SCENARIO")
	str(&cfg.Travel.PlacesAPIKey, "GOOGLE_PLACES_API_KEY")
	str(&cfg.Travel.BraveAPIKey, "BRAVE_API_KEY")

	str(&cfg.Trace.Endpoint, "AGENTDECK_OTLP_ENDPOINT")
}

// Env returns the deployment-relevant values as environment variable names,
// the way the deploy commands print and validate them.
func (c *Config) Env() map[string]string {
	return map[string]string{
		"GOOGLE_CLOUD_PROJECT":        c.Cloud.Project,
		"GOOGLE_CLOUD_LOCATION":       c.Cloud.Location,
		"GOOGLE_CLOUD_STORAGE_BUCKET": c.Cloud.Bucket,
		"WEATHER_API_KEY":             c.Cloud.WeatherAPIKey,
		"GOOGLE_PLACES_API_KEY":       c.Travel.PlacesAPIKey,
		"TRAVEL_CONCIERGE_SCENARIO":   c.Travel.ScenarioPath,
	}
}

// Path is where Load looks for the config file.
func Path() string { return configPath() }

// WriteDefault writes the default configuration to path. An existing file
// is left alone and reported with os.ErrExist.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	enc.Indent = ""
	if err := enc.Encode(defaults()); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return f.Close()
}

func configPath() string {
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "agentdeck", "config.toml")
}

func defaultDBPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, ".local", "share", "agentdeck", "history.db")
}
