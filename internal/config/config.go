package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/seanblong/resumematch/internal/ai"
)

type Specification struct {
	Provider    string             `yaml:"provider"`
	APIKey      string             `yaml:"providerApiKey" envconfig:"PROVIDER_API_KEY"`
	EmbedModel  string             `yaml:"providerEmbedModel" envconfig:"PROVIDER_EMBEDDING_MODEL"`
	ProjectID   string             `yaml:"providerProjectID" envconfig:"PROVIDER_PROJECT_ID"`
	Location    string             `yaml:"providerLocation" envconfig:"PROVIDER_LOCATION"`
	Dim         int                `yaml:"providerDim" envconfig:"EMBED_DIM"`
	Database    string             `yaml:"database" envconfig:"DB_URL"`
	IDFTable    string             `yaml:"idfTable" envconfig:"IDF_TABLE"`
	CorpusRoot  string             `yaml:"corpusRoot" split_words:"true"`
	LogLevel    string             `yaml:"logLevel" split_words:"true"`
	Port        int                `yaml:"port" split_words:"true"`
	CORSOrigins []string           `yaml:"corsOrigins" envconfig:"CORS_ORIGINS"`
	Match       MatchSpecification `yaml:"match"`
	Auth        AuthSpecification  `yaml:"auth"`

	flags *pflag.FlagSet `ignored:"true"`
}

type MatchSpecification struct {
	// WindowSize is counted in words.
	WindowSize     int           `yaml:"windowSize" split_words:"true"`
	Overlap        float64       `yaml:"overlap"`
	TopK           int           `yaml:"topK" envconfig:"TOP_K"`
	MaxUploadBytes int64         `yaml:"maxUploadBytes" split_words:"true"`
	Timeout        time.Duration `yaml:"timeout"`
	Workers        int           `yaml:"workers"`
}

type AuthSpecification struct {
	Enabled   bool   `yaml:"enabled"`
	JwtSecret string `yaml:"jwtSecret" split_words:"true"`
}

const envPrefix = "RESUMEMATCH"

// dotEnvFile is read into the environment, without overriding variables
// already set, before env overrides are applied.
var dotEnvFile = ".env"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < .env/env < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/resumematch.yaml",
				"config/config.yaml",
				"./resumematch.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	if fileExists(dotEnvFile) {
		if err := godotenv.Load(dotEnvFile); err != nil {
			return Specification{}, fmt.Errorf("load %s: %w", dotEnvFile, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if err := cfg.Validate(); err != nil {
		return Specification{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (s *Specification) Validate() error {
	var errs []error
	if _, err := ai.ParseProvider(s.Provider); err != nil {
		errs = append(errs, err)
	}
	if s.Dim < 0 {
		errs = append(errs, fmt.Errorf("embed dim must not be negative, got %d", s.Dim))
	}
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be in 1..65535, got %d", s.Port))
	}
	if s.Match.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("match window size must be at least 1, got %d", s.Match.WindowSize))
	}
	if s.Match.Overlap < 0 || s.Match.Overlap >= 1 {
		errs = append(errs, fmt.Errorf("match overlap must be in [0, 1), got %g", s.Match.Overlap))
	}
	if s.Match.TopK < 1 {
		errs = append(errs, fmt.Errorf("match top k must be at least 1, got %d", s.Match.TopK))
	}
	if s.Match.MaxUploadBytes < 1 {
		errs = append(errs, fmt.Errorf("match max upload bytes must be at least 1, got %d", s.Match.MaxUploadBytes))
	}
	if s.Match.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("match timeout must be positive, got %s", s.Match.Timeout))
	}
	if s.Match.Workers < 1 {
		errs = append(errs, fmt.Errorf("match workers must be at least 1, got %d", s.Match.Workers))
	}
	if s.Auth.Enabled && strings.TrimSpace(s.Auth.JwtSecret) == "" {
		errs = append(errs, fmt.Errorf("%s_AUTH_JWT_SECRET is required when auth is enabled", envPrefix))
	}
	return errors.Join(errs...)
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("provider", c.Provider, "Embedding provider (tfidf, openai, vertexai)")
	fs.String("provider-api-key", c.APIKey, "Provider API key")
	fs.String("provider-embedding-model", c.EmbedModel, "Provider embedding model")
	fs.String("provider-project-id", c.ProjectID, "Provider project ID")
	fs.String("provider-location", c.Location, "Provider location/region")
	fs.Int("embed-dim", c.Dim, "Embedding dimensionality (0 for provider default)")

	fs.String("db-url", c.Database, "Database URL for the embedding cache (empty disables it)")
	fs.String("idf-table", c.IDFTable, "Path to a corpus IDF table for the tfidf provider")
	fs.String("corpus-root", c.CorpusRoot, "Directory of documents to build the IDF table from")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")
	fs.StringSlice("cors-origins", c.CORSOrigins, "Allowed CORS origins")

	fs.Int("window-size", c.Match.WindowSize, "Chunk window size in words")
	fs.Float64("overlap", c.Match.Overlap, "Fraction of each window shared with the next")
	fs.Int("top-k", c.Match.TopK, "Number of top chunks that make up the score")
	fs.Int64("max-upload-bytes", c.Match.MaxUploadBytes, "Maximum resume file size")
	fs.Duration("match-timeout", c.Match.Timeout, "Per-request processing deadline")
	fs.Int("workers", c.Match.Workers, "Parallel chunk scoring workers")

	fs.Bool("auth-enabled", c.Auth.Enabled, "Require a bearer token on the match endpoint")
	fs.String("auth-jwt-secret", c.Auth.JwtSecret, "JWT secret for signing tokens")

	// Used later for usage/help
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("provider", &c.Provider)
	setStr("provider-api-key", &c.APIKey)
	setStr("provider-embedding-model", &c.EmbedModel)
	setStr("provider-project-id", &c.ProjectID)
	setStr("provider-location", &c.Location)
	setInt("embed-dim", &c.Dim)

	setStr("db-url", &c.Database)
	setStr("idf-table", &c.IDFTable)
	setStr("corpus-root", &c.CorpusRoot)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)
	if fs.Changed("cors-origins") {
		c.CORSOrigins, _ = fs.GetStringSlice("cors-origins")
	}

	setInt("window-size", &c.Match.WindowSize)
	if fs.Changed("overlap") {
		c.Match.Overlap, _ = fs.GetFloat64("overlap")
	}
	setInt("top-k", &c.Match.TopK)
	if fs.Changed("max-upload-bytes") {
		c.Match.MaxUploadBytes, _ = fs.GetInt64("max-upload-bytes")
	}
	if fs.Changed("match-timeout") {
		c.Match.Timeout, _ = fs.GetDuration("match-timeout")
	}
	setInt("workers", &c.Match.Workers)

	setBool("auth-enabled", &c.Auth.Enabled)
	setStr("auth-jwt-secret", &c.Auth.JwtSecret)
}

func setDefaults(c *Specification) {
	c.LogLevel = "info"
	c.Provider = string(ai.ProviderTFIDF)
	c.Location = "us-central1"
	c.CorpusRoot = "."
	c.Port = 8080
	c.CORSOrigins = []string{"*"}

	c.Match.WindowSize = 40
	c.Match.Overlap = 0.25
	c.Match.TopK = 5
	c.Match.MaxUploadBytes = 10 << 20
	c.Match.Timeout = 30 * time.Second
	c.Match.Workers = min(runtime.NumCPU(), 8)

	c.Auth.Enabled = false
}
