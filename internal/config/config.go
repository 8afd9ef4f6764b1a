package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"ebird-barchart/lib/configutil"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

const (
	usernameEnv = "EBIRD_USERNAME"
	passwordEnv = "EBIRD_PASSWORD"
	apiKeyEnv   = "EBIRD_API_KEY"
	logLevelEnv = "BARCHART_LOG_LEVEL"

	DefaultOutDir = "public/barchartData"
	DefaultDelay  = time.Second
)

var (
	ErrMissingCredentials = fmt.Errorf("please set %s and %s environment variables", usernameEnv, passwordEnv)
	ErrMissingAPIKey      = fmt.Errorf("please set %s environment variable", apiKeyEnv)
)

// EbirdConfig holds the endpoints of the eBird services that are talked to.
type EbirdConfig struct {
	// WebUrl is the base of the website that serves bar chart exports.
	WebUrl string `json:"web_url"`
	// LoginUrl is the CAS login page, it must redirect back to WebUrl on success.
	LoginUrl string `json:"login_url"`
	// ApiUrl is the base of the public eBird API (v2).
	ApiUrl string `json:"api_url"`
}

// Config is every setting of a run, it is built once in main and handed
// to each component that needs it.
type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`
	ApiKey   string `json:"api_key"`

	OutDir       string  `json:"outdir"`
	DelaySeconds float64 `json:"delay_seconds"`
	LogLevel     string  `json:"log_level"`

	Ebird EbirdConfig `json:"ebird"`
}

// Delay returns DelaySeconds as a duration, negative values are treated as 0.
func (c Config) Delay() time.Duration {
	if c.DelaySeconds <= 0 {
		return 0
	}
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

// RequireCredentials returns ErrMissingCredentials if either the username or password is missing.
func (c Config) RequireCredentials() error {
	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// RequireAPIKey returns ErrMissingAPIKey if the api key is missing.
func (c Config) RequireAPIKey() error {
	if c.ApiKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func Default() Config {
	return Config{
		OutDir:       DefaultOutDir,
		DelaySeconds: DefaultDelay.Seconds(),
		LogLevel:     "info",
		Ebird: EbirdConfig{
			WebUrl:   "https://ebird.org",
			LoginUrl: "https://secure.birds.cornell.edu/cassso/login?service=https%3A%2F%2Febird.org%2Flogin%2Fcas%3Fportal%3Debird",
			ApiUrl:   "https://api.ebird.org/v2",
		},
	}
}

// Load builds a Config from (lowest to highest priority) defaults, the json5
// file at `path` and its .local override, a .env file in `envFile`, then the
// process environment. Missing files are not an error.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		fileCfg, err := configutil.ReadConfig[Config](path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			// only the values that are set in the file replace the defaults
			err = mergo.Merge(&cfg, fileCfg, mergo.WithOverride)
			if err != nil {
				return cfg, fmt.Errorf("merge config: %w", err)
			}
		}
	}

	if envFile != "" {
		// godotenv never overrides variables that are already set.
		err := godotenv.Load(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(usernameEnv); v != "" {
		c.Username = v
	}
	if v := os.Getenv(passwordEnv); v != "" {
		c.Password = v
	}
	if v := os.Getenv(apiKeyEnv); v != "" {
		c.ApiKey = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.LogLevel = v
	}
}
