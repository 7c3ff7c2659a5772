package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort        = 8080
	defaultDataDir     = "data"
	defaultAPIURL      = "https://api.nft.storage"
	defaultGatewayHost = "nftstorage.link"
	defaultLogLevel    = "info"

	// TokenEnv holds the pinning service API token.
	TokenEnv = "NFT_STORAGE_API"
	// legacyTokenEnv is the name the browser build of the uploader used.
	legacyTokenEnv = "NEXT_PUBLIC_NFT_STORAGE_API"
)

// Config describes runtime configuration for the uploader.
type Config struct {
	Port          int           `yaml:"port"`
	DataDir       string        `yaml:"data_dir"`
	APIURL        string        `yaml:"api_url"`
	GatewayHost   string        `yaml:"gateway_host"`
	UploadTimeout time.Duration `yaml:"upload_timeout"`
	LogLevel      string        `yaml:"log_level"`

	// Token is never read from the YAML file.
	Token string `yaml:"-"`
}

// Default returns the configuration used when no config file is present.
// UploadTimeout is zero: uploads wait for the pinning service indefinitely.
func Default() Config {
	return Config{
		Port:        defaultPort,
		DataDir:     defaultDataDir,
		APIURL:      defaultAPIURL,
		GatewayHost: defaultGatewayHost,
		LogLevel:    defaultLogLevel,
	}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error. The API token is taken
// from the environment afterwards, see LoadToken.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return normalize(cfg)
}

func normalize(cfg Config) (Config, error) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if _, err := url.ParseRequestURI(cfg.APIURL); err != nil {
		return cfg, fmt.Errorf("invalid api_url %q: %w", cfg.APIURL, err)
	}
	cfg.GatewayHost = normalizeHost(cfg.GatewayHost)
	if cfg.GatewayHost == "" {
		cfg.GatewayHost = defaultGatewayHost
	}
	if cfg.UploadTimeout < 0 {
		return cfg, fmt.Errorf("invalid upload_timeout: %s (must be >= 0)", cfg.UploadTimeout)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	return cfg, nil
}

// normalizeHost accepts either a bare host or a URL and keeps only the host.
func normalizeHost(raw string) string {
	host := strings.TrimSpace(raw)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimRight(host, "/")
}

// LoadToken loads a .env file when present and returns the API token from the
// environment. A missing token is not an error here: the first upload will be
// rejected by the pinning service instead.
func LoadToken(envFiles ...string) (string, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("load env file: %w", err)
	}
	if token := strings.TrimSpace(os.Getenv(TokenEnv)); token != "" {
		return token, nil
	}
	return strings.TrimSpace(os.Getenv(legacyTokenEnv)), nil
}

// Level returns the configured zerolog level, falling back to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
