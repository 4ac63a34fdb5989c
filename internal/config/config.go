package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"github.com/Waeei/waeei-backend/internal/explain"
	"github.com/Waeei/waeei-backend/internal/provider"
)

const DefaultDenylistURL = "https://raw.githubusercontent.com/alaaelkhashap/Malicious-URLs-dataset/main/malicious_urls.txt"

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC server

	GSBAPIKey  string
	GSBBaseURL string
	GSBTimeout time.Duration

	URLScanAPIKey  string
	URLScanBaseURL string
	URLScanTimeout time.Duration

	GeminiAPIKey   string
	GeminiModel    string
	ExplainTimeout time.Duration

	DenylistURL            string // empty disables downloads
	DenylistPath           string
	DenylistReloadInterval time.Duration // zero disables periodic reloads
	DenylistReloadToken    string        // empty disables POST /denylist/reload

	DatabasePath       string
	RateLimitPerMinute int
	Verbose            bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// lookupenv is getenv for keys where an explicitly empty value means "off".
func lookupenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// LoadEnvFile loads a .env file into the process environment if one exists.
// Variables already set take precedence.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return xerrors.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":8000"),
		GRPCAddr:       lookupenv("GRPC_ADDR", ":9090"),
		GSBAPIKey:      os.Getenv("GSB_API_KEY"),
		GSBBaseURL:     getenv("GSB_BASE_URL", provider.DefaultSafeBrowsingURL),
		URLScanAPIKey:  os.Getenv("URLSCAN_API_KEY"),
		URLScanBaseURL: getenv("URLSCAN_BASE_URL", provider.DefaultURLScanURL),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    getenv("GEMINI_MODEL", explain.DefaultModel),
		DenylistURL:    lookupenv("DENYLIST_URL", DefaultDenylistURL),
		DenylistPath:   getenv("DENYLIST_PATH", "malicious_urls.txt"),
		DatabasePath:   getenv("DATABASE_PATH", "WaaeiDB.db"),

		DenylistReloadToken: os.Getenv("DENYLIST_RELOAD_TOKEN"),
	}

	var err error
	if cfg.GSBTimeout, err = duration("GSB_TIMEOUT", provider.DefaultSafeBrowsingTimeout); err != nil {
		return Config{}, err
	}
	if cfg.URLScanTimeout, err = duration("URLSCAN_TIMEOUT", provider.DefaultURLScanTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ExplainTimeout, err = duration("EXPLAIN_TIMEOUT", explain.DefaultTimeout); err != nil {
		return Config{}, err
	}

	interval, err := duration("DENYLIST_RELOAD_INTERVAL", 0)
	if err != nil {
		return Config{}, err
	}
	if interval != 0 {
		if interval < time.Hour {
			return Config{}, xerrors.Errorf("DENYLIST_RELOAD_INTERVAL too small (%s), must be >=1h", interval)
		}
		if interval > 48*time.Hour {
			return Config{}, xerrors.Errorf("DENYLIST_RELOAD_INTERVAL too large (%s), must be <=48h", interval)
		}
	}
	cfg.DenylistReloadInterval = interval

	rate := getenv("RATE_LIMIT_PER_MINUTE", "60")
	cfg.RateLimitPerMinute, err = strconv.Atoi(rate)
	if err != nil || cfg.RateLimitPerMinute < 0 {
		return Config{}, xerrors.Errorf("invalid RATE_LIMIT_PER_MINUTE=%q: must be a non-negative integer", rate)
	}

	if v := os.Getenv("LOG_VERBOSE"); v != "" {
		cfg.Verbose, err = strconv.ParseBool(v)
		if err != nil {
			return Config{}, xerrors.Errorf("invalid LOG_VERBOSE=%q: %w", v, err)
		}
	}

	if cfg.HTTPAddr == "" {
		return Config{}, xerrors.New("HTTP_ADDR must not be empty")
	}
	if cfg.DenylistPath == "" {
		return Config{}, xerrors.New("DENYLIST_PATH must not be empty")
	}
	if cfg.DatabasePath == "" {
		return Config{}, xerrors.New("DATABASE_PATH must not be empty")
	}

	return cfg, nil
}

// duration reads a positive duration, or zero for keys that allow it.
func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, xerrors.Errorf("invalid %s=%q: %w", key, v, err)
	}
	if d < 0 {
		return 0, xerrors.Errorf("invalid %s=%q: must not be negative", key, v)
	}
	return d, nil
}
