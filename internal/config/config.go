package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Known insecure placeholder values. Startup fails closed when any required
// secret is empty or matches one of these.
var insecureDefaults = map[string]bool{
	"":                        true,
	"change-me-in-production": true,
	"secret":                  true,
	"password":                true,
}

// Config holds all application settings
type Config struct {
	// Application
	Env       string `yaml:"env"` // "development", "production"
	SecretKey string `yaml:"secret_key"`
	JWTSecret string `yaml:"jwt_secret"`

	// Storage
	Storage StorageConfig `yaml:"storage"`

	// Redis
	Redis RedisConfig `yaml:"redis"`

	// Vector store
	Qdrant QdrantConfig `yaml:"qdrant"`

	// GitHub App
	GitHub GitHubConfig `yaml:"github"`

	// LLM and embedding providers
	LLM LLMConfig `yaml:"llm"`

	// Scan and clone limits
	Scan ScanConfig `yaml:"scan"`
}

type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	PoolSize    int    `yaml:"pool_size"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
	UseTLS     bool   `yaml:"use_tls"`
}

type GitHubConfig struct {
	AppID         int64  `yaml:"app_id"`
	PrivateKeyPEM string `yaml:"private_key_pem"`
	WebhookSecret string `yaml:"webhook_secret"`
	Token         string `yaml:"token"`      // optional PAT for public-URL scans
	RateLimit     int    `yaml:"rate_limit"` // outbound requests per second
}

type LLMConfig struct {
	Provider       string `yaml:"provider"` // "openai", "gemini"
	OpenAIKey      string `yaml:"openai_key"`
	OpenAIModel    string `yaml:"openai_model"`
	GeminiKey      string `yaml:"gemini_key"`
	GeminiModel    string `yaml:"gemini_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	EmbeddingDim   int    `yaml:"embedding_dim"`
}

type ScanConfig struct {
	TempRoot      string        `yaml:"temp_root"`
	CloneTimeout  time.Duration `yaml:"clone_timeout"`
	MaxRepoBytes  int64         `yaml:"max_repo_bytes"`
	MaxFileBytes  int64         `yaml:"max_file_bytes"`
	CleanupMaxAge time.Duration `yaml:"cleanup_max_age"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Env: "development",
		Storage: StorageConfig{
			PoolSize: 10,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "code_embeddings",
		},
		GitHub: GitHubConfig{
			RateLimit: 10,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			OpenAIModel:    "gpt-4o",
			GeminiModel:    "gemini-2.0-flash",
			EmbeddingModel: "text-embedding-3-small",
			EmbeddingDim:   768,
		},
		Scan: ScanConfig{
			TempRoot:      filepath.Join(os.TempDir(), "codeproof"),
			CloneTimeout:  300 * time.Second,
			MaxRepoBytes:  500 * 1024 * 1024,
			MaxFileBytes:  1024 * 1024,
			CleanupMaxAge: time.Hour,
		},
	}
}

// Load loads configuration from file, environment files, and env overrides
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("env", cfg.Env)
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("redis", cfg.Redis)
	v.SetDefault("qdrant", cfg.Qdrant)
	v.SetDefault("github", cfg.GitHub)
	v.SetDefault("llm", cfg.LLM)
	v.SetDefault("scan", cfg.Scan)

	v.SetEnvPrefix("CODEPROOF")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".codeproof")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".codeproof"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Env = env
	}
	if key := os.Getenv("SECRET_KEY"); key != "" {
		cfg.SecretKey = key
	}
	if key := os.Getenv("JWT_SECRET"); key != "" {
		cfg.JWTSecret = key
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if size := os.Getenv("DATABASE_POOL_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.Storage.PoolSize = n
		}
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Redis.Host = host
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Redis.Port = n
		}
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}

	if host := os.Getenv("QDRANT_HOST"); host != "" {
		cfg.Qdrant.Host = host
	}
	if port := os.Getenv("QDRANT_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Qdrant.Port = n
		}
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" {
		cfg.Qdrant.APIKey = key
	}
	if coll := os.Getenv("QDRANT_COLLECTION"); coll != "" {
		cfg.Qdrant.Collection = coll
	}

	if id := os.Getenv("GITHUB_APP_ID"); id != "" {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			cfg.GitHub.AppID = n
		}
	}
	if pem := os.Getenv("GITHUB_APP_PRIVATE_KEY"); pem != "" {
		cfg.GitHub.PrivateKeyPEM = pem
	}
	if secret := os.Getenv("GITHUB_WEBHOOK_SECRET"); secret != "" {
		cfg.GitHub.WebhookSecret = secret
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}

	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.LLM.OpenAIModel = model
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.LLM.GeminiModel = model
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		cfg.LLM.EmbeddingModel = model
	}

	if root := os.Getenv("SCAN_TEMP_ROOT"); root != "" {
		cfg.Scan.TempRoot = root
	}
	if mins := os.Getenv("SCAN_CLEANUP_MAX_AGE_MINUTES"); mins != "" {
		if n, err := strconv.Atoi(mins); err == nil {
			cfg.Scan.CleanupMaxAge = time.Duration(n) * time.Minute
		}
	}
}

// IsProduction reports whether the app runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate enforces the fail-closed startup policy: required secrets must be
// set, must not be known placeholders, and signing secrets must be at least
// 32 characters.
func (c *Config) Validate() error {
	var problems []string

	if insecureDefaults[c.SecretKey] {
		problems = append(problems, "SECRET_KEY is unset or uses an insecure default")
	} else if len(c.SecretKey) < 32 {
		problems = append(problems, "SECRET_KEY must be at least 32 characters")
	}

	if insecureDefaults[c.JWTSecret] {
		problems = append(problems, "JWT_SECRET is unset or uses an insecure default")
	} else if len(c.JWTSecret) < 32 {
		problems = append(problems, "JWT_SECRET must be at least 32 characters")
	}

	if c.Storage.PostgresDSN == "" {
		problems = append(problems, "DATABASE_URL is required")
	}

	if c.GitHub.AppID == 0 {
		problems = append(problems, "GITHUB_APP_ID is required")
	}
	if insecureDefaults[c.GitHub.PrivateKeyPEM] {
		problems = append(problems, "GITHUB_APP_PRIVATE_KEY is unset or uses an insecure default")
	}
	if insecureDefaults[c.GitHub.WebhookSecret] {
		problems = append(problems, "GITHUB_WEBHOOK_SECRET is unset or uses an insecure default")
	}

	switch c.LLM.Provider {
	case "openai":
		if insecureDefaults[c.LLM.OpenAIKey] {
			problems = append(problems, "OPENAI_API_KEY is unset or uses an insecure default")
		}
	case "gemini":
		if insecureDefaults[c.LLM.GeminiKey] {
			problems = append(problems, "GEMINI_API_KEY is unset or uses an insecure default")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown LLM provider %q", c.LLM.Provider))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration invalid:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
