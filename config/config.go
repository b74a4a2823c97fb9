package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the quiz solver
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Render   RenderConfig   `mapstructure:"render"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Quiz     QuizConfig     `mapstructure:"quiz"`
	Session  SessionConfig  `mapstructure:"session"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	Secret       string        `mapstructure:"secret"`
	SecretHash   string        `mapstructure:"secret_hash"` // bcrypt hash, preferred over Secret when set
	DefaultEmail string        `mapstructure:"default_email"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BodyLimit    string        `mapstructure:"body_limit"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Secret) == "" && strings.TrimSpace(s.SecretHash) == "" {
		return fmt.Errorf("server.secret or server.secret_hash required")
	}
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address required")
	}
	return nil
}

// LLMConfig selects and configures the text completion provider
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"` // openai, anthropic, auto
	Model           string        `mapstructure:"model"`
	OpenAIKey       string        `mapstructure:"openai_api_key"`
	AnthropicKey    string        `mapstructure:"anthropic_api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxContextChars int           `mapstructure:"max_context_chars"`
}

// Normalize resolves the "auto" provider: OpenAI when a key is present,
// otherwise Anthropic.
func (l LLMConfig) Normalize() LLMConfig {
	l.Provider = strings.ToLower(strings.TrimSpace(l.Provider))
	if l.Provider == "" || l.Provider == "auto" {
		switch {
		case l.OpenAIKey != "":
			l.Provider = "openai"
		case l.AnthropicKey != "":
			l.Provider = "anthropic"
		}
	}
	if l.Model == "" {
		if l.Provider == "anthropic" {
			l.Model = "claude-3-5-sonnet-20241022"
		} else {
			l.Model = "gpt-4-turbo"
		}
	}
	if l.MaxContextChars <= 0 {
		l.MaxContextChars = 4000
	}
	if l.MaxTokens <= 0 {
		l.MaxTokens = 1000
	}
	return l
}

func (l LLMConfig) Validate() error {
	switch l.Provider {
	case "openai":
		if l.OpenAIKey == "" {
			return fmt.Errorf("llm.openai_api_key required for provider openai")
		}
	case "anthropic":
		if l.AnthropicKey == "" {
			return fmt.Errorf("llm.anthropic_api_key required for provider anthropic")
		}
	case "", "auto":
		return fmt.Errorf("no LLM provider configured (set OPENAI_API_KEY or ANTHROPIC_API_KEY)")
	default:
		return fmt.Errorf("unsupported llm.provider %q", l.Provider)
	}
	if l.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be > 0")
	}
	return nil
}

// RenderConfig controls the headless browser adapter
type RenderConfig struct {
	Engine    string        `mapstructure:"engine"` // chromedp, rod
	Timeout   time.Duration `mapstructure:"timeout"`
	Settle    time.Duration `mapstructure:"settle"`
	UserAgent string        `mapstructure:"user_agent"`
	MaxChars  int           `mapstructure:"max_chars"`
	Bin       string        `mapstructure:"bin"`
}

// HTTPConfig bounds outbound calls made by the file and API strategies
type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// QuizConfig holds per-session limits and answer submission settings
type QuizConfig struct {
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	SubmitEnabled  bool          `mapstructure:"submit_enabled"`
	SubmitURL      string        `mapstructure:"submit_url"`
}

// SessionConfig chooses the session registry backend
type SessionConfig struct {
	Store         string        `mapstructure:"store"` // inmemory, redis
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

func (s SessionConfig) Validate() error {
	switch s.Store {
	case "inmemory":
		return nil
	case "redis":
		return s.Redis.Validate()
	default:
		return fmt.Errorf("unsupported session.store %q", s.Store)
	}
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("session.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("session.redis.port required")
	}
	return nil
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// DispatchConfig holds the keyword sets used to classify questions
type DispatchConfig struct {
	Keywords KeywordConfig `mapstructure:"keywords"`
}

// KeywordConfig lists keywords per question category
type KeywordConfig struct {
	File          []string `mapstructure:"file"`
	API           []string `mapstructure:"api"`
	Stat          []string `mapstructure:"stat"`
	Visualization []string `mapstructure:"visualization"`
}

// Normalize lowercases keywords and restores defaults for empty sets.
func (k KeywordConfig) Normalize() KeywordConfig {
	k.File = normalizeKeywords(k.File, DefaultFileKeywords)
	k.API = normalizeKeywords(k.API, DefaultAPIKeywords)
	k.Stat = normalizeKeywords(k.Stat, DefaultStatKeywords)
	k.Visualization = normalizeKeywords(k.Visualization, DefaultVisualizationKeywords)
	return k
}

func normalizeKeywords(in, def []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}

func setDefaults(v *viper.Viper) {
	// empty defaults make these keys visible to AutomaticEnv during Unmarshal
	for _, key := range []string{
		"server.secret", "server.secret_hash", "server.default_email",
		"llm.openai_api_key", "llm.anthropic_api_key", "llm.model", "llm.base_url",
		"render.bin", "quiz.submit_url", "session.redis.host", "session.redis.password",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 200*time.Second)
	v.SetDefault("server.body_limit", "1M")
	v.SetDefault("llm.provider", "auto")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_context_chars", 4000)
	v.SetDefault("render.engine", "chromedp")
	v.SetDefault("render.timeout", 30*time.Second)
	v.SetDefault("render.settle", 2*time.Second)
	v.SetDefault("render.user_agent", "QuizSolver/1.0")
	v.SetDefault("render.max_chars", 200000)
	v.SetDefault("http.timeout", 10*time.Second)
	v.SetDefault("http.max_body_bytes", int64(20<<20))
	v.SetDefault("http.user_agent", "QuizSolver/1.0")
	v.SetDefault("quiz.session_timeout", 180*time.Second)
	v.SetDefault("quiz.submit_enabled", false)
	v.SetDefault("session.store", "inmemory")
	v.SetDefault("session.sweep_interval", 5*time.Second)
	v.SetDefault("session.redis.port", "6379")
	v.SetDefault("dispatch.keywords.file", DefaultFileKeywords)
	v.SetDefault("dispatch.keywords.api", DefaultAPIKeywords)
	v.SetDefault("dispatch.keywords.stat", DefaultStatKeywords)
	v.SetDefault("dispatch.keywords.visualization", DefaultVisualizationKeywords)
}

// legacyEnv maps plain, unprefixed environment variables
// onto config keys. They apply only when the key is otherwise unset.
var legacyEnv = map[string]string{
	"server.secret":         "SECRET_STRING",
	"server.default_email":  "EMAIL",
	"llm.openai_api_key":    "OPENAI_API_KEY",
	"llm.anthropic_api_key": "ANTHROPIC_API_KEY",
	"llm.model":             "LLM_MODEL",
}

// Load reads config from path (or the default search paths when empty),
// applies env overrides and validates the result.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadForSolve is Load without the server section checks, for one-shot
// runs that never accept requests.
func LoadForSolve(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, server bool) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config") // path to look for the config file in
		v.AddConfigPath(".")        // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)                                // bin/
		v.AddConfigPath(filepath.Join(exeDir, ".."))           // repo root
		v.AddConfigPath(filepath.Join(exeDir, "..", "config")) // repo root/config
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("QUIZSOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match (QUIZSOLVER_*)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// a missing file is fine when env carries everything
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	for key, env := range legacyEnv {
		if v.GetString(key) == "" {
			if val := os.Getenv(env); val != "" {
				v.Set(key, val)
			}
		}
	}
	if port := os.Getenv("PORT"); port != "" && !v.InConfig("server.address") && os.Getenv("QUIZSOLVER_SERVER_ADDRESS") == "" {
		v.Set("server.address", ":"+port)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM = cfg.LLM.Normalize()
	cfg.Dispatch.Keywords = cfg.Dispatch.Keywords.Normalize()

	if server {
		if err := cfg.Server.Validate(); err != nil {
			return nil, err
		}
	}
	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}
	if cfg.Quiz.SessionTimeout <= 0 {
		return nil, fmt.Errorf("quiz.session_timeout must be > 0")
	}
	return &cfg, nil
}

// MustLoad is Load for command entry points; it panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return cfg
}
