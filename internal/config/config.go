package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// DefaultSystemMessage is the system prompt applied when a question carries no
// explicit prompt id.
const DefaultSystemMessage = "Your name is SpringerAI. You're a helpful assistant. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer. " +
	"When answering use markdown or any other techniques to display the content in a nice and aerated way."

// Config aggregates all service configuration.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Redis  RedisConfig
	Auth   AuthConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	redis, err := loadRedisConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Redis:  redis,
		Auth:   loadAuthConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5050"
	}

	if strings.Contains(port, ":") {
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// Model providers selectable via LLM_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// AIConfig describes the completion client and generation fallbacks.
type AIConfig struct {
	Provider string

	// OpenAI-compatible provider settings.
	APIKey  string
	BaseURL string

	// Ark provider settings.
	ArkAPIKey    string
	ArkAccessKey string
	ArkSecretKey string
	ArkBaseURL   string
	ArkRegion    string

	DefaultModel    string
	SupportedModels []string
	SystemMessage   string

	// Fallbacks applied when a question leaves generation parameters unset.
	FallbackTemperature       float32
	FallbackMaxTokens         int
	StreamFallbackTemperature float32
	StreamFallbackMaxTokens   int

	DailyChatCredit int
	MaxBrains       int
}

// ModelSettings selects the model for one generation request.
type ModelSettings struct {
	Model       string
	Temperature *float32
	MaxTokens   *int
}

// Enabled reports whether credentials for the selected provider are present.
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.ArkAPIKey != "" || (c.ArkAccessKey != "" && c.ArkSecretKey != "")
	default:
		return c.APIKey != ""
	}
}

// ModelSupported reports whether the model may be requested by users.
func (c AIConfig) ModelSupported(name string) bool {
	for _, m := range c.SupportedModels {
		if m == name {
			return true
		}
	}
	return false
}

// NewChatModel builds a chat model for the configured provider with
// per-request settings.
func (c AIConfig) NewChatModel(ctx context.Context, settings ModelSettings) (model.BaseChatModel, error) {
	switch c.Provider {
	case ProviderArk:
		if !c.Enabled() {
			return nil, fmt.Errorf("ark credentials missing: provide ARK_API_KEY or ARK_ACCESS_KEY + ARK_SECRET_KEY")
		}
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.ArkBaseURL,
			Region:      c.ArkRegion,
			APIKey:      c.ArkAPIKey,
			AccessKey:   c.ArkAccessKey,
			SecretKey:   c.ArkSecretKey,
			Model:       settings.Model,
			Temperature: settings.Temperature,
			MaxTokens:   settings.MaxTokens,
		})
	case ProviderOpenAI, "":
		if !c.Enabled() {
			return nil, fmt.Errorf("openai credentials missing: provide OPENAI_API_KEY")
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     c.BaseURL,
			APIKey:      c.APIKey,
			Model:       settings.Model,
			Temperature: settings.Temperature,
			MaxTokens:   settings.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", c.Provider)
	}
}

func loadAIConfig() (AIConfig, error) {
	fallbackTemperature, err := parseFloat32Env("FALLBACK_TEMPERATURE", 0.1)
	if err != nil {
		return AIConfig{}, err
	}

	fallbackMaxTokens, err := parseIntEnv("FALLBACK_MAX_TOKENS", 512)
	if err != nil {
		return AIConfig{}, err
	}

	streamTemperature, err := parseFloat32Env("STREAM_FALLBACK_TEMPERATURE", 0)
	if err != nil {
		return AIConfig{}, err
	}

	streamMaxTokens, err := parseIntEnv("STREAM_FALLBACK_MAX_TOKENS", 256)
	if err != nil {
		return AIConfig{}, err
	}

	dailyChatCredit, err := parseIntEnv("DAILY_CHAT_CREDIT", 100)
	if err != nil {
		return AIConfig{}, err
	}

	maxBrains, err := parseIntEnv("MAX_BRAINS", 5)
	if err != nil {
		return AIConfig{}, err
	}

	supported := strings.Split(getEnvOrDefault("SUPPORTED_MODELS", "gpt-3.5-turbo,gpt-3.5-turbo-16k,gpt-4"), ",")
	for i := range supported {
		supported[i] = strings.TrimSpace(supported[i])
	}

	return AIConfig{
		Provider:                  getEnvOrDefault("LLM_PROVIDER", ProviderOpenAI),
		APIKey:                    strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL:                   strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		ArkAPIKey:                 strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		ArkAccessKey:              strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		ArkSecretKey:              strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		ArkBaseURL:                getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:                 getEnvOrDefault("ARK_REGION", "cn-beijing"),
		DefaultModel:              getEnvOrDefault("DEFAULT_MODEL", "gpt-3.5-turbo"),
		SupportedModels:           supported,
		SystemMessage:             getEnvOrDefault("DEFAULT_SYSTEM_MESSAGE", DefaultSystemMessage),
		FallbackTemperature:       fallbackTemperature,
		FallbackMaxTokens:         fallbackMaxTokens,
		StreamFallbackTemperature: streamTemperature,
		StreamFallbackMaxTokens:   streamMaxTokens,
		DailyChatCredit:           dailyChatCredit,
		MaxBrains:                 maxBrains,
	}, nil
}

// RedisConfig describes the persistence backend. An empty Addr selects the
// in-memory store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func loadRedisConfig() (RedisConfig, error) {
	db, err := parseIntEnv("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}
	return RedisConfig{
		Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		Password: strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		DB:       db,
	}, nil
}

// AuthConfig maps static bearer keys to user emails. Format:
// API_KEYS=key1:alice@example.com,key2:bob@example.com
type AuthConfig struct {
	APIKeys map[string]string
}

func loadAuthConfig() AuthConfig {
	keys := make(map[string]string)
	raw := strings.TrimSpace(os.Getenv("API_KEYS"))
	if raw == "" {
		return AuthConfig{APIKeys: keys}
	}
	for _, pair := range strings.Split(raw, ",") {
		key, email, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || key == "" || email == "" {
			continue
		}
		keys[key] = email
	}
	return AuthConfig{APIKeys: keys}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloat32Env(key string, defaultValue float32) (float32, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return float32(val), nil
}
