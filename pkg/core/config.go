package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for a chat client.
//
// It includes settings for:
//   - AI providers (workflow webhook, direct chat, streaming)
//   - Embedding provider (for tier-1 knowledge retrieval)
//   - Knowledge store (document retrieval backend)
//   - Goal store (OKR persistence backend)
//   - Response cache
//
// Example:
//
//	config := &core.Config{
//	    Provider: core.ProviderConfig{
//	        Default: "workflow",
//	        Workflow: &core.WorkflowConfig{
//	            Endpoint: "https://dify.example.com/v1/chat-messages",
//	            APIKey:   "app-...",
//	        },
//	    },
//	    Knowledge: core.KnowledgeConfig{
//	        Provider: "sqlite",
//	        Config:   map[string]interface{}{"db_path": "./knowledge.db"},
//	    },
//	    GoalStore: core.GoalStoreConfig{
//	        Provider: "sqlite",
//	        Config:   map[string]interface{}{"db_path": "./goals.db"},
//	    },
//	}
type Config struct {
	// Provider contains AI provider configuration.
	Provider ProviderConfig `json:"provider"`

	// Embedder contains embedding provider configuration (optional; when
	// empty, knowledge retrieval runs in text mode only).
	Embedder EmbedderConfig `json:"embedder"`

	// Knowledge contains knowledge store configuration (optional).
	Knowledge KnowledgeConfig `json:"knowledge"`

	// GoalStore contains goal store configuration.
	GoalStore GoalStoreConfig `json:"goal_store"`

	// Cache contains response cache configuration.
	Cache CacheConfig `json:"cache"`
}

// ProviderConfig contains configuration for the AI providers.
//
// At least one strategy must be configured; Default selects which one
// handles requests that do not name a provider explicitly.
type ProviderConfig struct {
	// Default is the provider dispatched when a request does not select
	// one (workflow, chat, stream).
	Default string `json:"default"`

	// TimeoutSeconds is the dispatch timeout, clamped into [30, 90].
	// Zero selects the 60s default.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// Workflow configures the blocking workflow-webhook strategy.
	Workflow *WorkflowConfig `json:"workflow,omitempty"`

	// Chat configures the direct chat-completion strategy.
	Chat *ChatConfig `json:"chat,omitempty"`

	// Stream configures the streaming workflow strategy.
	Stream *StreamConfig `json:"stream,omitempty"`
}

// WorkflowConfig configures the workflow-webhook provider.
type WorkflowConfig struct {
	// Endpoint is the webhook URL.
	Endpoint string `json:"endpoint"`

	// APIKey is the bearer token.
	APIKey string `json:"api_key"`
}

// ChatConfig configures the direct chat-completion provider.
type ChatConfig struct {
	// APIKey is the API key.
	APIKey string `json:"api_key"`

	// Model is the chat model name (e.g., "gpt-4").
	Model string `json:"model,omitempty"`

	// BaseURL overrides the API base URL for OpenAI-compatible backends.
	BaseURL string `json:"base_url,omitempty"`
}

// StreamConfig configures the streaming workflow provider.
type StreamConfig struct {
	// Endpoint is the webhook URL.
	Endpoint string `json:"endpoint"`

	// APIKey is the bearer token.
	APIKey string `json:"api_key"`
}

// EmbedderConfig contains configuration for the embedding provider.
type EmbedderConfig struct {
	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key"`

	// Model is the embedding model name (e.g., "text-embedding-3-small").
	Model string `json:"model,omitempty"`

	// BaseURL overrides the API base URL (optional).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the embedding vector dimension (e.g., 1536).
	Dimensions int `json:"dimensions,omitempty"`
}

// KnowledgeConfig contains configuration for the knowledge store.
//
// Supported providers: sqlite, postgres
type KnowledgeConfig struct {
	// Provider is the knowledge store provider name (sqlite, postgres).
	Provider string `json:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path
	// For PostgreSQL: host, port, user, password, db_name, ssl_mode
	Config map[string]interface{} `json:"config"`
}

// GoalStoreConfig contains configuration for the goal store.
//
// Supported providers: sqlite, mysql
type GoalStoreConfig struct {
	// Provider is the goal store provider name (sqlite, mysql).
	Provider string `json:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path
	// For MySQL: host, port, user, password, db_name
	Config map[string]interface{} `json:"config"`
}

// CacheConfig contains configuration for the response cache.
type CacheConfig struct {
	// Enabled turns the response cache on (default true).
	Enabled bool `json:"enabled"`

	// TTLMinutes is the entry lifetime in minutes (default 30).
	TTLMinutes int `json:"ttl_minutes,omitempty"`

	// Capacity is the soft entry limit (default 1000).
	Capacity int `json:"capacity,omitempty"`
}

// TTL returns the cache entry lifetime as a duration.
func (c *CacheConfig) TTL() time.Duration {
	if c.TTLMinutes <= 0 {
		return 0
	}
	return time.Duration(c.TTLMinutes) * time.Minute
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// It first loads a .env file if one is found (searching upward from the
// current directory), then reads:
//   - AI_PROVIDER, AI_TIMEOUT_SECONDS
//   - WORKFLOW_ENDPOINT, WORKFLOW_API_KEY (workflow and stream strategies)
//   - CHAT_API_KEY, CHAT_MODEL, CHAT_BASE_URL (chat strategy)
//   - EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMS
//   - KNOWLEDGE_PROVIDER plus KNOWLEDGE_SQLITE_PATH or KNOWLEDGE_PG_*
//   - GOAL_PROVIDER plus GOAL_SQLITE_PATH or GOAL_MYSQL_*
//   - CACHE_ENABLED, CACHE_TTL_MINUTES, CACHE_CAPACITY
//
// Returns a Config instance, or an error if loading fails.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	timeoutSeconds, _ := strconv.Atoi(os.Getenv("AI_TIMEOUT_SECONDS"))

	providerCfg := ProviderConfig{
		Default:        getEnvOrDefault("AI_PROVIDER", "workflow"),
		TimeoutSeconds: timeoutSeconds,
	}

	if endpoint := os.Getenv("WORKFLOW_ENDPOINT"); endpoint != "" {
		providerCfg.Workflow = &WorkflowConfig{
			Endpoint: endpoint,
			APIKey:   os.Getenv("WORKFLOW_API_KEY"),
		}
		// The streaming strategy talks to the same webhook.
		providerCfg.Stream = &StreamConfig{
			Endpoint: endpoint,
			APIKey:   os.Getenv("WORKFLOW_API_KEY"),
		}
	}
	if apiKey := os.Getenv("CHAT_API_KEY"); apiKey != "" {
		providerCfg.Chat = &ChatConfig{
			APIKey:  apiKey,
			Model:   getEnvOrDefault("CHAT_MODEL", "gpt-4"),
			BaseURL: os.Getenv("CHAT_BASE_URL"),
		}
	}

	dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMS", "1536"))
	embedderCfg := EmbedderConfig{
		APIKey:     os.Getenv("EMBEDDING_API_KEY"),
		Model:      getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
		Dimensions: dims,
	}

	knowledgeProvider := getEnvOrDefault("KNOWLEDGE_PROVIDER", "sqlite")
	knowledgeConfig := make(map[string]interface{})
	switch knowledgeProvider {
	case "sqlite":
		knowledgeConfig["db_path"] = getEnvOrDefault("KNOWLEDGE_SQLITE_PATH", "./knowledge.db")
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("KNOWLEDGE_PG_PORT", "5432"))
		knowledgeConfig = map[string]interface{}{
			"host":     getEnvOrDefault("KNOWLEDGE_PG_HOST", "localhost"),
			"port":     port,
			"user":     getEnvOrDefault("KNOWLEDGE_PG_USER", "postgres"),
			"password": os.Getenv("KNOWLEDGE_PG_PASSWORD"),
			"db_name":  getEnvOrDefault("KNOWLEDGE_PG_DATABASE", "aichat"),
			"ssl_mode": getEnvOrDefault("KNOWLEDGE_PG_SSLMODE", "disable"),
		}
	}

	goalProvider := getEnvOrDefault("GOAL_PROVIDER", "sqlite")
	goalConfig := make(map[string]interface{})
	switch goalProvider {
	case "sqlite":
		goalConfig["db_path"] = getEnvOrDefault("GOAL_SQLITE_PATH", "./goals.db")
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("GOAL_MYSQL_PORT", "3306"))
		goalConfig = map[string]interface{}{
			"host":     getEnvOrDefault("GOAL_MYSQL_HOST", "127.0.0.1"),
			"port":     port,
			"user":     getEnvOrDefault("GOAL_MYSQL_USER", "root"),
			"password": os.Getenv("GOAL_MYSQL_PASSWORD"),
			"db_name":  getEnvOrDefault("GOAL_MYSQL_DATABASE", "aichat"),
		}
	}

	ttlMinutes, _ := strconv.Atoi(getEnvOrDefault("CACHE_TTL_MINUTES", "30"))
	capacity, _ := strconv.Atoi(getEnvOrDefault("CACHE_CAPACITY", "1000"))

	return &Config{
		Provider: providerCfg,
		Embedder: embedderCfg,
		Knowledge: KnowledgeConfig{
			Provider: knowledgeProvider,
			Config:   knowledgeConfig,
		},
		GoalStore: GoalStoreConfig{
			Provider: goalProvider,
			Config:   goalConfig,
		},
		Cache: CacheConfig{
			Enabled:    getEnvOrDefault("CACHE_ENABLED", "true") == "true",
			TTLMinutes: ttlMinutes,
			Capacity:   capacity,
		},
	}, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewChatError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewChatError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// Validate validates the configuration.
//
// Checks that:
//   - at least one provider strategy is configured
//   - the default provider names a configured strategy
//   - the goal store provider is specified
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.Provider.Workflow == nil && c.Provider.Chat == nil && c.Provider.Stream == nil {
		return NewChatError("Validate", ErrInvalidConfig)
	}

	switch c.Provider.Default {
	case "workflow":
		if c.Provider.Workflow == nil {
			return NewChatError("Validate", ErrInvalidConfig)
		}
	case "chat":
		if c.Provider.Chat == nil {
			return NewChatError("Validate", ErrInvalidConfig)
		}
	case "stream":
		if c.Provider.Stream == nil {
			return NewChatError("Validate", ErrInvalidConfig)
		}
	default:
		return NewChatError("Validate", ErrInvalidConfig)
	}

	if c.GoalStore.Provider == "" {
		return NewChatError("Validate", ErrInvalidConfig)
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
