package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Milvus    MilvusConfig
	Ark       ArkConfig
	LLM       LLMConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Chunking  ChunkingConfig
	Indexing  IndexingConfig
}

type ServerConfig struct {
	Port         string
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type MilvusConfig struct {
	Enabled     bool
	Addr        string
	Username    string
	Password    string
	Collection  string
	VectorField string
	VectorDim   int
}

type ArkConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Region  string
}

type LLMConfig struct {
	Backend string
	BaseURL string
	Model   string
	Retries int
	Backoff time.Duration
	Timeout time.Duration
}

type RateLimitConfig struct {
	Window      time.Duration
	UploadLimit int
	AskLimit    int
}

type StorageConfig struct {
	UploadPath   string
	MaxFileSize  int64
	AllowedTypes []string
}

type ChunkingConfig struct {
	MaxChunkChars int
	OverlapChars  int
}

type IndexingConfig struct {
	Workers   int
	BatchSize int
}

var cfg *Config

func Load() (*Config, error) {
	if cfg != nil {
		return cfg, nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/notebook/")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("NOTEBOOK")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables or defaults")
	}

	cfg = &Config{
		Server: ServerConfig{
			Port:         getEnvOrDefault("SERVER_PORT", viper.GetString("server.port")),
			Mode:         getEnvOrDefault("SERVER_MODE", viper.GetString("server.mode")),
			ReadTimeout:  viper.GetDuration("server.read_timeout"),
			WriteTimeout: viper.GetDuration("server.write_timeout"),
		},
		Redis: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", viper.GetString("redis.host")),
			Port:     getEnvOrDefault("REDIS_PORT", viper.GetString("redis.port")),
			Password: getEnvOrDefault("REDIS_PASSWORD", viper.GetString("redis.password")),
			DB:       getEnvAsIntOrDefault("REDIS_DB", viper.GetInt("redis.db")),
		},
		Milvus: MilvusConfig{
			Enabled:     getEnvAsBoolOrDefault("MILVUS_ENABLED", viper.GetBool("milvus.enabled")),
			Addr:        getEnvOrDefault("MILVUS_ADDR", viper.GetString("milvus.addr")),
			Username:    getEnvOrDefault("MILVUS_USERNAME", viper.GetString("milvus.username")),
			Password:    getEnvOrDefault("MILVUS_PASSWORD", viper.GetString("milvus.password")),
			Collection:  getEnvOrDefault("MILVUS_COLLECTION", viper.GetString("milvus.collection")),
			VectorField: getEnvOrDefault("MILVUS_VECTOR_FIELD", viper.GetString("milvus.vector_field")),
			VectorDim:   getEnvAsIntOrDefault("MILVUS_VECTOR_DIM", viper.GetInt("milvus.vector_dim")),
		},
		Ark: ArkConfig{
			APIKey:  getEnvOrDefault("ARK_API_KEY", viper.GetString("ark.api_key")),
			Model:   getEnvOrDefault("ARK_MODEL", viper.GetString("ark.model")),
			BaseURL: getEnvOrDefault("ARK_BASE_URL", viper.GetString("ark.base_url")),
			Region:  getEnvOrDefault("ARK_REGION", viper.GetString("ark.region")),
		},
		LLM: LLMConfig{
			Backend: getEnvOrDefault("LLM_BACKEND", viper.GetString("llm.backend")),
			BaseURL: getEnvOrDefault("OLLAMA_URL", viper.GetString("llm.base_url")),
			Model:   getEnvOrDefault("OLLAMA_MODEL", viper.GetString("llm.model")),
			Retries: viper.GetInt("llm.retries"),
			Backoff: viper.GetDuration("llm.backoff"),
			Timeout: viper.GetDuration("llm.timeout"),
		},
		RateLimit: RateLimitConfig{
			Window:      viper.GetDuration("rate_limit.window"),
			UploadLimit: getEnvAsIntOrDefault("UPLOAD_RATE_LIMIT", viper.GetInt("rate_limit.upload_limit")),
			AskLimit:    getEnvAsIntOrDefault("ASK_RATE_LIMIT", viper.GetInt("rate_limit.ask_limit")),
		},
		Storage: StorageConfig{
			UploadPath:   getEnvOrDefault("UPLOAD_DIR", viper.GetString("storage.upload_path")),
			MaxFileSize:  getEnvAsInt64OrDefault("MAX_UPLOAD_SIZE", viper.GetInt64("storage.max_file_size")),
			AllowedTypes: viper.GetStringSlice("storage.allowed_types"),
		},
		Chunking: ChunkingConfig{
			MaxChunkChars: getEnvAsIntOrDefault("CHUNK_SIZE", viper.GetInt("chunking.max_chunk_chars")),
			OverlapChars:  getEnvAsIntOrDefault("CHUNK_OVERLAP", viper.GetInt("chunking.overlap_chars")),
		},
		Indexing: IndexingConfig{
			Workers:   viper.GetInt("indexing.workers"),
			BatchSize: viper.GetInt("indexing.batch_size"),
		},
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.mode", "development")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("milvus.enabled", false)
	viper.SetDefault("milvus.addr", "localhost:19530")
	viper.SetDefault("milvus.username", "")
	viper.SetDefault("milvus.password", "")
	viper.SetDefault("milvus.collection", "notebook_collection")
	viper.SetDefault("milvus.vector_field", "vector")
	viper.SetDefault("milvus.vector_dim", 1024)

	viper.SetDefault("ark.api_key", "")
	viper.SetDefault("ark.model", "")
	viper.SetDefault("ark.base_url", "https://ark.cn-beijing.volces.com/api/v3")
	viper.SetDefault("ark.region", "cn-beijing")

	viper.SetDefault("llm.backend", "ollama")
	viper.SetDefault("llm.base_url", "http://localhost:11434")
	viper.SetDefault("llm.model", "llama3.1")
	viper.SetDefault("llm.retries", 3)
	viper.SetDefault("llm.backoff", "1s")
	viper.SetDefault("llm.timeout", "30s")

	viper.SetDefault("rate_limit.window", "60s")
	viper.SetDefault("rate_limit.upload_limit", 5)
	viper.SetDefault("rate_limit.ask_limit", 20)

	viper.SetDefault("storage.upload_path", ".uploads")
	viper.SetDefault("storage.max_file_size", 10485760) // 10MB
	viper.SetDefault("storage.allowed_types", []string{".txt", ".md", ".pdf", ".docx"})

	viper.SetDefault("chunking.max_chunk_chars", 512)
	viper.SetDefault("chunking.overlap_chars", 50)

	viper.SetDefault("indexing.workers", 4)
	viper.SetDefault("indexing.batch_size", 64)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func Get() *Config {
	if cfg == nil {
		config, err := Load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
		cfg = config
	}
	return cfg
}
