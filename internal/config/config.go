package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"paperchat"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"paperchat"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	EmbeddingModel   string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	GenerationModel  string `envconfig:"GENERATION_MODEL" default:"gemini-1.5-flash"`
	LlamaCloudAPIKey string `envconfig:"LLAMA_CLOUD_API_KEY"`
	LlamaCloudURL    string `envconfig:"LLAMA_CLOUD_URL" default:"https://api.cloud.llamaindex.ai"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	BlobDir         string `envconfig:"BLOB_DIR" default:"./data/blobs"`
	MigrationPath   string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Retrieval
	ChunkTargetChars  int     `envconfig:"CHUNK_TARGET_CHARS" default:"2000"`
	ChunkOverlapChars int     `envconfig:"CHUNK_OVERLAP_CHARS" default:"300"`
	ChatTopK          int     `envconfig:"CHAT_TOP_K" default:"8"`
	SuggestionTopK    int     `envconfig:"SUGGESTION_TOP_K" default:"10"`
	MinSimilarity     float32 `envconfig:"MIN_SIMILARITY" default:"0.3"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may also be set in the shell, so a missing .env is fine.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.ChunkOverlapChars >= c.ChunkTargetChars {
		return fmt.Errorf("%w: CHUNK_OVERLAP_CHARS must be smaller than CHUNK_TARGET_CHARS", ErrMissingRequired)
	}
	return nil
}
