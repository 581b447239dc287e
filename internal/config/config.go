// Package config loads semem's runtime configuration from the environment,
// following the teacher's getEnv/getEnvInt/getEnvBool helper pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// StorageBackend selects the Graph Store variant.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageFile   StorageBackend = "file"
	StorageSPARQL StorageBackend = "sparql"
)

// Config holds all engine configuration, populated from the environment.
type Config struct {
	LogLevel string

	// Model selection
	DefaultChatModel      string
	DefaultEmbeddingModel string
	EmbeddingDimension    int

	// Storage
	StorageBackend    StorageBackend
	SPARQLQueryURL    string
	SPARQLUpdateURL   string
	SPARQLUsername    string
	SPARQLPassword    string
	SPARQLBatchSize   int
	SPARQLMaxConns    int
	SnapshotPath      string

	// Caches
	EmbeddingCacheSize int
	EmbeddingCacheTTL  time.Duration
	SelectionCacheSize int
	SelectionCacheTTL  time.Duration
	StoreReadCacheSize int
	StoreReadCacheTTL  time.Duration

	// Memory store dynamics
	DecayLambda          float64
	DecayFactorCap       float64
	DecayFactorFloor     float64
	PromotionThreshold   int
	MaintenanceInterval  time.Duration
	SpreadDepth          int
	SpreadDecayPerHop    float64
	RetrievalAlpha       float64

	// Dual retriever weights
	ExactWeight       float64
	SimilarityWeight  float64
	PPRWeight         float64
	CombinedLimit     int

	// Graph algorithms
	PPRAlpha       float64
	PPRIterations  int
	PPRIterCap     int
	LeidenResolution float64
	LeidenMinCommunity int

	// Vector index (HNSW)
	HNSWM              int
	HNSWEfConstruction int
	HNSWEfSearch       int

	// ZPT defaults
	ZPTDefaultZoom      string
	ZPTDefaultTilt      string
	ZPTDefaultMaxTokens int

	// Resilience
	ProviderMaxAttempts int
	ProviderBaseBackoff time.Duration
	CircuitBreakerTrips uint32

	// Ingestion pipeline
	IngestBatchSize           int
	AugmentKCoreThreshold     int
	EnrichSimilarityThreshold float64
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DefaultChatModel:      getEnv("DEFAULT_CHAT_MODEL", "llama3"),
		DefaultEmbeddingModel: getEnv("DEFAULT_EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDimension:    getEnvInt("EMBEDDING_DIMENSION", 768),

		StorageBackend:  StorageBackend(getEnv("STORAGE_BACKEND", string(StorageMemory))),
		SPARQLQueryURL:  getEnv("SPARQL_QUERY_URL", ""),
		SPARQLUpdateURL: getEnv("SPARQL_UPDATE_URL", ""),
		SPARQLUsername:  getEnv("SPARQL_USERNAME", ""),
		SPARQLPassword:  getEnv("SPARQL_PASSWORD", ""),
		SPARQLBatchSize: getEnvInt("SPARQL_BATCH_SIZE", 100),
		SPARQLMaxConns:  getEnvInt("SPARQL_MAX_CONNS", 8),
		SnapshotPath:    getEnv("SNAPSHOT_PATH", "semem-graph.json"),

		EmbeddingCacheSize: getEnvInt("EMBEDDING_CACHE_SIZE", 10000),
		EmbeddingCacheTTL:  getEnvDuration("EMBEDDING_CACHE_TTL", time.Hour),
		SelectionCacheSize: getEnvInt("SELECTION_CACHE_SIZE", 2000),
		SelectionCacheTTL:  getEnvDuration("SELECTION_CACHE_TTL", 5*time.Minute),
		StoreReadCacheSize: getEnvInt("STORE_READ_CACHE_SIZE", 5000),
		StoreReadCacheTTL:  getEnvDuration("STORE_READ_CACHE_TTL", 30*time.Second),

		DecayLambda:         getEnvFloat("DECAY_LAMBDA", 1e-4),
		DecayFactorCap:      getEnvFloat("DECAY_FACTOR_CAP", 100.0),
		DecayFactorFloor:    getEnvFloat("DECAY_FACTOR_FLOOR", 1e-300),
		PromotionThreshold:  getEnvInt("PROMOTION_THRESHOLD", 10),
		MaintenanceInterval: getEnvDuration("MAINTENANCE_INTERVAL", 10*time.Minute),
		SpreadDepth:         getEnvInt("SPREAD_DEPTH", 2),
		SpreadDecayPerHop:   getEnvFloat("SPREAD_DECAY_PER_HOP", 0.5),
		RetrievalAlpha:      getEnvFloat("RETRIEVAL_ALPHA", 0.3),

		ExactWeight:      getEnvFloat("DUAL_EXACT_WEIGHT", 0.4),
		SimilarityWeight: getEnvFloat("DUAL_SIMILARITY_WEIGHT", 0.4),
		PPRWeight:        getEnvFloat("DUAL_PPR_WEIGHT", 0.2),
		CombinedLimit:    getEnvInt("DUAL_COMBINED_LIMIT", 50),

		PPRAlpha:           getEnvFloat("PPR_ALPHA", 0.15),
		PPRIterations:      getEnvInt("PPR_ITERATIONS_SHALLOW", 2),
		PPRIterCap:         getEnvInt("PPR_ITERATION_CAP", 100),
		LeidenResolution:   getEnvFloat("LEIDEN_RESOLUTION", 1.0),
		LeidenMinCommunity: getEnvInt("LEIDEN_MIN_COMMUNITY_SIZE", 2),

		HNSWM:              getEnvInt("HNSW_M", 16),
		HNSWEfConstruction: getEnvInt("HNSW_EF_CONSTRUCTION", 200),
		HNSWEfSearch:       getEnvInt("HNSW_EF_SEARCH", 64),

		ZPTDefaultZoom:      getEnv("ZPT_DEFAULT_ZOOM", "unit"),
		ZPTDefaultTilt:      getEnv("ZPT_DEFAULT_TILT", "keywords"),
		ZPTDefaultMaxTokens: getEnvInt("ZPT_DEFAULT_MAX_TOKENS", 4000),

		ProviderMaxAttempts: getEnvInt("PROVIDER_MAX_ATTEMPTS", 5),
		ProviderBaseBackoff: getEnvDuration("PROVIDER_BASE_BACKOFF", 200*time.Millisecond),
		CircuitBreakerTrips: uint32(getEnvInt("CIRCUIT_BREAKER_TRIPS", 5)),

		IngestBatchSize:           getEnvInt("INGEST_BATCH_SIZE", 200),
		AugmentKCoreThreshold:     getEnvInt("AUGMENT_KCORE_THRESHOLD", 2),
		EnrichSimilarityThreshold: getEnvFloat("ENRICH_SIMILARITY_THRESHOLD", 0.85),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants that defaults alone can't guarantee.
func (c *Config) Validate() error {
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("config: EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension)
	}
	switch c.StorageBackend {
	case StorageMemory, StorageFile, StorageSPARQL:
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.StorageBackend == StorageSPARQL && (c.SPARQLQueryURL == "" || c.SPARQLUpdateURL == "") {
		return fmt.Errorf("config: STORAGE_BACKEND=sparql requires SPARQL_QUERY_URL and SPARQL_UPDATE_URL")
	}
	sum := c.ExactWeight + c.SimilarityWeight + c.PPRWeight
	if sum <= 0 {
		return fmt.Errorf("config: dual retriever weights must sum to a positive value, got %.3f", sum)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
