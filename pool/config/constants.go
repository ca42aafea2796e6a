package config

import "time"

// Database and Performance Constants
const (
	// Timeouts
	DefaultQueryTimeout    = 30 * time.Second
	AllocateTimeout        = 10 * time.Second
	BatchQueryTimeout      = 60 * time.Second
	StartupTimeout         = 30 * time.Second
	ShutdownTimeout        = 15 * time.Second
	BackgroundStopTimeout  = 10 * time.Second
	NetworkDialTimeout     = 5 * time.Second
	ClientRequestTimeout   = 30 * time.Second

	// Batch processing
	DefaultInsertChunkSize = 500
	DefaultImportBatchSize = 5000
)

// Pool limits
const (
	MaxTokenLength = 255
)

// API and Rate Limiting Constants
const (
	DefaultWebHost     = "0.0.0.0"
	DefaultWebPort     = 5500
	DefaultRateLimit   = 600
	RateLimitWindow    = 1 * time.Minute
	RateLimitCacheSize = 4096

	MaxRequestSize = 16 * 1024 * 1024 // 16MB, bulk adds can be large
)

// Monitoring intervals
const (
	StatsPollInterval = 5 * time.Second
)

// Archive defaults
const (
	DefaultArchiveSchedule = "0 3 * * *"
	DefaultArchiveDir      = "exports"
	DefaultArchivePrefix   = "vmq/exports"
)
