package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Pipeline configurations
	Assessment AssessmentConfig `json:"assessment"`
	Ticket     TicketConfig     `json:"ticket"`
	Monitor    MonitorConfig    `json:"monitor"`

	// Per-tenant overrides keyed by tenant ID
	Tenants map[string]TenantConfig `json:"tenants,omitempty"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// AssessmentConfig tunes feature extraction and scoring.
type AssessmentConfig struct {
	// Per-scorer and whole-call deadlines
	ScorerTimeout time.Duration `json:"scorerTimeout"`
	TotalTimeout  time.Duration `json:"totalTimeout"`

	// Max concurrent scorers
	MaxWorkers int `json:"maxWorkers"`

	// Feature normalization
	HighValueThreshold  float64 `json:"highValueThreshold"`
	MaxFrequencyPerHour float64 `json:"maxFrequencyPerHour"`
	DaytimeStartHour    int     `json:"daytimeStartHour"`
	DaytimeEndHour      int     `json:"daytimeEndHour"`
	MinHistorySamples   int     `json:"minHistorySamples"`

	// Aggregation weights per signal category
	CategoryWeights map[SignalCategory]float64 `json:"categoryWeights"`

	// Score jitter for exploration experiments. Zero disables noise; the
	// pipeline is fully deterministic by default.
	NoiseAmplitude float64 `json:"noiseAmplitude"`
	NoiseSeed      int64   `json:"noiseSeed"`
}

// TicketConfig tunes the review ticket workflow.
type TicketConfig struct {
	SLA           SLATable      `json:"sla"`
	SweepInterval time.Duration `json:"sweepInterval"`
	SweepBatch    int           `json:"sweepBatch"`
}

// MonitorConfig tunes the activity monitor.
type MonitorConfig struct {
	// Sliding windows maintained per subject
	RapidWindow    time.Duration `json:"rapidWindow"`
	DeviceWindow   time.Duration `json:"deviceWindow"`
	LocationWindow time.Duration `json:"locationWindow"`

	// Alert thresholds over window aggregates
	RapidCountThreshold     int `json:"rapidCountThreshold"`
	DeviceCyclingThreshold  int `json:"deviceCyclingThreshold"`
	LocationSpreadThreshold int `json:"locationSpreadThreshold"`

	// Alert dedup cooldown per (subject, type)
	AlertCooldown time.Duration `json:"alertCooldown"`
}

// TenantConfig overrides pipeline defaults for a single tenant. Nil or
// zero fields fall back to the global configuration.
type TenantConfig struct {
	HighValueThreshold float64                    `json:"highValueThreshold,omitempty"`
	CategoryWeights    map[SignalCategory]float64 `json:"categoryWeights,omitempty"`
	SLA                SLATable                   `json:"sla,omitempty"`
}

// HighValueFor resolves the high-value threshold for a tenant.
func (c *Config) HighValueFor(tenantID string) float64 {
	if t, ok := c.Tenants[tenantID]; ok && t.HighValueThreshold > 0 {
		return t.HighValueThreshold
	}
	return c.Assessment.HighValueThreshold
}

// WeightsFor resolves the category weight map for a tenant.
func (c *Config) WeightsFor(tenantID string) map[SignalCategory]float64 {
	if t, ok := c.Tenants[tenantID]; ok && len(t.CategoryWeights) > 0 {
		return t.CategoryWeights
	}
	return c.Assessment.CategoryWeights
}

// SLAFor resolves the SLA table for a tenant.
func (c *Config) SLAFor(tenantID string) SLATable {
	if t, ok := c.Tenants[tenantID]; ok && len(t.SLA) > 0 {
		return t.SLA
	}
	return c.Ticket.SLA
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"

	// TierEnterprise includes multi-node, SSO, etc.
	TierEnterprise Tier = "enterprise"
)

// DefaultCategoryWeights returns the stock aggregation weights.
func DefaultCategoryWeights() map[SignalCategory]float64 {
	return map[SignalCategory]float64{
		CategoryHeuristic: 0.35,
		CategoryAnomaly:   0.25,
		CategoryPattern:   0.25,
		CategoryProfile:   0.15,
		CategoryCustom:    0.10,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Assessment: AssessmentConfig{
			ScorerTimeout:       150 * time.Millisecond,
			TotalTimeout:        2 * time.Second,
			MaxWorkers:          8,
			HighValueThreshold:  5000,
			MaxFrequencyPerHour: 20,
			DaytimeStartHour:    6,
			DaytimeEndHour:      22,
			MinHistorySamples:   5,
			CategoryWeights:     DefaultCategoryWeights(),
		},
		Ticket: TicketConfig{
			SLA:           DefaultSLATable(),
			SweepInterval: 30 * time.Second,
			SweepBatch:    100,
		},
		Monitor: MonitorConfig{
			RapidWindow:             5 * time.Minute,
			DeviceWindow:            30 * time.Minute,
			LocationWindow:          24 * time.Hour,
			RapidCountThreshold:     10,
			DeviceCyclingThreshold:  3,
			LocationSpreadThreshold: 4,
			AlertCooldown:           10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
