// Package am ("I am") loads and validates newsdesk configuration.
package am

// Config represents the core newsdesk configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" toml:"database" json:"database" yaml:"database"`
	Server     ServerConfig     `mapstructure:"server" toml:"server" json:"server" yaml:"server"`
	Pulse      PulseConfig      `mapstructure:"pulse" toml:"pulse" json:"pulse" yaml:"pulse"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter" toml:"openrouter" json:"openrouter" yaml:"openrouter"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment" toml:"enrichment" json:"enrichment" yaml:"enrichment"`
	Articles   ArticlesConfig   `mapstructure:"articles" toml:"articles" json:"articles" yaml:"articles"`
	Auth       AuthConfig       `mapstructure:"auth" toml:"auth" json:"auth" yaml:"auth"`
}

// DatabaseConfig configures the SQLite database holding jobs and usage
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path" yaml:"path"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port           int      `mapstructure:"port" toml:"port" json:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins" json:"allowed_origins" yaml:"allowed_origins"`
}

// PulseConfig configures the job engine: worker pool, micro-batching and pacing.
// Delays are milliseconds; ItemTimeoutSeconds of 0 means no per-item timeout.
type PulseConfig struct {
	Workers             int `mapstructure:"workers" toml:"workers" json:"workers" yaml:"workers"`
	PollIntervalMS      int `mapstructure:"poll_interval_ms" toml:"poll_interval_ms" json:"poll_interval_ms" yaml:"poll_interval_ms"`
	BatchSize           int `mapstructure:"batch_size" toml:"batch_size" json:"batch_size" yaml:"batch_size"`
	ItemDelayMS         int `mapstructure:"item_delay_ms" toml:"item_delay_ms" json:"item_delay_ms" yaml:"item_delay_ms"`
	BatchDelayMS        int `mapstructure:"batch_delay_ms" toml:"batch_delay_ms" json:"batch_delay_ms" yaml:"batch_delay_ms"`
	ItemTimeoutSeconds  int `mapstructure:"item_timeout_seconds" toml:"item_timeout_seconds" json:"item_timeout_seconds" yaml:"item_timeout_seconds"`
	EnumerationPageSize int `mapstructure:"enumeration_page_size" toml:"enumeration_page_size" json:"enumeration_page_size" yaml:"enumeration_page_size"`
}

// OpenRouterConfig configures OpenRouter.ai API access
type OpenRouterConfig struct {
	APIKey         string  `mapstructure:"api_key" toml:"api_key" json:"-" yaml:"-"`
	BaseURL        string  `mapstructure:"base_url" toml:"base_url" json:"base_url" yaml:"base_url"`
	Model          string  `mapstructure:"model" toml:"model" json:"model" yaml:"model"`
	Temperature    float64 `mapstructure:"temperature" toml:"temperature" json:"temperature" yaml:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens" toml:"max_tokens" json:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`
}

// EnrichmentConfig configures the editorial-context routine.
// An empty SystemPrompt selects the built-in prompt.
type EnrichmentConfig struct {
	MaxSourceChars int    `mapstructure:"max_source_chars" toml:"max_source_chars" json:"max_source_chars" yaml:"max_source_chars"`
	SystemPrompt   string `mapstructure:"system_prompt" toml:"system_prompt" json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}

// ArticlesConfig selects the article store backend.
// Driver "sqlite3" shares database.path; "pgx" connects to Postgres via DSN.
type ArticlesConfig struct {
	Driver string `mapstructure:"driver" toml:"driver" json:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" toml:"dsn" json:"-" yaml:"-"`
}

// AuthConfig lists the actors allowed to call the HTTP API
type AuthConfig struct {
	Actors []ActorConfig `mapstructure:"actors" toml:"actors" json:"actors" yaml:"actors"`
}

// ActorConfig binds one bearer token to an actor identity.
// Declared as [[auth.actors]] tables so tokens keep their case.
type ActorConfig struct {
	ID    string `mapstructure:"id" toml:"id" json:"id" yaml:"id"`
	Token string `mapstructure:"token" toml:"token" json:"-" yaml:"-"`
	Admin bool   `mapstructure:"admin" toml:"admin" json:"admin" yaml:"admin"`
}

// Defaults and file locations
const (
	DefaultServerPort     = 8790
	DefaultDatabasePath   = "newsdesk.db"
	DefaultDirPermissions = 0755
	ConfigFileName        = "am.toml"
	EnvPrefix             = "NEWSDESK"
)
