package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)

	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
	})

	// Pulse (job engine) defaults
	v.SetDefault("pulse.workers", 2)
	v.SetDefault("pulse.poll_interval_ms", 2000)
	v.SetDefault("pulse.batch_size", 5)
	v.SetDefault("pulse.item_delay_ms", 1000)  // Completion service rate limits
	v.SetDefault("pulse.batch_delay_ms", 2000) // Breathing room between checkpoints
	v.SetDefault("pulse.item_timeout_seconds", 0)
	v.SetDefault("pulse.enumeration_page_size", 500)

	// OpenRouter defaults
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("openrouter.temperature", 0.2)
	v.SetDefault("openrouter.max_tokens", 1000)
	v.SetDefault("openrouter.timeout_seconds", 120)

	v.SetDefault("enrichment.max_source_chars", 6000)

	v.SetDefault("articles.driver", "sqlite3")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("openrouter.api_key", "NEWSDESK_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	v.BindEnv("articles.dsn", "NEWSDESK_ARTICLES_DSN", "DATABASE_URL")
	v.BindEnv("database.path", "NEWSDESK_DATABASE_PATH")
}

// IsAdmin reports whether actorID is configured with the admin role
func (c *Config) IsAdmin(actorID string) bool {
	for _, actor := range c.Auth.Actors {
		if actor.ID == actorID {
			return actor.Admin
		}
	}
	return false
}
