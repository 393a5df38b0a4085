package am

import (
	"github.com/teranos/newsdesk/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	// Pulse workers: 0 = no background workers (CLI-only use), negative = invalid
	if c.Pulse.Workers < 0 {
		return errors.Newf("pulse.workers must be >= 0, got %d", c.Pulse.Workers)
	}
	if c.Pulse.BatchSize <= 0 {
		return errors.Newf("pulse.batch_size must be > 0, got %d", c.Pulse.BatchSize)
	}
	if c.Pulse.ItemDelayMS < 0 {
		return errors.Newf("pulse.item_delay_ms must be >= 0, got %d", c.Pulse.ItemDelayMS)
	}
	if c.Pulse.BatchDelayMS < 0 {
		return errors.Newf("pulse.batch_delay_ms must be >= 0, got %d", c.Pulse.BatchDelayMS)
	}
	if c.Pulse.ItemTimeoutSeconds < 0 {
		return errors.Newf("pulse.item_timeout_seconds must be >= 0, got %d", c.Pulse.ItemTimeoutSeconds)
	}
	if c.Pulse.EnumerationPageSize <= 0 {
		return errors.Newf("pulse.enumeration_page_size must be > 0, got %d", c.Pulse.EnumerationPageSize)
	}

	if c.OpenRouter.Temperature < 0 || c.OpenRouter.Temperature > 2 {
		return errors.Newf("openrouter.temperature must be between 0 and 2, got %f", c.OpenRouter.Temperature)
	}
	if c.OpenRouter.MaxTokens <= 0 {
		return errors.Newf("openrouter.max_tokens must be > 0, got %d", c.OpenRouter.MaxTokens)
	}

	if c.Enrichment.MaxSourceChars <= 0 {
		return errors.Newf("enrichment.max_source_chars must be > 0, got %d", c.Enrichment.MaxSourceChars)
	}

	switch c.Articles.Driver {
	case "sqlite3":
	case "pgx":
		if c.Articles.DSN == "" {
			return errors.WithHint(
				errors.New("articles.dsn is required when articles.driver is pgx"),
				"set NEWSDESK_ARTICLES_DSN or DATABASE_URL")
		}
	default:
		return errors.Newf("articles.driver must be sqlite3 or pgx, got %q", c.Articles.Driver)
	}

	seen := make(map[string]bool, len(c.Auth.Actors))
	for _, actor := range c.Auth.Actors {
		if actor.ID == "" {
			return errors.New("auth.actors entries need an id")
		}
		if len(actor.Token) < 16 {
			return errors.Newf("auth token for %q is too short (min 16 chars)", actor.ID)
		}
		if seen[actor.Token] {
			return errors.Newf("auth token for %q is already assigned to another actor", actor.ID)
		}
		seen[actor.Token] = true
	}

	return nil
}
