// Package sym defines the glyphs newsdesk prints in CLI output and attaches to logs.
// These symbols are stable across the CLI, server logs and documentation.
package sym

// Command glyphs.
const (
	AM     = "≡" // am: configuration and system settings
	Enrich = "✎" // enrich: editorial enrichment jobs
	Usage  = "¤" // usage: completion spend and token accounting
)

// System infrastructure symbols.
const (
	Pulse      = "꩜" // async jobs, pacing, orchestration
	PulseOpen  = "✿" // graceful startup with orphaned job recovery
	PulseClose = "❀" // graceful shutdown with checkpoint preservation
	DB         = "⊔" // database/storage layer
)

// StatusGlyph returns the glyph shown next to a job status in CLI tables.
func StatusGlyph(status string) string {
	switch status {
	case "queued":
		return "…"
	case "processing":
		return Pulse
	case "completed":
		return "✓"
	case "cancelled":
		return "⊘"
	case "failed":
		return "✗"
	default:
		return "?"
	}
}
