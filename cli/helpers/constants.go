package helpers

// ContextKey is a custom type for context keys to avoid string collisions
type ContextKey string

const (
	// ConfigKey is the context key for storing configuration
	ConfigKey ContextKey = "config"
)

// OutputFormat represents the event stream format of non-interactive commands
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Values of the cli.mode setting
const (
	ModeAuto = "auto"
	ModeTUI  = "tui"
	ModeJSON = "json"
)
