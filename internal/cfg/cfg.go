package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config holds the service configuration. Fields are bound to flags and
// filled from INTAKE_-prefixed environment variables at startup.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	ClaudeAPIKey          string
	ClaudeModel           string
	ExtractTimeoutSeconds int
	MaxQuestions          int
	SessionTTLMinutes     int
	SweepIntervalSeconds  int
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	SlackWebhookURL       string
	APIToken              string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.IntVar(&c.ExtractTimeoutSeconds, "extract-timeout-seconds", 20, "per-turn budget for the symptom extraction call (1..120)")
	fs.IntVar(&c.MaxQuestions, "max-questions", 5, "clarification question cap per session (1..20)")
	fs.IntVar(&c.SessionTTLMinutes, "session-ttl-minutes", 30, "idle minutes before a session is swept (1..1440)")
	fs.IntVar(&c.SweepIntervalSeconds, "sweep-interval-seconds", 60, "seconds between expired-session sweeps (1..3600)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = no Postgres store)")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "Redis address for the session store (empty = in-memory store)")
	fs.StringVar(&c.RedisPassword, "redis-password", "", "Redis password (optional)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for emergency escalations")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API requests (empty = no auth)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Claude API key is required for LLM access
	if c.ClaudeAPIKey == "" {
		errs = append(errs, errors.New("CLAUDE_API_KEY is required"))
	}

	// Claude model is required for LLM access
	if c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required"))
	}

	if c.ExtractTimeoutSeconds <= 0 || c.ExtractTimeoutSeconds > 120 {
		errs = append(errs, fmt.Errorf("invalid EXTRACT_TIMEOUT_SECONDS %d (must be 1..120)", c.ExtractTimeoutSeconds))
	}

	if c.MaxQuestions <= 0 || c.MaxQuestions > 20 {
		errs = append(errs, fmt.Errorf("invalid MAX_QUESTIONS %d (must be 1..20)", c.MaxQuestions))
	}

	if c.SessionTTLMinutes <= 0 || c.SessionTTLMinutes > 1440 {
		errs = append(errs, fmt.Errorf("invalid SESSION_TTL_MINUTES %d (must be 1..1440)", c.SessionTTLMinutes))
	}

	if c.SweepIntervalSeconds <= 0 || c.SweepIntervalSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid SWEEP_INTERVAL_SECONDS %d (must be 1..3600)", c.SweepIntervalSeconds))
	}

	// One authoritative store at a time
	if c.DatabaseURL != "" && c.RedisAddr != "" {
		errs = append(errs, errors.New("DATABASE_URL and REDIS_ADDR are mutually exclusive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
