package cfg

import (
	"flag"
	"strings"
	"testing"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		ClaudeAPIKey:          "sk-test-key",
		ClaudeModel:           "claude-sonnet-4-20250514",
		ExtractTimeoutSeconds: 20,
		MaxQuestions:          5,
		SessionTTLMinutes:     30,
		SweepIntervalSeconds:  60,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.ClaudeModel != "claude-sonnet-4-20250514" {
		t.Errorf("ClaudeModel = %q, want %q", c.ClaudeModel, "claude-sonnet-4-20250514")
	}
	if c.MaxQuestions != 5 {
		t.Errorf("MaxQuestions = %d, want 5", c.MaxQuestions)
	}
	if c.SessionTTLMinutes != 30 {
		t.Errorf("SessionTTLMinutes = %d, want 30", c.SessionTTLMinutes)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-claude-api-key", "sk-override",
		"-max-questions", "3",
		"-session-ttl-minutes", "15",
		"-redis-addr", "localhost:6379",
		"-api-token", "tok",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if c.DrainSeconds != 30 || c.ShutdownBudgetSeconds != 120 || c.APIPort != 9090 {
		t.Errorf("budgets/port = %d/%d/%d", c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort)
	}
	if c.ClaudeAPIKey != "sk-override" {
		t.Errorf("ClaudeAPIKey = %q", c.ClaudeAPIKey)
	}
	if c.MaxQuestions != 3 || c.SessionTTLMinutes != 15 {
		t.Errorf("MaxQuestions/SessionTTLMinutes = %d/%d", c.MaxQuestions, c.SessionTTLMinutes)
	}
	if c.RedisAddr != "localhost:6379" || c.APIToken != "tok" {
		t.Errorf("RedisAddr/APIToken = %q/%q", c.RedisAddr, c.APIToken)
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	c := validBase()
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"drain too low", func(c *Config) { c.DrainSeconds = 0 }, "DRAIN_SECONDS"},
		{"drain too high", func(c *Config) { c.DrainSeconds = 301 }, "DRAIN_SECONDS"},
		{"budget too low", func(c *Config) { c.ShutdownBudgetSeconds = 0 }, "SHUTDOWN_BUDGET_SECONDS"},
		{"budget not above drain", func(c *Config) { c.ShutdownBudgetSeconds = c.DrainSeconds }, "must be greater than"},
		{"bad port", func(c *Config) { c.APIPort = 0 }, "HTTP_PORT"},
		{"port too high", func(c *Config) { c.APIPort = 70000 }, "HTTP_PORT"},
		{"missing api key", func(c *Config) { c.ClaudeAPIKey = "" }, "CLAUDE_API_KEY"},
		{"missing model", func(c *Config) { c.ClaudeModel = "" }, "CLAUDE_MODEL"},
		{"bad extract timeout", func(c *Config) { c.ExtractTimeoutSeconds = 0 }, "EXTRACT_TIMEOUT_SECONDS"},
		{"bad max questions", func(c *Config) { c.MaxQuestions = 0 }, "MAX_QUESTIONS"},
		{"max questions too high", func(c *Config) { c.MaxQuestions = 21 }, "MAX_QUESTIONS"},
		{"bad session ttl", func(c *Config) { c.SessionTTLMinutes = 0 }, "SESSION_TTL_MINUTES"},
		{"bad sweep interval", func(c *Config) { c.SweepIntervalSeconds = 0 }, "SWEEP_INTERVAL_SECONDS"},
		{
			"both stores configured",
			func(c *Config) {
				c.DatabaseURL = "postgres://localhost/intake"
				c.RedisAddr = "localhost:6379"
			},
			"mutually exclusive",
		},
	}

	for _, tt := range cases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := validBase()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("err = %q, want to contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	t.Parallel()

	c := validBase()
	c.ClaudeAPIKey = ""
	c.APIPort = 0

	err := c.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"CLAUDE_API_KEY", "HTTP_PORT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("err = %q, want to contain %q", err, want)
		}
	}
}
