// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable derived from a config key,
// e.g. split.board_id is read from SPRINTSPLIT_SPLIT_BOARD_ID.
const EnvPrefix = "SPRINTSPLIT"

// Config holds all configuration parameters for the application.
type Config struct {
	Jira   JiraConfig   `mapstructure:"jira"`
	Split  SplitConfig  `mapstructure:"split"`
	Queue  QueueConfig  `mapstructure:"queue"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Token    string `mapstructure:"token"`
	// Auth is "basic" (username + API token) or "bearer" (personal access token).
	Auth string `mapstructure:"auth"`
	// Timeout bounds every HTTP request to Jira.
	Timeout time.Duration `mapstructure:"timeout"`
}

// SplitConfig holds the per-deployment constants of the split workflow.
type SplitConfig struct {
	BoardID           int      `mapstructure:"board_id"`
	DoneTransitionID  string   `mapstructure:"done_transition_id"`
	SprintField       string   `mapstructure:"sprint_field"`
	StoryPointField   string   `mapstructure:"story_point_field"`
	PullRequestStatus string   `mapstructure:"pull_request_status"`
	PullRequestStep   float64  `mapstructure:"pull_request_step"`
	QAStep            float64  `mapstructure:"qa_step"`
	LinkTypeID        string   `mapstructure:"link_type_id"`
	ReviewStatuses    []string `mapstructure:"review_statuses"`
	MaxSearchResults  int      `mapstructure:"max_search_results"`
}

// QueueConfig holds the split job queue settings.
type QueueConfig struct {
	Path         string        `mapstructure:"path"`
	Key          string        `mapstructure:"key"`
	Workers      int           `mapstructure:"workers"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Lease        time.Duration `mapstructure:"lease"`
	// JobTimeout bounds one handler run. It must be shorter than Lease so a
	// job still being handled is never redelivered.
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

// ServerConfig holds the review page HTTP settings.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Jira: JiraConfig{
			Auth:    "basic",
			Timeout: 30 * time.Second,
		},
		Split: SplitConfig{
			BoardID:           2,
			DoneTransitionID:  "51",
			SprintField:       "customfield_10020",
			StoryPointField:   "customfield_10024",
			PullRequestStatus: "Pull Request",
			PullRequestStep:   1,
			QAStep:            0.5,
			LinkTypeID:        "10500",
			ReviewStatuses:    []string{"Pull Request", "QA", "QA-DEV"},
			MaxSearchResults:  999,
		},
		Queue: QueueConfig{
			Path:         "sprintsplit.db",
			Key:          "split-tasks-queue",
			Workers:      2,
			PollInterval: time.Second,
			Lease:        5 * time.Minute,
			JobTimeout:   4 * time.Minute,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load initializes configuration from defaults, an optional config file and
// environment variables, in increasing order of precedence. The result is
// validated before it is returned.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The unprefixed JIRA_* names are kept for existing deployments.
	v.BindEnv("jira.url", EnvPrefix+"_JIRA_URL", "JIRA_URL")
	v.BindEnv("jira.username", EnvPrefix+"_JIRA_USERNAME", "JIRA_USERNAME")
	v.BindEnv("jira.token", EnvPrefix+"_JIRA_TOKEN", "JIRA_TOKEN")
	v.BindEnv("log.level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("jira.url", d.Jira.URL)
	v.SetDefault("jira.username", d.Jira.Username)
	v.SetDefault("jira.token", d.Jira.Token)
	v.SetDefault("jira.auth", d.Jira.Auth)
	v.SetDefault("jira.timeout", d.Jira.Timeout)

	v.SetDefault("split.board_id", d.Split.BoardID)
	v.SetDefault("split.done_transition_id", d.Split.DoneTransitionID)
	v.SetDefault("split.sprint_field", d.Split.SprintField)
	v.SetDefault("split.story_point_field", d.Split.StoryPointField)
	v.SetDefault("split.pull_request_status", d.Split.PullRequestStatus)
	v.SetDefault("split.pull_request_step", d.Split.PullRequestStep)
	v.SetDefault("split.qa_step", d.Split.QAStep)
	v.SetDefault("split.link_type_id", d.Split.LinkTypeID)
	v.SetDefault("split.review_statuses", d.Split.ReviewStatuses)
	v.SetDefault("split.max_search_results", d.Split.MaxSearchResults)

	v.SetDefault("queue.path", d.Queue.Path)
	v.SetDefault("queue.key", d.Queue.Key)
	v.SetDefault("queue.workers", d.Queue.Workers)
	v.SetDefault("queue.poll_interval", d.Queue.PollInterval)
	v.SetDefault("queue.lease", d.Queue.Lease)
	v.SetDefault("queue.job_timeout", d.Queue.JobTimeout)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate ensures that every split, queue and logging setting is usable.
// All problems are reported at once.
func (c *Config) Validate() error {
	var problems []string

	s := c.Split
	if s.BoardID <= 0 {
		problems = append(problems, "split.board_id must be positive")
	}
	if s.DoneTransitionID == "" {
		problems = append(problems, "split.done_transition_id is required")
	}
	if s.SprintField == "" {
		problems = append(problems, "split.sprint_field is required")
	}
	if s.StoryPointField == "" {
		problems = append(problems, "split.story_point_field is required")
	}
	if s.PullRequestStatus == "" {
		problems = append(problems, "split.pull_request_status is required")
	}
	if s.PullRequestStep <= 0 {
		problems = append(problems, "split.pull_request_step must be positive")
	}
	if s.QAStep <= 0 {
		problems = append(problems, "split.qa_step must be positive")
	}
	if s.LinkTypeID == "" {
		problems = append(problems, "split.link_type_id is required")
	}
	if len(s.ReviewStatuses) == 0 {
		problems = append(problems, "split.review_statuses must not be empty")
	}
	if s.MaxSearchResults <= 0 {
		problems = append(problems, "split.max_search_results must be positive")
	}

	q := c.Queue
	if q.Path == "" {
		problems = append(problems, "queue.path is required")
	}
	if q.Key == "" {
		problems = append(problems, "queue.key is required")
	}
	if q.Workers <= 0 {
		problems = append(problems, "queue.workers must be positive")
	}
	if q.PollInterval <= 0 {
		problems = append(problems, "queue.poll_interval must be positive")
	}
	if q.Lease <= 0 {
		problems = append(problems, "queue.lease must be positive")
	}
	if q.JobTimeout <= 0 || q.JobTimeout >= q.Lease {
		problems = append(problems, "queue.job_timeout must be positive and shorter than queue.lease")
	}

	if c.Jira.Timeout <= 0 {
		problems = append(problems, "jira.timeout must be positive")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	if config.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}

	switch config.Jira.Auth {
	case "basic":
		if config.Jira.Username == "" {
			missingVars = append(missingVars, "JIRA_USERNAME")
		}
	case "bearer":
	default:
		return fmt.Errorf("unsupported jira auth %q, expected basic or bearer", config.Jira.Auth)
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
