package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileHeader is written above the generated settings.
const fileHeader = `# sprintsplit configuration
# JIRA credentials are read from JIRA_URL, JIRA_USERNAME and JIRA_TOKEN.
# Any key can be overridden with SPRINTSPLIT_<SECTION>_<KEY>, e.g. SPRINTSPLIT_SPLIT_BOARD_ID.

`

// fileConfig is the on-disk layout. Durations are written as strings such as "5m0s"
// and the token is never written.
type fileConfig struct {
	Jira struct {
		URL      string `yaml:"url,omitempty"`
		Username string `yaml:"username,omitempty"`
		Auth     string `yaml:"auth"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"jira"`
	Split struct {
		BoardID           int      `yaml:"board_id"`
		DoneTransitionID  string   `yaml:"done_transition_id"`
		SprintField       string   `yaml:"sprint_field"`
		StoryPointField   string   `yaml:"story_point_field"`
		PullRequestStatus string   `yaml:"pull_request_status"`
		PullRequestStep   float64  `yaml:"pull_request_step"`
		QAStep            float64  `yaml:"qa_step"`
		LinkTypeID        string   `yaml:"link_type_id"`
		ReviewStatuses    []string `yaml:"review_statuses"`
		MaxSearchResults  int      `yaml:"max_search_results"`
	} `yaml:"split"`
	Queue struct {
		Path         string `yaml:"path"`
		Key          string `yaml:"key"`
		Workers      int    `yaml:"workers"`
		PollInterval string `yaml:"poll_interval"`
		Lease        string `yaml:"lease"`
		JobTimeout   string `yaml:"job_timeout"`
	} `yaml:"queue"`
	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Marshal renders c as a YAML config file that Load accepts.
func Marshal(c *Config) ([]byte, error) {
	var f fileConfig

	f.Jira.URL = c.Jira.URL
	f.Jira.Username = c.Jira.Username
	f.Jira.Auth = c.Jira.Auth
	f.Jira.Timeout = c.Jira.Timeout.String()

	f.Split.BoardID = c.Split.BoardID
	f.Split.DoneTransitionID = c.Split.DoneTransitionID
	f.Split.SprintField = c.Split.SprintField
	f.Split.StoryPointField = c.Split.StoryPointField
	f.Split.PullRequestStatus = c.Split.PullRequestStatus
	f.Split.PullRequestStep = c.Split.PullRequestStep
	f.Split.QAStep = c.Split.QAStep
	f.Split.LinkTypeID = c.Split.LinkTypeID
	f.Split.ReviewStatuses = c.Split.ReviewStatuses
	f.Split.MaxSearchResults = c.Split.MaxSearchResults

	f.Queue.Path = c.Queue.Path
	f.Queue.Key = c.Queue.Key
	f.Queue.Workers = c.Queue.Workers
	f.Queue.PollInterval = c.Queue.PollInterval.String()
	f.Queue.Lease = c.Queue.Lease.String()
	f.Queue.JobTimeout = c.Queue.JobTimeout.String()

	f.Server.Addr = c.Server.Addr
	f.Server.AllowedOrigins = c.Server.AllowedOrigins
	if f.Server.AllowedOrigins == nil {
		f.Server.AllowedOrigins = []string{}
	}

	f.Log.Level = c.Log.Level
	f.Log.Format = c.Log.Format

	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return append([]byte(fileHeader), data...), nil
}

// WriteFile writes c to path. An existing file is only replaced when force is set.
func WriteFile(path string, c *Config, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	data, err := Marshal(c)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
