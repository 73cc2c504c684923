// Package models defines data structures shared across the application.
package models

import (
	"encoding/json"
	"fmt"
)

// Issue is a Jira issue as returned by the v3 REST API.
type Issue struct {
	// ID is the numeric issue id as a string (e.g., "10042")
	ID string `json:"id"`

	// Key is the human readable identifier (e.g., "ISS-1")
	Key string `json:"key"`

	// Fields holds both the typed standard fields and every raw field
	Fields IssueFields `json:"fields"`
}

// Ref returns the key when present, otherwise the id.
func (i *Issue) Ref() string {
	if i.Key != "" {
		return i.Key
	}
	return i.ID
}

// IssueType is the issuetype field.
type IssueType struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl,omitempty"`
	Subtask bool   `json:"subtask"`
}

// Status is the status field.
type Status struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// User is an assignee or reporter.
type User struct {
	AccountID   string `json:"accountId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// CreatedIssue is the body Jira returns for a successful create.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self,omitempty"`
}

// SplitJob is the unit of work pushed to the split queue. Only the issue
// reference travels in the payload; the id is assigned by the queue.
type SplitJob struct {
	ID           string `json:"-"`
	IssueIDOrKey string `json:"issueIdOrKey"`
}

// NewSplitJobs maps issue keys to one job each, preserving order.
func NewSplitJobs(keys []string) []SplitJob {
	jobs := make([]SplitJob, 0, len(keys))
	for _, key := range keys {
		jobs = append(jobs, SplitJob{IssueIDOrKey: key})
	}
	return jobs
}

// IssueRow is the projection of an issue shown on the review page.
type IssueRow struct {
	Key         string  `json:"key"`
	Type        string  `json:"type"`
	TypeIconURL string  `json:"typeIconUrl,omitempty"`
	Summary     string  `json:"summary"`
	Status      string  `json:"status"`
	Assignee    string  `json:"assignee,omitempty"`
	StoryPoints float64 `json:"storyPoints"`
}

// Label is the text used for the issue in the confirmation modal.
func (r IssueRow) Label() string {
	return fmt.Sprintf("%s %s", r.Key, r.Summary)
}

// Pick copies the raw values of the given keys that are present in fields.
// Absent keys are skipped; explicit nulls are copied as null.
func Pick(fields map[string]json.RawMessage, keys ...string) map[string]any {
	picked := make(map[string]any, len(keys))
	for _, key := range keys {
		if raw, ok := fields[key]; ok {
			picked[key] = raw
		}
	}
	return picked
}
