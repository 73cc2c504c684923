package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// IssueFields exposes the standard fields used by the split workflow and keeps
// every field in Raw, so deployment specific custom fields can be read by name.
type IssueFields struct {
	Summary   string    `json:"summary"`
	Status    Status    `json:"status"`
	IssueType IssueType `json:"issuetype"`
	Assignee  *User     `json:"assignee"`
	Labels    []string  `json:"labels"`

	Raw map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the typed fields and retains the raw field map.
func (f *IssueFields) UnmarshalJSON(data []byte) error {
	type typed IssueFields
	var t typed
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = IssueFields(t)
	f.Raw = raw
	return nil
}

// MarshalJSON writes the raw field map, overlaid with the typed fields.
func (f IssueFields) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Raw)+5)
	for k, v := range f.Raw {
		out[k] = v
	}
	out["summary"] = f.Summary
	out["status"] = f.Status
	out["issuetype"] = f.IssueType
	out["assignee"] = f.Assignee
	out["labels"] = f.Labels
	return json.Marshal(out)
}

// IsNull reports whether the named field is absent or explicitly null.
func (f *IssueFields) IsNull(name string) bool {
	raw, ok := f.Raw[name]
	return !ok || isNull(raw)
}

// StoryPoints returns the numeric value of the story point field. The second
// result is false when the field is missing or null; callers pick the fallback.
func (f *IssueFields) StoryPoints(field string) (float64, bool) {
	if f.IsNull(field) {
		return 0, false
	}

	raw := f.Raw[field]
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}

	// Some instances store numbers as strings.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n, true
		}
	}

	return 0, false
}

// Sprints decodes the sprint custom field. A missing or null field is an empty
// list. Entries may be objects or the legacy string form some Server
// instances still return.
func (f *IssueFields) Sprints(field string) ([]Sprint, error) {
	if f.IsNull(field) {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(f.Raw[field], &entries); err != nil {
		return nil, fmt.Errorf("failed to decode sprint field %s: %w", field, err)
	}

	sprints := make([]Sprint, 0, len(entries))
	for _, entry := range entries {
		var legacy string
		if err := json.Unmarshal(entry, &legacy); err == nil {
			sprint, err := ParseLegacySprint(legacy)
			if err != nil {
				return nil, fmt.Errorf("failed to decode sprint field %s: %w", field, err)
			}
			sprints = append(sprints, sprint)
			continue
		}

		var sprint Sprint
		if err := json.Unmarshal(entry, &sprint); err != nil {
			return nil, fmt.Errorf("failed to decode sprint field %s: %w", field, err)
		}
		sprints = append(sprints, sprint)
	}
	return sprints, nil
}

// Description decodes the ADF description. The second result is false when
// the issue has no description.
func (f *IssueFields) Description() (*Document, bool, error) {
	if f.IsNull("description") {
		return nil, false, nil
	}

	var doc Document
	if err := json.Unmarshal(f.Raw["description"], &doc); err != nil {
		return nil, false, fmt.Errorf("failed to decode description: %w", err)
	}
	return &doc, true, nil
}

// AssigneeName is the assignee display name, empty when unassigned.
func (f *IssueFields) AssigneeName() string {
	if f.Assignee == nil {
		return ""
	}
	return f.Assignee.DisplayName
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
