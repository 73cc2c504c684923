package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SprintState is the lifecycle state of a sprint on an agile board.
type SprintState string

const (
	SprintActive SprintState = "active"
	SprintFuture SprintState = "future"
	SprintClosed SprintState = "closed"
)

// Sprint is a sprint as returned by the agile API and embedded in the sprint
// custom field of an issue.
type Sprint struct {
	ID    int         `json:"id"`
	Name  string      `json:"name"`
	State SprintState `json:"state"`
}

var sprintNumberPattern = regexp.MustCompile(`\d+`)

// Number extracts the first run of digits in the sprint name, e.g. 42 from
// "Cashy Sprint 42".
func (s Sprint) Number() (int, bool) {
	match := sprintNumberPattern.FindString(s.Name)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ActiveSprint returns the first sprint in the active state.
func ActiveSprint(sprints []Sprint) (Sprint, bool) {
	for _, s := range sprints {
		if s.State == SprintActive {
			return s, true
		}
	}
	return Sprint{}, false
}

var legacySprintAttr = regexp.MustCompile(`(?:^|,)([A-Za-z]+)=`)

// ParseLegacySprint reads the toString form of a sprint, e.g.
// "com.atlassian.greenhopper.service.sprint.Sprint@1f[id=77,rapidViewId=2,state=ACTIVE,name=Sprint 42,...]".
func ParseLegacySprint(s string) (Sprint, error) {
	start, end := strings.Index(s, "["), strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return Sprint{}, fmt.Errorf("unrecognised sprint %q", s)
	}
	body := s[start+1 : end]

	attrs := map[string]string{}
	locs := legacySprintAttr.FindAllStringSubmatchIndex(body, -1)
	for i, loc := range locs {
		valueEnd := len(body)
		if i+1 < len(locs) {
			valueEnd = locs[i+1][0]
		}
		attrs[body[loc[2]:loc[3]]] = body[loc[1]:valueEnd]
	}

	id, err := strconv.Atoi(attrs["id"])
	if err != nil {
		return Sprint{}, fmt.Errorf("sprint %q has no numeric id", s)
	}

	return Sprint{
		ID:    id,
		Name:  attrs["name"],
		State: SprintState(strings.ToLower(attrs["state"])),
	}, nil
}
