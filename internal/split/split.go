// Package split implements the split workflow: an over-sized issue keeps one
// split step of story points while a clone carrying the remainder is created,
// closed and linked back to it.
package split

import (
	"context"
	"fmt"

	"github.com/danielolaszy/sprintsplit/internal/config"
	"github.com/danielolaszy/sprintsplit/internal/logging"
	"github.com/danielolaszy/sprintsplit/pkg/models"
)

// SummarySuffix is appended to the summary of every clone.
const SummarySuffix = " - SPLIT"

// CloneFields are copied verbatim from the original issue to the clone.
var CloneFields = []string{
	"assignee",
	"issuetype",
	"project",
	"summary",
	"reporter",
	"parent",
	"labels",
}

// Backend is the subset of the issue tracker the split workflow mutates.
type Backend interface {
	GetIssue(ctx context.Context, issueIDOrKey string) (*models.Issue, error)
	CreateIssue(ctx context.Context, fields map[string]any) (*models.CreatedIssue, error)
	TransitionIssue(ctx context.Context, issueIDOrKey, transitionID string) error
	CreateIssueLink(ctx context.Context, linkTypeID, inwardKey, outwardKey string) error
	UpdateIssue(ctx context.Context, issueID string, fields map[string]any) error
}

// Result describes one split. CloneKey is empty when no clone was needed.
type Result struct {
	IssueKey  string
	Status    string
	Previous  float64
	Step      float64
	Remainder float64
	Cloned    bool
	CloneKey  string
}

// Splitter runs the split workflow against a backend.
type Splitter struct {
	backend Backend
	cfg     config.SplitConfig
}

// New creates a Splitter for the given deployment settings.
func New(backend Backend, cfg config.SplitConfig) *Splitter {
	return &Splitter{backend: backend, cfg: cfg}
}

// Step returns the story points deducted for an issue in the given status.
func Step(cfg config.SplitConfig, status string) float64 {
	if status == cfg.PullRequestStatus {
		return cfg.PullRequestStep
	}
	return cfg.QAStep
}

// Plan computes the split amounts for an issue without touching the backend.
// Missing story points count as zero.
func Plan(cfg config.SplitConfig, issue *models.Issue) Result {
	points, ok := issue.Fields.StoryPoints(cfg.StoryPointField)
	if !ok {
		points = 0
	}

	step := Step(cfg, issue.Fields.Status.Name)
	remainder := points - step

	return Result{
		IssueKey:  issue.Ref(),
		Status:    issue.Fields.Status.Name,
		Previous:  points,
		Step:      step,
		Remainder: remainder,
		Cloned:    remainder > 0,
	}
}

// Splittable reports whether splitting the issue would create a clone.
func Splittable(cfg config.SplitConfig, issue *models.Issue) bool {
	return Plan(cfg, issue).Cloned
}

// Preview fetches the issue and returns the planned split without mutating anything.
func (s *Splitter) Preview(ctx context.Context, issueIDOrKey string) (*Result, error) {
	issue, err := s.backend.GetIssue(ctx, issueIDOrKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue %s: %w", issueIDOrKey, err)
	}

	result := Plan(s.cfg, issue)
	return &result, nil
}

// Split performs the full workflow for one issue: fetch, compute, then clone,
// transition and link when the remainder is positive, and finally set the
// original's story points to the step. A failure aborts the remaining steps;
// a clone created before the failure is left in place.
func (s *Splitter) Split(ctx context.Context, issueIDOrKey string) (*Result, error) {
	issue, err := s.backend.GetIssue(ctx, issueIDOrKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue %s: %w", issueIDOrKey, err)
	}

	result := Plan(s.cfg, issue)

	if result.Cloned {
		fields, err := s.cloneFields(issue, result.Remainder)
		if err != nil {
			return nil, err
		}

		cloned, err := s.backend.CreateIssue(ctx, fields)
		if err != nil {
			return nil, fmt.Errorf("failed to clone issue %s: %w", result.IssueKey, err)
		}
		result.CloneKey = cloned.Key
		if result.CloneKey == "" {
			result.CloneKey = cloned.ID
		}

		logging.Debug("created clone",
			"issue", result.IssueKey,
			"clone", result.CloneKey,
			"story_points", result.Remainder)

		if err := s.backend.TransitionIssue(ctx, cloned.ID, s.cfg.DoneTransitionID); err != nil {
			return nil, fmt.Errorf("failed to close clone %s: %w", result.CloneKey, err)
		}

		if err := s.backend.CreateIssueLink(ctx, s.cfg.LinkTypeID, issue.Key, result.CloneKey); err != nil {
			return nil, fmt.Errorf("failed to link clone %s to %s: %w", result.CloneKey, result.IssueKey, err)
		}
	}

	update := map[string]any{
		s.cfg.StoryPointField: result.Step,
	}
	if err := s.backend.UpdateIssue(ctx, issue.ID, update); err != nil {
		return nil, fmt.Errorf("failed to update story points of %s: %w", result.IssueKey, err)
	}

	return &result, nil
}

// cloneFields builds the create payload for the clone of issue.
func (s *Splitter) cloneFields(issue *models.Issue, remainder float64) (map[string]any, error) {
	fields := models.Pick(issue.Fields.Raw, CloneFields...)

	fields["summary"] = issue.Fields.Summary + SummarySuffix
	fields[s.cfg.StoryPointField] = remainder

	// Subtasks follow their parent's sprint, so the field is never set on them.
	if !issue.Fields.IssueType.Subtask {
		sprints, err := issue.Fields.Sprints(s.cfg.SprintField)
		if err != nil {
			logging.Warn("unreadable sprint field, cloning without sprint",
				"issue", issue.Ref(),
				"field", s.cfg.SprintField,
				"error", err)
		}
		if active, ok := models.ActiveSprint(sprints); ok {
			fields[s.cfg.SprintField] = active.ID
		}
	}

	description, ok, err := issue.Fields.Description()
	if err != nil {
		return nil, err
	}
	if ok {
		fields["description"] = description.WithoutMedia()
	}

	return fields, nil
}

// Handler adapts the splitter to the queue consumer. Errors are returned so the
// consumer can mark the job failed; they are never retried.
func Handler(s *Splitter) func(ctx context.Context, job models.SplitJob) error {
	return func(ctx context.Context, job models.SplitJob) error {
		log := logging.With("job", job.ID, "issue", job.IssueIDOrKey)
		log.Info("splitting issue")

		result, err := s.Split(ctx, job.IssueIDOrKey)
		if err != nil {
			log.Error("split failed", "error", err)
			return err
		}

		log.Info("split completed",
			"previous", result.Previous,
			"story_points", result.Step,
			"clone", result.CloneKey)
		return nil
	}
}
