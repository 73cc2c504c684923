package review

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/danielolaszy/sprintsplit/internal/config"
	"github.com/danielolaszy/sprintsplit/internal/logging"
	"github.com/danielolaszy/sprintsplit/internal/split"
	"github.com/danielolaszy/sprintsplit/pkg/models"
)

// Backend is the read-only part of the issue tracker the review page uses.
type Backend interface {
	GetBoardSprints(ctx context.Context, boardID int, states ...models.SprintState) ([]models.Sprint, error)
	SearchIssues(ctx context.Context, jql string, maxResults int, fields []string) ([]models.Issue, error)
}

// Enqueuer accepts a batch of split jobs in one push.
type Enqueuer interface {
	Push(ctx context.Context, jobs []models.SplitJob) (int, error)
}

// Service performs the side effects of the review page.
type Service struct {
	backend Backend
	queue   Enqueuer
	cfg     config.SplitConfig
}

// NewService creates the review service.
func NewService(backend Backend, queue Enqueuer, cfg config.SplitConfig) *Service {
	return &Service{backend: backend, queue: queue, cfg: cfg}
}

// LoadSprints lists the active and future sprints of the configured board.
func (s *Service) LoadSprints(ctx context.Context) ([]models.Sprint, error) {
	sprints, err := s.backend.GetBoardSprints(ctx, s.cfg.BoardID, models.SprintActive, models.SprintFuture)
	if err != nil {
		return nil, fmt.Errorf("failed to load sprints of board %d: %w", s.cfg.BoardID, err)
	}
	return sprints, nil
}

// Search finds the issues of the target sprint in a review status that can
// still be split.
func (s *Service) Search(ctx context.Context, targetSprintID int) ([]models.IssueRow, error) {
	jql := SearchJQL(s.cfg.ReviewStatuses, targetSprintID)
	fields := []string{"issuetype", "summary", "status", "assignee", s.cfg.StoryPointField}

	issues, err := s.backend.SearchIssues(ctx, jql, s.cfg.MaxSearchResults, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to search sprint %d: %w", targetSprintID, err)
	}

	rows := FilterSplittable(s.cfg, issues)
	logging.Info("sprint searched",
		"sprint", targetSprintID,
		"found", len(issues),
		"splittable", len(rows))
	return rows, nil
}

// Confirm enqueues one split job per key in a single push and returns how many
// jobs were stored.
func (s *Service) Confirm(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := s.queue.Push(ctx, models.NewSplitJobs(keys))
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue split jobs: %w", err)
	}
	return n, nil
}

// SearchJQL builds the candidate query for a sprint.
func SearchJQL(statuses []string, sprintID int) string {
	quoted := make([]string, 0, len(statuses))
	for _, status := range statuses {
		quoted = append(quoted, `"`+strings.ReplaceAll(status, `"`, `\"`)+`"`)
	}
	return fmt.Sprintf("status in (%s) and sprint = %d", strings.Join(quoted, ", "), sprintID)
}

// FilterSplittable keeps the issues whose story points exceed their status
// step and projects them to table rows, preserving order.
func FilterSplittable(cfg config.SplitConfig, issues []models.Issue) []models.IssueRow {
	rows := []models.IssueRow{}
	for i := range issues {
		issue := &issues[i]
		if !split.Splittable(cfg, issue) {
			continue
		}
		rows = append(rows, ToRow(cfg, issue))
	}
	return rows
}

// ToRow projects an issue to the fields shown on the page.
func ToRow(cfg config.SplitConfig, issue *models.Issue) models.IssueRow {
	points, _ := issue.Fields.StoryPoints(cfg.StoryPointField)
	return models.IssueRow{
		Key:         issue.Key,
		Type:        issue.Fields.IssueType.Name,
		TypeIconURL: issue.Fields.IssueType.IconURL,
		Summary:     issue.Fields.Summary,
		Status:      issue.Fields.Status.Name,
		Assignee:    issue.Fields.AssigneeName(),
		StoryPoints: points,
	}
}

// Controller holds the page state of one session and runs each user action
// through the service and Reduce. It is safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	service *Service
	state   State
	loaded  bool
}

// NewController creates the controller of a new session.
func NewController(service *Service) *Controller {
	return &Controller{service: service}
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View renders the current state.
func (c *Controller) View() View {
	return Render(c.State())
}

func (c *Controller) apply(e Event) {
	c.state = Reduce(c.state, e)
}

// Load fetches the sprint list on first use.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return nil
	}

	sprints, err := c.service.LoadSprints(ctx)
	if err != nil {
		c.apply(ActionFailed{Err: err})
		return err
	}

	c.apply(SprintsLoaded{Sprints: sprints})
	c.loaded = true
	return nil
}

// Search runs the search form.
func (c *Controller) Search(ctx context.Context, target, next int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.apply(SearchSubmitted{Target: target, Next: next})

	rows, err := c.service.Search(ctx, target)
	if err != nil {
		c.apply(ActionFailed{Err: err})
		return err
	}

	c.apply(SearchCompleted{Issues: rows})
	return nil
}

// RequestSplit opens the confirmation modal.
func (c *Controller) RequestSplit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apply(SplitRequested{})
}

// Confirm enqueues the selected keys and opens the completion modal.
func (c *Controller) Confirm(ctx context.Context, keys []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.apply(SelectionConfirmed{Keys: keys})

	n, err := c.service.Confirm(ctx, keys)
	if err != nil {
		c.apply(ActionFailed{Err: err})
		return err
	}

	c.apply(EnqueueCompleted{Count: n})
	return nil
}

// Close dismisses whichever modal is open.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apply(ConfirmClosed{})
	c.apply(CompletedClosed{})
}
