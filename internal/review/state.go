// Package review implements the sprint review page as an explicit view-model:
// events are folded into a State by Reduce and Render turns a State into the
// description of the page.
package review

import (
	"github.com/danielolaszy/sprintsplit/pkg/models"
)

// State is everything the review page shows for one session.
type State struct {
	Sprints []models.Sprint

	// TargetSprintID is the sprint searched for candidates. Zero until sprints load.
	TargetSprintID int

	// NextSprintID is the sprint chosen on the last search. Zero disables splitting.
	NextSprintID int

	Issues   []models.IssueRow
	Searched bool

	ConfirmOpen   bool
	CompletedOpen bool
	Enqueued      int

	// Error is the last failed backend action, cleared by the next successful one.
	Error string
}

// Event is a discrete change to the page state.
type Event interface {
	isEvent()
}

// SprintsLoaded carries the board's active and future sprints.
type SprintsLoaded struct {
	Sprints []models.Sprint
}

// SearchSubmitted records the sprint pair submitted with the search form.
type SearchSubmitted struct {
	Target int
	Next   int
}

// SearchCompleted carries the splittable issues found in the target sprint.
type SearchCompleted struct {
	Issues []models.IssueRow
}

// SplitRequested opens the confirmation modal.
type SplitRequested struct{}

// ConfirmClosed dismisses the confirmation modal.
type ConfirmClosed struct{}

// SelectionConfirmed carries the keys picked in the confirmation modal.
type SelectionConfirmed struct {
	Keys []string
}

// EnqueueCompleted acknowledges that the selected issues were queued.
type EnqueueCompleted struct {
	Count int
}

// CompletedClosed dismisses the completion modal.
type CompletedClosed struct{}

// ActionFailed records a failed backend or queue call.
type ActionFailed struct {
	Err error
}

func (SprintsLoaded) isEvent()      {}
func (SearchSubmitted) isEvent()    {}
func (SearchCompleted) isEvent()    {}
func (SplitRequested) isEvent()     {}
func (ConfirmClosed) isEvent()      {}
func (SelectionConfirmed) isEvent() {}
func (EnqueueCompleted) isEvent()   {}
func (CompletedClosed) isEvent()    {}
func (ActionFailed) isEvent()       {}

// Reduce returns the state after applying e. It never mutates s.
func Reduce(s State, e Event) State {
	switch e := e.(type) {
	case SprintsLoaded:
		s.Sprints = e.Sprints
		if s.TargetSprintID == 0 {
			if active, ok := models.ActiveSprint(e.Sprints); ok {
				s.TargetSprintID = active.ID
			}
		}
		s.Error = ""

	case SearchSubmitted:
		s.TargetSprintID = e.Target
		s.NextSprintID = e.Next
		s.Error = ""

	case SearchCompleted:
		s.Issues = e.Issues
		s.Searched = true
		s.Error = ""

	case SplitRequested:
		// The split button is disabled until a next sprint has been chosen.
		if s.NextSprintID != 0 {
			s.ConfirmOpen = true
		}

	case ConfirmClosed:
		s.ConfirmOpen = false

	case SelectionConfirmed:
		s.ConfirmOpen = false

	case EnqueueCompleted:
		s.Enqueued = e.Count
		s.CompletedOpen = true
		s.Error = ""

	case CompletedClosed:
		s.CompletedOpen = false

	case ActionFailed:
		if e.Err != nil {
			s.Error = e.Err.Error()
		}
	}

	return s
}

// SuggestNextSprint returns the future sprint numbered one after the active
// sprint, e.g. "Sprint 43" when "Sprint 42" is active.
func SuggestNextSprint(sprints []models.Sprint) (int, bool) {
	active, ok := models.ActiveSprint(sprints)
	if !ok {
		return 0, false
	}

	number, ok := active.Number()
	if !ok || number == 0 {
		return 0, false
	}

	for _, s := range sprints {
		if s.State != models.SprintFuture {
			continue
		}
		if n, ok := s.Number(); ok && n == number+1 {
			return s.ID, true
		}
	}
	return 0, false
}
