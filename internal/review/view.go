package review

import (
	"fmt"
	"strconv"

	"github.com/danielolaszy/sprintsplit/pkg/models"
)

// Columns are the table headings, in display order.
var Columns = []string{"Type", "Issue", "Summary", "Status", "Story Point", "Assignee"}

// Option is one entry of a select.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Modal describes an open dialog.
type Modal struct {
	Header  string
	Options []Option
}

// View is the render description of the review page.
type View struct {
	TargetOptions []Option
	NextOptions   []Option

	// Heading is empty when there are no rows; the table is hidden then.
	Heading string
	Columns []string
	Rows    []models.IssueRow

	SplitDisabled bool
	Searched      bool

	Confirm   *Modal
	Completed *Modal

	Error string
}

// ShowTable reports whether the results table is rendered.
func (v View) ShowTable() bool {
	return len(v.Rows) > 0
}

// Render describes the page for s. It has no side effects.
func Render(s State) View {
	view := View{
		TargetOptions: targetOptions(s),
		NextOptions:   nextOptions(s),
		SplitDisabled: s.NextSprintID == 0,
		Searched:      s.Searched,
		Error:         s.Error,
	}

	if len(s.Issues) > 0 {
		view.Heading = fmt.Sprintf("Total %d issues", len(s.Issues))
		view.Columns = Columns
		view.Rows = s.Issues
	}

	if s.ConfirmOpen {
		options := make([]Option, 0, len(s.Issues))
		for _, row := range s.Issues {
			options = append(options, Option{
				Value:    row.Key,
				Label:    row.Label(),
				Selected: true,
			})
		}
		view.Confirm = &Modal{Header: "Confirm to split tasks", Options: options}
	}

	if s.CompletedOpen {
		view.Completed = &Modal{Header: "Split tasks completed"}
	}

	return view
}

func targetOptions(s State) []Option {
	var options []Option
	for _, sprint := range s.Sprints {
		if sprint.State != models.SprintActive {
			continue
		}
		options = append(options, Option{
			Value:    strconv.Itoa(sprint.ID),
			Label:    sprint.Name,
			Selected: s.TargetSprintID == 0 || sprint.ID == s.TargetSprintID,
		})
	}
	return options
}

func nextOptions(s State) []Option {
	selected := s.NextSprintID
	if selected == 0 {
		selected, _ = SuggestNextSprint(s.Sprints)
	}

	var options []Option
	for _, sprint := range s.Sprints {
		if sprint.State == models.SprintActive {
			continue
		}
		options = append(options, Option{
			Value:    strconv.Itoa(sprint.ID),
			Label:    sprint.Name,
			Selected: selected != 0 && sprint.ID == selected,
		})
	}
	return options
}

// FormatPoints renders story points the way the table shows them.
func FormatPoints(points float64) string {
	return strconv.FormatFloat(points, 'f', -1, 64)
}
