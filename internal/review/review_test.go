package review

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/sprintsplit/internal/config"
	"github.com/danielolaszy/sprintsplit/pkg/models"
)

// fakeBackend returns canned sprints and issues and records the last search.
type fakeBackend struct {
	sprints   []models.Sprint
	issues    []models.Issue
	err       error
	lastJQL   string
	lastMax   int
	lastBoard int
}

func (f *fakeBackend) GetBoardSprints(ctx context.Context, boardID int, states ...models.SprintState) ([]models.Sprint, error) {
	f.lastBoard = boardID
	return f.sprints, f.err
}

func (f *fakeBackend) SearchIssues(ctx context.Context, jql string, maxResults int, fields []string) ([]models.Issue, error) {
	f.lastJQL = jql
	f.lastMax = maxResults
	return f.issues, f.err
}

// fakeQueue records every push.
type fakeQueue struct {
	pushes [][]models.SplitJob
	err    error
}

func (f *fakeQueue) Push(ctx context.Context, jobs []models.SplitJob) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.pushes = append(f.pushes, jobs)
	return len(jobs), nil
}

var boardSprints = []models.Sprint{
	{ID: 76, Name: "Cashy Sprint 41", State: models.SprintFuture},
	{ID: 77, Name: "Cashy Sprint 42", State: models.SprintActive},
	{ID: 78, Name: "Cashy Sprint 43", State: models.SprintFuture},
	{ID: 79, Name: "Cashy Sprint 44", State: models.SprintFuture},
}

func issue(t *testing.T, key, status string, points any) models.Issue {
	t.Helper()
	fields := map[string]any{
		"summary":   "Summary of " + key,
		"status":    map[string]any{"name": status},
		"issuetype": map[string]any{"name": "Story", "iconUrl": "https://jira/story.png"},
		"assignee":  map[string]any{"displayName": "Sam Doe"},
	}
	if points != nil {
		fields["customfield_10024"] = points
	}
	data, err := json.Marshal(map[string]any{"id": "1", "key": key, "fields": fields})
	require.NoError(t, err)

	var out models.Issue
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestSuggestNextSprint(t *testing.T) {
	testCases := []struct {
		name     string
		sprints  []models.Sprint
		expected int
		ok       bool
	}{
		{
			name:     "Future sprint numbered after the active one",
			sprints:  boardSprints,
			expected: 78,
			ok:       true,
		},
		{
			name:    "No active sprint",
			sprints: []models.Sprint{{ID: 78, Name: "Sprint 43", State: models.SprintFuture}},
		},
		{
			name: "Active sprint without a number",
			sprints: []models.Sprint{
				{ID: 77, Name: "Hardening", State: models.SprintActive},
				{ID: 78, Name: "Sprint 1", State: models.SprintFuture},
			},
		},
		{
			name: "No matching future sprint",
			sprints: []models.Sprint{
				{ID: 77, Name: "Sprint 42", State: models.SprintActive},
				{ID: 80, Name: "Sprint 45", State: models.SprintFuture},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := SuggestNextSprint(tc.sprints)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, id)
		})
	}
}

func TestSearchJQL(t *testing.T) {
	jql := SearchJQL([]string{"Pull Request", "QA", "QA-DEV"}, 77)
	assert.Equal(t, `status in ("Pull Request", "QA", "QA-DEV") and sprint = 77`, jql)
}

func TestFilterSplittable(t *testing.T) {
	cfg := config.Default().Split
	issues := []models.Issue{
		issue(t, "ISS-1", "QA", 2),
		issue(t, "ISS-2", "Pull Request", 1),
		issue(t, "ISS-3", "Pull Request", 1.5),
		issue(t, "ISS-4", "QA-DEV", 0.5),
		issue(t, "ISS-5", "QA", nil),
	}

	rows := FilterSplittable(cfg, issues)
	require.Len(t, rows, 2)
	assert.Equal(t, models.IssueRow{
		Key:         "ISS-1",
		Type:        "Story",
		TypeIconURL: "https://jira/story.png",
		Summary:     "Summary of ISS-1",
		Status:      "QA",
		Assignee:    "Sam Doe",
		StoryPoints: 2,
	}, rows[0])
	assert.Equal(t, "ISS-3", rows[1].Key)
}

func TestReduceFlow(t *testing.T) {
	var s State

	s = Reduce(s, SprintsLoaded{Sprints: boardSprints})
	assert.Equal(t, 77, s.TargetSprintID)
	assert.Zero(t, s.NextSprintID)

	s = Reduce(s, SplitRequested{})
	assert.False(t, s.ConfirmOpen, "split needs a next sprint")

	s = Reduce(s, SearchSubmitted{Target: 77, Next: 78})
	rows := []models.IssueRow{{Key: "ISS-1", Summary: "a"}, {Key: "ISS-3", Summary: "b"}}
	s = Reduce(s, SearchCompleted{Issues: rows})
	assert.True(t, s.Searched)
	assert.Equal(t, 78, s.NextSprintID)

	s = Reduce(s, SplitRequested{})
	assert.True(t, s.ConfirmOpen)

	s = Reduce(s, SelectionConfirmed{Keys: []string{"ISS-1"}})
	assert.False(t, s.ConfirmOpen)

	s = Reduce(s, EnqueueCompleted{Count: 1})
	assert.True(t, s.CompletedOpen)
	assert.Equal(t, 1, s.Enqueued)

	s = Reduce(s, CompletedClosed{})
	assert.False(t, s.CompletedOpen)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	before := State{TargetSprintID: 77}
	after := Reduce(before, SearchSubmitted{Target: 78, Next: 79})

	assert.Equal(t, 77, before.TargetSprintID)
	assert.Equal(t, 78, after.TargetSprintID)
}

func TestReduceActionFailed(t *testing.T) {
	s := Reduce(State{}, ActionFailed{Err: errors.New("search issues: unexpected status 400")})
	assert.Equal(t, "search issues: unexpected status 400", s.Error)

	s = Reduce(s, SearchCompleted{})
	assert.Empty(t, s.Error)
}

func TestRenderInitialPage(t *testing.T) {
	s := Reduce(State{}, SprintsLoaded{Sprints: boardSprints})
	view := Render(s)

	assert.Equal(t, []Option{{Value: "77", Label: "Cashy Sprint 42", Selected: true}}, view.TargetOptions)
	assert.Equal(t, []Option{
		{Value: "76", Label: "Cashy Sprint 41"},
		{Value: "78", Label: "Cashy Sprint 43", Selected: true},
		{Value: "79", Label: "Cashy Sprint 44"},
	}, view.NextOptions)
	assert.True(t, view.SplitDisabled)
	assert.False(t, view.ShowTable())
	assert.Empty(t, view.Heading)
	assert.Nil(t, view.Confirm)
	assert.Nil(t, view.Completed)
}

func TestRenderResultsAndConfirm(t *testing.T) {
	s := Reduce(State{}, SprintsLoaded{Sprints: boardSprints})
	s = Reduce(s, SearchSubmitted{Target: 77, Next: 79})
	s = Reduce(s, SearchCompleted{Issues: []models.IssueRow{
		{Key: "ISS-1", Summary: "Checkout"},
		{Key: "ISS-3", Summary: "Login"},
	}})
	s = Reduce(s, SplitRequested{})

	view := Render(s)
	assert.Equal(t, "Total 2 issues", view.Heading)
	assert.Equal(t, Columns, view.Columns)
	assert.True(t, view.ShowTable())
	assert.False(t, view.SplitDisabled)
	assert.True(t, view.NextOptions[2].Selected, "submitted next sprint stays selected")
	assert.False(t, view.NextOptions[1].Selected)

	require.NotNil(t, view.Confirm)
	assert.Equal(t, "Confirm to split tasks", view.Confirm.Header)
	assert.Equal(t, []Option{
		{Value: "ISS-1", Label: "ISS-1 Checkout", Selected: true},
		{Value: "ISS-3", Label: "ISS-3 Login", Selected: true},
	}, view.Confirm.Options)
}

func TestSearchWithNothingSplittable(t *testing.T) {
	backend := &fakeBackend{
		sprints: boardSprints,
		issues: []models.Issue{
			issue(t, "ISS-2", "Pull Request", 1),
			issue(t, "ISS-4", "QA", 0.5),
		},
	}
	ctrl := NewController(NewService(backend, &fakeQueue{}, config.Default().Split))
	ctx := context.Background()

	require.NoError(t, ctrl.Load(ctx))
	require.NoError(t, ctrl.Search(ctx, 77, 78))
	assert.Equal(t, `status in ("Pull Request", "QA", "QA-DEV") and sprint = 77`, backend.lastJQL)
	assert.Equal(t, 999, backend.lastMax)

	ctrl.RequestSplit()
	view := ctrl.View()

	assert.False(t, view.ShowTable())
	assert.False(t, view.SplitDisabled)
	require.NotNil(t, view.Confirm)
	assert.Empty(t, view.Confirm.Options)
}

func TestConfirmPushesOneJobPerKey(t *testing.T) {
	queue := &fakeQueue{}
	ctrl := NewController(NewService(&fakeBackend{sprints: boardSprints}, queue, config.Default().Split))
	ctx := context.Background()

	keys := []string{"ISS-1", "ISS-3", "ISS-7"}
	require.NoError(t, ctrl.Confirm(ctx, keys))

	require.Len(t, queue.pushes, 1, "one batch push")
	require.Len(t, queue.pushes[0], len(keys))
	for i, job := range queue.pushes[0] {
		assert.Equal(t, keys[i], job.IssueIDOrKey)
	}

	view := ctrl.View()
	require.NotNil(t, view.Completed)
	assert.Equal(t, "Split tasks completed", view.Completed.Header)
	assert.Equal(t, 3, ctrl.State().Enqueued)

	ctrl.Close()
	assert.Nil(t, ctrl.View().Completed)
}

func TestConfirmNothingSelected(t *testing.T) {
	queue := &fakeQueue{}
	ctrl := NewController(NewService(&fakeBackend{}, queue, config.Default().Split))

	require.NoError(t, ctrl.Confirm(context.Background(), nil))
	assert.Empty(t, queue.pushes)
	assert.NotNil(t, ctrl.View().Completed)
}

func TestControllerSurfacesErrors(t *testing.T) {
	backend := &fakeBackend{err: errors.New("jira unavailable")}
	ctrl := NewController(NewService(backend, &fakeQueue{err: errors.New("queue closed")}, config.Default().Split))
	ctx := context.Background()

	require.Error(t, ctrl.Load(ctx))
	assert.Contains(t, ctrl.View().Error, "jira unavailable")

	require.Error(t, ctrl.Search(ctx, 77, 78))
	require.Error(t, ctrl.Confirm(ctx, []string{"ISS-1"}))
	assert.Contains(t, ctrl.View().Error, "queue closed")
	assert.Nil(t, ctrl.View().Completed)
}

func TestLoadOnlyOnce(t *testing.T) {
	backend := &fakeBackend{sprints: boardSprints}
	ctrl := NewController(NewService(backend, &fakeQueue{}, config.Default().Split))

	require.NoError(t, ctrl.Load(context.Background()))
	backend.sprints = nil
	require.NoError(t, ctrl.Load(context.Background()))
	assert.Len(t, ctrl.State().Sprints, 4)
	assert.Equal(t, 2, backend.lastBoard)
}
