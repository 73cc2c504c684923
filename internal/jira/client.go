// Package jira implements the issue tracker operations used by the split workflow
// and the review page on top of go-jira.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	jira "github.com/andygrunwald/go-jira"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/sprintsplit/internal/config"
	"github.com/danielolaszy/sprintsplit/internal/logging"
	"github.com/danielolaszy/sprintsplit/pkg/models"
)

// ErrNotFound is returned when Jira answers 404 for an issue read.
var ErrNotFound = errors.New("issue not found")

// APIError is returned when Jira answers with a status other than the one the
// operation expects. Body carries the raw response for diagnosis.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client handles interactions with the JIRA API.
type Client struct {
	client *jira.Client
}

// NewClient creates a JIRA client from configuration. Basic auth uses the
// username and API token; bearer auth sends the token as a personal access token.
func NewClient(cfg config.JiraConfig) (*Client, error) {
	if err := config.ValidateJiraConfig(&config.Config{Jira: cfg}); err != nil {
		return nil, err
	}

	var httpClient *http.Client
	switch cfg.Auth {
	case "bearer":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	default:
		tp := jira.BasicAuthTransport{
			Username: cfg.Username,
			Password: cfg.Token,
		}
		httpClient = tp.Client()
	}
	httpClient.Timeout = cfg.Timeout

	logging.Debug("jira configuration",
		"url", cfg.URL,
		"auth", cfg.Auth,
		"username", cfg.Username,
		"token", logging.MaskSensitive(cfg.Token),
		"timeout", cfg.Timeout)

	return NewClientWithHTTP(httpClient, cfg.URL)
}

// NewClientWithHTTP creates a client on top of an already authenticated HTTP client.
func NewClientWithHTTP(httpClient *http.Client, baseURL string) (*Client, error) {
	client, err := jira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}
	return &Client{client: client}, nil
}

// GetIssue loads the full issue, custom fields included. The v3 API is used so
// the description arrives as an ADF document.
func (c *Client) GetIssue(ctx context.Context, issueIDOrKey string) (*models.Issue, error) {
	req, err := c.client.NewRequestWithContext(ctx, http.MethodGet, "rest/api/3/issue/"+url.PathEscape(issueIDOrKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build get issue request: %w", err)
	}

	issue := new(models.Issue)
	if err := c.call(req, "get issue "+issueIDOrKey, http.StatusOK, issue); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, issueIDOrKey)
		}
		return nil, err
	}

	return issue, nil
}

// UpdateIssue sets the given fields on an issue.
func (c *Client) UpdateIssue(ctx context.Context, issueID string, fields map[string]any) error {
	body := map[string]any{
		"fields": fields,
		"update": map[string]any{},
	}

	req, err := c.client.NewRequestWithContext(ctx, http.MethodPut, "rest/api/3/issue/"+url.PathEscape(issueID), body)
	if err != nil {
		return fmt.Errorf("failed to build update issue request: %w", err)
	}

	if err := c.call(req, "update issue "+issueID, http.StatusNoContent, nil); err != nil {
		return err
	}

	logging.Debug("issue updated", "issue", issueID)
	return nil
}

// CreateIssue creates an issue from a complete field map.
func (c *Client) CreateIssue(ctx context.Context, fields map[string]any) (*models.CreatedIssue, error) {
	body := map[string]any{
		"fields": fields,
		"update": map[string]any{},
	}

	req, err := c.client.NewRequestWithContext(ctx, http.MethodPost, "rest/api/3/issue", body)
	if err != nil {
		return nil, fmt.Errorf("failed to build create issue request: %w", err)
	}

	created := new(models.CreatedIssue)
	if err := c.call(req, "create issue", http.StatusCreated, created); err != nil {
		return nil, err
	}

	logging.Debug("issue created", "id", created.ID, "key", created.Key)
	return created, nil
}

// TransitionIssue moves an issue through the given workflow transition.
func (c *Client) TransitionIssue(ctx context.Context, issueIDOrKey, transitionID string) error {
	resp, err := c.client.Issue.DoTransitionWithContext(ctx, url.PathEscape(issueIDOrKey), transitionID)
	if err != nil {
		return fmt.Errorf("transition issue %s: %w", issueIDOrKey, err)
	}
	defer drain(resp)

	logging.Debug("transition issue response", "issue", issueIDOrKey, "status", resp.Status)

	return expectStatus("transition issue "+issueIDOrKey, resp, http.StatusNoContent)
}

// CreateIssueLink links outward to inward with the given link type.
func (c *Client) CreateIssueLink(ctx context.Context, linkTypeID, inwardKey, outwardKey string) error {
	link := &jira.IssueLink{
		Type:         jira.IssueLinkType{ID: linkTypeID},
		InwardIssue:  &jira.Issue{Key: inwardKey},
		OutwardIssue: &jira.Issue{Key: outwardKey},
	}

	resp, err := c.client.Issue.AddLinkWithContext(ctx, link)
	if err != nil {
		return fmt.Errorf("link %s to %s: %w", outwardKey, inwardKey, err)
	}
	defer drain(resp)

	return expectStatus("link "+outwardKey+" to "+inwardKey, resp, http.StatusCreated)
}

type searchRequest struct {
	JQL        string   `json:"jql"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields,omitempty"`
}

type searchResponse struct {
	Issues []models.Issue `json:"issues"`
}

// SearchIssues runs a JQL query and returns up to maxResults issues with the
// requested fields.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int, fields []string) ([]models.Issue, error) {
	body := searchRequest{
		JQL:        jql,
		MaxResults: maxResults,
		Fields:     fields,
	}

	req, err := c.client.NewRequestWithContext(ctx, http.MethodPost, "rest/api/3/search/jql", body)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}

	result := new(searchResponse)
	if err := c.call(req, "search issues", http.StatusOK, result); err != nil {
		return nil, err
	}

	logging.Debug("search issues", "jql", jql, "count", len(result.Issues))

	return result.Issues, nil
}

// GetBoardSprints lists the sprints of a board in the given states, following
// pagination until the last page.
func (c *Client) GetBoardSprints(ctx context.Context, boardID int, states ...models.SprintState) ([]models.Sprint, error) {
	stateNames := make([]string, 0, len(states))
	for _, s := range states {
		stateNames = append(stateNames, string(s))
	}

	opts := &jira.GetAllSprintsOptions{
		State: strings.Join(stateNames, ","),
	}

	var sprints []models.Sprint
	for {
		page, resp, err := c.client.Board.GetAllSprintsWithOptionsWithContext(ctx, boardID, opts)
		if err != nil {
			return nil, fmt.Errorf("get sprints for board %d: %w", boardID, err)
		}
		drain(resp)

		for _, s := range page.Values {
			sprints = append(sprints, models.Sprint{
				ID:    s.ID,
				Name:  s.Name,
				State: models.SprintState(s.State),
			})
		}

		if page.IsLast || len(page.Values) == 0 {
			break
		}
		opts.StartAt += len(page.Values)
	}

	return sprints, nil
}

// call sends req and decodes the response into v only when Jira answered
// with want. Any other status becomes an APIError carrying the body, which
// go-jira would otherwise consume while decoding.
func (c *Client) call(req *http.Request, op string, want int, v any) error {
	resp, err := c.client.Do(req, nil)
	if err != nil {
		return apiError(op, resp, err)
	}
	defer drain(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	if resp.StatusCode != want {
		return &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if v != nil {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("%s: failed to decode response: %w", op, err)
		}
	}
	return nil
}

// apiError converts a failed go-jira call into an APIError carrying the body.
func apiError(op string, resp *jira.Response, err error) error {
	if resp == nil || resp.Response == nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	defer resp.Body.Close()
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return &APIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// expectStatus fails when Jira answered with any 2xx other than the expected
// one. It is only used where the body was left unread.
func expectStatus(op string, resp *jira.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	return &APIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func drain(resp *jira.Response) {
	if resp == nil || resp.Response == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// ParseBoardID accepts the board id as configured or passed on the command line.
func ParseBoardID(value string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid board id %q", value)
	}
	return id, nil
}
