package jira

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/sprintsplit/internal/config"
	"github.com/danielolaszy/sprintsplit/pkg/models"
)

// newTestClient starts a server that routes every request to handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClientWithHTTP(server.Client(), server.URL)
	require.NoError(t, err)
	return client
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestNewClientCredentialValidation(t *testing.T) {
	testCases := []struct {
		name          string
		cfg           config.JiraConfig
		errorContains string
	}{
		{
			name:          "Missing URL",
			cfg:           config.JiraConfig{Username: "test@example.com", Token: "test-token", Auth: "basic"},
			errorContains: "JIRA_URL",
		},
		{
			name:          "Missing username",
			cfg:           config.JiraConfig{URL: "https://example.atlassian.net", Token: "test-token", Auth: "basic"},
			errorContains: "JIRA_USERNAME",
		},
		{
			name:          "Missing token",
			cfg:           config.JiraConfig{URL: "https://example.atlassian.net", Username: "test@example.com", Auth: "basic"},
			errorContains: "JIRA_TOKEN",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClient(tc.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorContains)
		})
	}
}

func TestNewClientAuthHeaders(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      config.JiraConfig
		expected string
	}{
		{
			name:     "Basic auth",
			cfg:      config.JiraConfig{Username: "bot", Token: "secret", Auth: "basic"},
			expected: "Basic Ym90OnNlY3JldA==",
		},
		{
			name:     "Bearer auth",
			cfg:      config.JiraConfig{Token: "pat-token", Auth: "bearer"},
			expected: "Bearer pat-token",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			cfg := tc.cfg
			cfg.URL = server.URL
			client, err := NewClient(cfg)
			require.NoError(t, err)

			require.NoError(t, client.UpdateIssue(context.Background(), "10001", map[string]any{"customfield_10024": 1}))
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestGetIssue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/api/3/issue/ISS-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"10001","key":"ISS-1","fields":{"summary":"Checkout","status":{"name":"QA"},"customfield_10024":2}}`)
	})

	issue, err := client.GetIssue(context.Background(), "ISS-1")
	require.NoError(t, err)
	assert.Equal(t, "10001", issue.ID)
	assert.Equal(t, "QA", issue.Fields.Status.Name)

	points, ok := issue.Fields.StoryPoints("customfield_10024")
	assert.True(t, ok)
	assert.Equal(t, 2.0, points)
}

func TestGetIssueNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"errorMessages":["Issue does not exist or you do not have permission to see it."]}`)
	})

	_, err := client.GetIssue(context.Background(), "ISS-404")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateIssue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/rest/api/3/issue/10001", r.URL.Path)

		body := decodeBody(t, r)
		fields := body["fields"].(map[string]any)
		assert.Equal(t, 0.5, fields["customfield_10024"])
		assert.Contains(t, body, "update")

		w.WriteHeader(http.StatusNoContent)
	})

	err := client.UpdateIssue(context.Background(), "10001", map[string]any{"customfield_10024": 0.5})
	assert.NoError(t, err)
}

func TestUpdateIssueRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"errors":{"customfield_10024":"Field cannot be set."}}`)
	})

	err := client.UpdateIssue(context.Background(), "10001", map[string]any{"customfield_10024": 0.5})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Field cannot be set.")
}

func TestUpdateIssueUnexpectedSuccessStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"warning":"ignored"}`)
	})

	err := client.UpdateIssue(context.Background(), "10001", map[string]any{"customfield_10024": 0.5})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Equal(t, `{"warning":"ignored"}`, apiErr.Body)
}

func TestCreateIssue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/3/issue", r.URL.Path)

		body := decodeBody(t, r)
		fields := body["fields"].(map[string]any)
		assert.Equal(t, "Checkout - SPLIT", fields["summary"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"10002","key":"ISS-2","self":"https://jira/rest/api/3/issue/10002"}`)
	})

	created, err := client.CreateIssue(context.Background(), map[string]any{"summary": "Checkout - SPLIT"})
	require.NoError(t, err)
	assert.Equal(t, "10002", created.ID)
	assert.Equal(t, "ISS-2", created.Key)
}

func TestCreateIssueRequiresCreated(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"id":"10002","key":"ISS-2"}`)
	})

	_, err := client.CreateIssue(context.Background(), map[string]any{"summary": "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Equal(t, `{"id":"10002","key":"ISS-2"}`, apiErr.Body)
	assert.Contains(t, err.Error(), "ISS-2")
}

func TestGetIssueRequiresOK(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"id":"10001","key":"ISS-1"}`)
	})

	_, err := client.GetIssue(context.Background(), "ISS-1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusAccepted, apiErr.StatusCode)
	assert.Equal(t, `{"id":"10001","key":"ISS-1"}`, apiErr.Body)
}

func TestIssuePathIsEscaped(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"10001","key":"ISS-1","fields":{}}`)
	})

	_, err := client.GetIssue(context.Background(), "ISS-1/transitions")
	require.NoError(t, err)
	require.NoError(t, client.UpdateIssue(context.Background(), "ISS-1?x=1", map[string]any{"labels": []string{}}))

	assert.Equal(t, []string{
		"/rest/api/3/issue/ISS-1%2Ftransitions",
		"/rest/api/3/issue/ISS-1%3Fx=1",
	}, paths)
}

func TestNewClientAppliesTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(config.JiraConfig{
		URL:      server.URL,
		Username: "bot",
		Token:    "secret",
		Auth:     "basic",
		Timeout:  50 * time.Millisecond,
	})
	require.NoError(t, err)

	err = client.UpdateIssue(context.Background(), "ISS-1", map[string]any{"labels": []string{}})
	assert.Error(t, err)
}

func TestTransitionIssue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/2/issue/10002/transitions", r.URL.Path)

		body := decodeBody(t, r)
		assert.Equal(t, map[string]any{"id": "51"}, body["transition"])

		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, client.TransitionIssue(context.Background(), "10002", "51"))
}

func TestCreateIssueLink(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/2/issueLink", r.URL.Path)

		body := decodeBody(t, r)
		assert.Equal(t, "10500", body["type"].(map[string]any)["id"])
		assert.Equal(t, "ISS-1", body["inwardIssue"].(map[string]any)["key"])
		assert.Equal(t, "ISS-2", body["outwardIssue"].(map[string]any)["key"])

		w.WriteHeader(http.StatusCreated)
	})

	assert.NoError(t, client.CreateIssueLink(context.Background(), "10500", "ISS-1", "ISS-2"))
}

func TestSearchIssues(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/3/search/jql", r.URL.Path)

		body := decodeBody(t, r)
		assert.Equal(t, `sprint = 77`, body["jql"])
		assert.Equal(t, 999.0, body["maxResults"])
		assert.Equal(t, []any{"summary", "customfield_10024"}, body["fields"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"issues":[{"id":"1","key":"ISS-1","fields":{"summary":"a"}},{"id":"2","key":"ISS-2","fields":{"summary":"b"}}]}`)
	})

	issues, err := client.SearchIssues(context.Background(), "sprint = 77", 999, []string{"summary", "customfield_10024"})
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "ISS-2", issues[1].Key)
}

func TestGetBoardSprintsPaginates(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/rest/agile/1.0/board/2/sprint", r.URL.Path)
		assert.Equal(t, "active,future", r.URL.Query().Get("state"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("startAt") == "" {
			io.WriteString(w, `{"isLast":false,"values":[{"id":77,"name":"Sprint 42","state":"active"}]}`)
			return
		}
		assert.Equal(t, "1", r.URL.Query().Get("startAt"))
		io.WriteString(w, `{"isLast":true,"values":[{"id":78,"name":"Sprint 43","state":"future"}]}`)
	})

	sprints, err := client.GetBoardSprints(context.Background(), 2, models.SprintActive, models.SprintFuture)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []models.Sprint{
		{ID: 77, Name: "Sprint 42", State: models.SprintActive},
		{ID: 78, Name: "Sprint 43", State: models.SprintFuture},
	}, sprints)
}

func TestParseBoardID(t *testing.T) {
	id, err := ParseBoardID(" 6 ")
	require.NoError(t, err)
	assert.Equal(t, 6, id)

	_, err = ParseBoardID("board")
	assert.Error(t, err)

	_, err = ParseBoardID("0")
	assert.Error(t, err)
}
