package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"almsync/internal/bootstrap/config"
	"almsync/internal/bootstrap/logging"
	domainsync "almsync/internal/domain/sync"
	"almsync/internal/errs"
	"almsync/internal/ports"
)

const (
	searchFields = "summary,description,priority,status,assignee,created,updated,issuetype"
	maxAttempts  = 3
)

// Client talks to a Jira-compatible REST API (v3). Rate limits and 5xx
// responses are retried with backoff inside one call; what escapes is a
// domain TrackerAPIError the caller can classify.
type Client struct {
	baseURL  string
	username string
	token    string
	http     *http.Client
}

func NewClient(cfg config.TrackerConfig) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		token:    cfg.APIToken,
		http:     &http.Client{Timeout: cfg.Timeout()},
	}
}

type issueResponse struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description any    `json:"description"`
		IssueType   struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Priority struct {
			Name string `json:"name"`
		} `json:"priority"`
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Created string `json:"created"`
		Updated string `json:"updated"`
	} `json:"fields"`
}

func (r issueResponse) toPort() ports.TrackerIssue {
	issue := ports.TrackerIssue{
		Key:         r.Key,
		IssueType:   r.Fields.IssueType.Name,
		Summary:     r.Fields.Summary,
		Description: flattenDescription(r.Fields.Description),
		Priority:    r.Fields.Priority.Name,
		Status:      r.Fields.Status.Name,
		Created:     r.Fields.Created,
		Updated:     r.Fields.Updated,
	}
	if r.Fields.Assignee != nil {
		issue.Assignee = r.Fields.Assignee.DisplayName
	}
	return issue
}

func (c *Client) GetIssue(ctx context.Context, key string) (ports.TrackerIssue, error) {
	if strings.TrimSpace(key) == "" {
		return ports.TrackerIssue{}, domainsync.NewValidationError("key", "is required")
	}

	q := url.Values{}
	q.Set("fields", searchFields)

	raw, err := c.doJSON(ctx, http.MethodGet, "/rest/api/3/issue/"+url.PathEscape(key), q, nil)
	if err != nil {
		var apiErr *domainsync.TrackerAPIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return ports.TrackerIssue{}, domainsync.NewNotFoundError("tracker issue", key)
		}
		return ports.TrackerIssue{}, err
	}

	var resp issueResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ports.TrackerIssue{}, errs.Wrap(err, "decode issue")
	}
	return resp.toPort(), nil
}

func (c *Client) CreateIssue(ctx context.Context, req ports.CreateIssueRequest) (string, error) {
	if strings.TrimSpace(req.Summary) == "" {
		return "", domainsync.NewValidationError("summary", "is required")
	}

	fields := map[string]any{
		"project":   map[string]string{"key": req.Project},
		"issuetype": map[string]string{"name": req.IssueType},
		"summary":   req.Summary,
	}
	if req.Description != nil {
		fields["description"] = req.Description
	}
	if req.Priority != "" {
		fields["priority"] = map[string]string{"name": req.Priority}
	}
	if len(req.Labels) > 0 {
		fields["labels"] = req.Labels
	}

	raw, err := c.doJSON(ctx, http.MethodPost, "/rest/api/3/issue", nil, map[string]any{"fields": fields})
	if err != nil {
		return "", err
	}

	var resp struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", errs.Wrap(err, "decode created issue")
	}
	if resp.Key == "" {
		return "", &domainsync.TrackerAPIError{Status: http.StatusOK, Body: "create response missing issue key"}
	}
	return resp.Key, nil
}

func (c *Client) LinkIssues(ctx context.Context, inwardKey string, outwardKey string, linkType string) error {
	if linkType == "" {
		linkType = "Relates"
	}

	body := map[string]any{
		"type":        map[string]string{"name": linkType},
		"inwardIssue": map[string]string{"key": inwardKey},
		"outwardIssue": map[string]string{
			"key": outwardKey,
		},
	}

	_, err := c.doJSON(ctx, http.MethodPost, "/rest/api/3/issueLink", nil, body)
	return err
}

func (c *Client) SearchIssues(ctx context.Context, jql string, startAt int, maxResults int) ([]ports.TrackerIssue, int, error) {
	if strings.TrimSpace(jql) == "" {
		return nil, 0, domainsync.NewValidationError("jql", "is required")
	}

	q := url.Values{}
	q.Set("jql", jql)
	q.Set("fields", searchFields)
	if startAt > 0 {
		q.Set("startAt", strconv.Itoa(startAt))
	}
	if maxResults > 0 {
		q.Set("maxResults", strconv.Itoa(maxResults))
	}

	raw, err := c.doJSON(ctx, http.MethodGet, "/rest/api/3/search", q, nil)
	if err != nil {
		return nil, 0, err
	}

	var resp struct {
		Total  int             `json:"total"`
		Issues []issueResponse `json:"issues"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, 0, errs.Wrap(err, "decode search response")
	}

	issues := make([]ports.TrackerIssue, 0, len(resp.Issues))
	for _, item := range resp.Issues {
		issues = append(issues, item.toPort())
	}
	return issues, resp.Total, nil
}

func (c *Client) doJSON(ctx context.Context, method string, path string, q url.Values, body any) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if c.baseURL == "" {
		return nil, errors.New("tracker base url is not configured")
	}

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errs.Wrap(err, "marshal request body")
		}
		payload = raw
	}

	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "tracker"),
		slog.String("method", method),
		slog.String("path", path),
	)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(300*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, errs.Wrap(ctx.Err(), "tracker call canceled")
			case <-time.After(backoff):
			}
			logging.Warn(logCtx, "retrying tracker call", slog.Int("attempt", attempt+1))
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, errs.Wrap(err, "build tracker request")
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.username != "" {
			req.SetBasicAuth(c.username, c.token)
		} else if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = errs.Wrap(err, "tracker request")
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = errs.Wrap(readErr, "read tracker response")
			continue
		}

		if resp.StatusCode >= 300 {
			apiErr := &domainsync.TrackerAPIError{
				Status: resp.StatusCode,
				Body:   strings.TrimSpace(string(raw)),
			}
			if !apiErr.Retryable() {
				return nil, apiErr
			}
			lastErr = apiErr
			continue
		}

		return raw, nil
	}

	return nil, lastErr
}

// flattenDescription collapses a rich-text document (Atlassian Document
// Format) into plain text for the mirrored row. Plain strings pass through.
func flattenDescription(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		var sb strings.Builder
		flattenADF(v, &sb)
		return strings.TrimSpace(sb.String())
	default:
		return fmt.Sprint(v)
	}
}

func flattenADF(node map[string]any, sb *strings.Builder) {
	if text, ok := node["text"].(string); ok {
		sb.WriteString(text)
	}
	content, ok := node["content"].([]any)
	if !ok {
		return
	}
	for _, child := range content {
		childNode, ok := child.(map[string]any)
		if !ok {
			continue
		}
		flattenADF(childNode, sb)
		if nodeType, _ := childNode["type"].(string); nodeType == "paragraph" || nodeType == "heading" {
			sb.WriteString("\n")
		}
	}
}
