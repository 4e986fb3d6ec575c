package sync

import (
	"encoding/json"
	"strings"
)

const (
	WebhookIssueCreated = "issue_created"
	WebhookIssueUpdated = "issue_updated"
	WebhookIssueDeleted = "issue_deleted"
)

// WebhookNotification is a tracker change notification after strict parsing.
type WebhookNotification struct {
	EventType string
	Issue     IssueFields
}

// IssueFields is the field set mirrored into the warehouse.
type IssueFields struct {
	IssueID     string
	IssueType   string
	Title       string
	Description string
	Priority    string
	Status      string
	Assignee    string
	Created     string
	Updated     string
}

// Synced reports whether the notification kind is mirrored. Deletions are
// accepted on the wire but carry no hard-delete semantics here.
func (n WebhookNotification) Synced() bool {
	return n.EventType == WebhookIssueCreated || n.EventType == WebhookIssueUpdated
}

type webhookPayload struct {
	WebhookEvent string        `json:"webhookEvent"`
	Issue        *issuePayload `json:"issue"`
}

type issuePayload struct {
	ID     string       `json:"id"`
	Key    string       `json:"key"`
	Fields fieldPayload `json:"fields"`
}

type fieldPayload struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	IssueType   namedField `json:"issuetype"`
	Priority    namedField `json:"priority"`
	Status      namedField `json:"status"`
	Assignee    *userField `json:"assignee"`
	Created     string     `json:"created"`
	Updated     string     `json:"updated"`
}

type namedField struct {
	Name string `json:"name"`
}

type userField struct {
	DisplayName string `json:"displayName"`
}

// ParseWebhook validates a raw tracker notification and fails closed: a
// payload without an issue identifier is rejected instead of being patched
// up from partial fields.
func ParseWebhook(raw []byte) (WebhookNotification, error) {
	if len(raw) == 0 {
		return WebhookNotification{}, NewValidationError("payload", "empty body")
	}

	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return WebhookNotification{}, NewValidationError("payload", "malformed JSON: "+err.Error())
	}

	eventType := normalizeEventType(payload.WebhookEvent)
	if eventType == "" {
		return WebhookNotification{}, NewValidationError("webhookEvent", "is required")
	}

	notification := WebhookNotification{EventType: eventType}
	if !notification.Synced() {
		return notification, nil
	}

	if payload.Issue == nil {
		return WebhookNotification{}, NewValidationError("issue", "is required")
	}

	issueID := strings.TrimSpace(payload.Issue.Key)
	if issueID == "" {
		issueID = strings.TrimSpace(payload.Issue.ID)
	}
	if issueID == "" {
		return WebhookNotification{}, NewValidationError("issue.id", "is required")
	}

	fields := payload.Issue.Fields
	assignee := ""
	if fields.Assignee != nil {
		assignee = strings.TrimSpace(fields.Assignee.DisplayName)
	}

	notification.Issue = IssueFields{
		IssueID:     issueID,
		IssueType:   strings.TrimSpace(fields.IssueType.Name),
		Title:       strings.TrimSpace(fields.Summary),
		Description: fields.Description,
		Priority:    strings.TrimSpace(fields.Priority.Name),
		Status:      strings.TrimSpace(fields.Status.Name),
		Assignee:    assignee,
		Created:     strings.TrimSpace(fields.Created),
		Updated:     strings.TrimSpace(fields.Updated),
	}
	return notification, nil
}

// normalizeEventType strips the tracker vendor prefix, so both
// "jira:issue_updated" and "issue_updated" land on the same kind.
func normalizeEventType(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if idx := strings.Index(trimmed, ":"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return trimmed
}
