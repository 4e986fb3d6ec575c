package ports

import "context"

// TrackerIssue is an issue as read from the tracker API.
type TrackerIssue struct {
	Key         string
	IssueType   string
	Summary     string
	Description string
	Priority    string
	Status      string
	Assignee    string
	Created     string
	Updated     string
}

// CreateIssueRequest is an outbound issue-creation call. Description is a
// marshalable document in whatever rich-text format the tracker expects.
type CreateIssueRequest struct {
	Project     string
	IssueType   string
	Summary     string
	Description any
	Priority    string
	Labels      []string
}

// TrackerClient is the authenticated tracker API surface the sync engine
// consumes. Implementations carry their own credentials and bounded
// timeouts; rate limits and 5xx responses surface as retryable
// TrackerAPIErrors.
type TrackerClient interface {
	GetIssue(ctx context.Context, key string) (TrackerIssue, error)
	// CreateIssue returns the key of the created issue.
	CreateIssue(ctx context.Context, req CreateIssueRequest) (string, error)
	// LinkIssues relates inwardKey to outwardKey with the given link type.
	LinkIssues(ctx context.Context, inwardKey string, outwardKey string, linkType string) error
	// SearchIssues pages through issues matching the JQL filter and returns
	// the page plus the total match count.
	SearchIssues(ctx context.Context, jql string, startAt int, maxResults int) ([]TrackerIssue, int, error)
}
