package sync

import (
	"fmt"
	"testing"
)

func TestIsRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", NewValidationError("issue.id", "is required"), false},
		{"not found", NewNotFoundError("test result", "TR-1"), false},
		{"tracker rate limit", &TrackerAPIError{Status: 429}, true},
		{"tracker server error", &TrackerAPIError{Status: 503}, true},
		{"tracker bad request", &TrackerAPIError{Status: 400}, false},
		{"tracker unauthorized", &TrackerAPIError{Status: 401}, false},
		{"repository", &RepositoryError{Op: "upsert issue", Err: fmt.Errorf("disk full")}, true},
		{"wrapped tracker error", fmt.Errorf("create defect: %w", &TrackerAPIError{Status: 500}), true},
		{"wrapped validation", fmt.Errorf("ingest: %w", NewValidationError("payload", "empty body")), false},
		{"unclassified", fmt.Errorf("connection reset"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestRepositoryErrorUnwraps(t *testing.T) {
	cause := fmt.Errorf("database is locked")
	err := &RepositoryError{Op: "attach defect", Err: cause}
	if err.Unwrap() != cause {
		t.Fatal("Unwrap() did not return the cause")
	}
}
