package sync

import (
	"errors"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefectProfile controls how failure detail maps onto the created tracker
// issue: priority per test outcome, fixed labels, and the requirement link
// type.
type DefectProfile struct {
	Version         int               `toml:"version"`
	DefaultPriority string            `toml:"default_priority"`
	LinkType        string            `toml:"link_type"`
	Labels          []string          `toml:"labels"`
	Priorities      map[string]string `toml:"priorities"`
}

func DefaultDefectProfile() DefectProfile {
	return DefectProfile{
		Version:         1,
		DefaultPriority: "High",
		LinkType:        "Relates",
		Labels:          []string{"automated-testing", "test-failure"},
		Priorities: map[string]string{
			"failed": "High",
			"error":  "Highest",
		},
	}
}

// LoadDefectProfile reads a TOML profile, falling back to the built-in
// defaults when no path is configured.
func LoadDefectProfile(path string) (DefectProfile, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return DefaultDefectProfile(), nil
	}

	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return DefectProfile{}, err
	}

	var profile DefectProfile
	if err := toml.Unmarshal(raw, &profile); err != nil {
		return DefectProfile{}, err
	}
	if profile.Version != 1 {
		return DefectProfile{}, errors.New("unsupported defect profile version: expected version = 1")
	}
	return profile.withDefaults(), nil
}

func (p DefectProfile) withDefaults() DefectProfile {
	base := DefaultDefectProfile()
	if p.DefaultPriority == "" {
		p.DefaultPriority = base.DefaultPriority
	}
	if p.LinkType == "" {
		p.LinkType = base.LinkType
	}
	if len(p.Labels) == 0 {
		p.Labels = base.Labels
	}
	if p.Priorities == nil {
		p.Priorities = base.Priorities
	}
	return p
}

// PriorityFor maps a test outcome to a tracker priority name.
func (p DefectProfile) PriorityFor(testStatus string) string {
	if priority, ok := p.Priorities[strings.ToLower(strings.TrimSpace(testStatus))]; ok && priority != "" {
		return priority
	}
	return p.DefaultPriority
}
