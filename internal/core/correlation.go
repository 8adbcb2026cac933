package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ObjectKind distinguishes job-level from pipeline-level CI objects. The
// values match GitLab's object_kind field.
type ObjectKind string

const (
	ObjectBuild    ObjectKind = "build"
	ObjectPipeline ObjectKind = "pipeline"
)

// ExternalCorrelation travels with every check run as its external id and
// with every mirrored descriptor as a variable. It is the only link from a CI
// object back to the GitHub context that started it.
type ExternalCorrelation struct {
	Kind           ObjectKind `json:"object_kind"`
	ObjectID       int        `json:"object_id"`
	ProjectID      int        `json:"project_id"`
	SourceRef      string     `json:"source_ref,omitempty"`
	SourcePRID     int        `json:"source_pr_id,omitempty"`
	SourceSHA      string     `json:"source_sha,omitempty"`
	InstallationID int64      `json:"installation_id,omitempty"`
}

// Encode serializes the correlation for a check-run external id.
func (c ExternalCorrelation) Encode() (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode correlation: %w", err)
	}
	return string(b), nil
}

// DecodeCorrelation parses an external id produced by Encode.
func DecodeCorrelation(raw string) (ExternalCorrelation, error) {
	var c ExternalCorrelation
	if raw == "" {
		return c, &CorrelationDecodeError{Raw: raw, Err: errors.New("empty external id")}
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return ExternalCorrelation{}, &CorrelationDecodeError{Raw: raw, Err: err}
	}
	if err := c.validate(); err != nil {
		return ExternalCorrelation{}, &CorrelationDecodeError{Raw: raw, Err: err}
	}
	return c, nil
}

// WithObject returns a copy of c pointing at another CI object of the same run.
func (c ExternalCorrelation) WithObject(kind ObjectKind, id int) ExternalCorrelation {
	c.Kind = kind
	c.ObjectID = id
	return c
}

func (c ExternalCorrelation) validate() error {
	switch c.Kind {
	case ObjectBuild, ObjectPipeline:
	default:
		return fmt.Errorf("unknown object kind %q", c.Kind)
	}
	if c.ProjectID <= 0 {
		return fmt.Errorf("project id must be positive, got %d", c.ProjectID)
	}
	return nil
}
