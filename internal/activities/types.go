package activities

import (
	"github.com/msnidal/stitch-connect/pkg/asset"
	"github.com/msnidal/stitch-connect/pkg/stitch"
)

// ReplicationRunRequest asks for one replication job to be triggered and
// polled to completion. Credentials are not part of the request; they belong
// to the worker's process-scoped configuration.
type ReplicationRunRequest struct {
	// RunID labels the run; generated when empty.
	RunID string `json:"runId,omitempty"`

	// SourceID is the Stitch data source to replicate.
	SourceID string `json:"sourceId"`

	// Poll overrides, in seconds. Zero values use the worker defaults.
	PollIntervalSecs      int `json:"pollIntervalSecs,omitempty"`
	ExtractionTimeoutSecs int `json:"extractionTimeoutSecs,omitempty"`
	LoadTimeoutSecs       int `json:"loadTimeoutSecs,omitempty"`
}

// ReplicationRunResult reports a finished replication run.
type ReplicationRunResult struct {
	RunID            string                  `json:"runId"`
	SourceID         string                  `json:"sourceId"`
	SourceName       string                  `json:"sourceName"`
	JobName          string                  `json:"jobName"`
	Materializations []asset.Materialization `json:"materializations"`
	Report           *stitch.SyncReport      `json:"report,omitempty"`
}

// ValidationRequest asks for a connection (and optionally one source) to be
// checked.
type ValidationRequest struct {
	SourceID string `json:"sourceId,omitempty"`
}

// ValidationResult reports the outcome of a connection check.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// CatalogRequest asks for the asset catalog of a source.
type CatalogRequest struct {
	SourceID string `json:"sourceId"`

	// IncludeSchemas fetches per-stream schemas for selected streams.
	IncludeSchemas bool `json:"includeSchemas,omitempty"`
}

// CatalogResult carries the asset catalog of a source.
type CatalogResult struct {
	SourceName string        `json:"sourceName"`
	Assets     []asset.Asset `json:"assets"`
}
