// Package activities implements Temporal activities for Stitch replication.
package activities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/msnidal/stitch-connect/internal/reportstore"
	"github.com/msnidal/stitch-connect/pkg/asset"
	"github.com/msnidal/stitch-connect/pkg/stitch"
)

// Activities holds the Stitch Temporal activities and their dependencies.
type Activities struct {
	config    stitch.Config
	reports   reportstore.Store
	newClient func(stitch.Config) (*stitch.Client, error)
}

// NewActivities creates an Activities instance bound to the worker's Stitch
// configuration and report store. The report store may be nil when
// archiving is not wanted.
func NewActivities(config stitch.Config, reports reportstore.Store) *Activities {
	return &Activities{
		config:    config,
		reports:   reports,
		newClient: stitch.New,
	}
}

func (a *Activities) client() (*stitch.Client, error) {
	return a.newClient(a.config)
}

// =============================================================================
// ACTIVITY 1: RunReplication
// =============================================================================

// RunReplication triggers a replication job and blocks until it completes,
// heartbeating on every status poll.
func (a *Activities) RunReplication(ctx context.Context, req ReplicationRunRequest) (*ReplicationRunResult, error) {
	logger := activity.GetLogger(ctx)

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger.Info("starting replication run", "runId", runID, "sourceId", req.SourceID)

	client, err := a.client()
	if err != nil {
		return nil, asActivityError(err)
	}

	opts := &stitch.PollOptions{
		Interval:          time.Duration(req.PollIntervalSecs) * time.Second,
		ExtractionTimeout: time.Duration(req.ExtractionTimeoutSecs) * time.Second,
		LoadTimeout:       time.Duration(req.LoadTimeoutSecs) * time.Second,
		OnPoll: func(phase string) {
			activity.RecordHeartbeat(ctx, phase)
		},
	}

	report, err := client.StartReplicationJobAndPoll(ctx, req.SourceID, opts)
	if err != nil {
		return nil, asActivityError(err)
	}

	materializations := asset.MaterializationsFromReport(report)
	logger.Info("replication run complete",
		"runId", runID, "jobName", report.JobName, "streams", len(materializations))

	return &ReplicationRunResult{
		RunID:            runID,
		SourceID:         req.SourceID,
		SourceName:       report.SourceName,
		JobName:          report.JobName,
		Materializations: materializations,
		Report:           report,
	}, nil
}

// =============================================================================
// ACTIVITY 2: ValidateConnection
// =============================================================================

// ValidateConnection checks the configured credentials against the Stitch
// API, optionally confirming one source exists. Rejected credentials and
// missing sources come back as an invalid result rather than an error.
func (a *Activities) ValidateConnection(ctx context.Context, req ValidationRequest) (*ValidationResult, error) {
	client, err := a.client()
	if err != nil {
		var validationErr *stitch.ValidationError
		if errors.As(err, &validationErr) {
			return &ValidationResult{Valid: false, Message: validationErr.Error()}, nil
		}
		return nil, asActivityError(err)
	}

	if req.SourceID != "" {
		_, err = client.GetSource(ctx, req.SourceID)
	} else {
		_, err = client.ListSources(ctx)
	}
	if err != nil {
		var authErr *stitch.AuthenticationError
		var notFoundErr *stitch.NotFoundError
		if errors.As(err, &authErr) || errors.As(err, &notFoundErr) {
			return &ValidationResult{Valid: false, Message: err.Error()}, nil
		}
		return nil, asActivityError(err)
	}

	return &ValidationResult{Valid: true, Message: "Connection successful"}, nil
}

// =============================================================================
// ACTIVITY 3: CollectAssetCatalog
// =============================================================================

// CollectAssetCatalog lists the streams of a source as downstream assets.
func (a *Activities) CollectAssetCatalog(ctx context.Context, req CatalogRequest) (*CatalogResult, error) {
	logger := activity.GetLogger(ctx)

	client, err := a.client()
	if err != nil {
		return nil, asActivityError(err)
	}

	source, err := client.GetSource(ctx, req.SourceID)
	if err != nil {
		return nil, asActivityError(err)
	}

	streams, err := client.ListStreams(ctx, req.SourceID)
	if err != nil {
		return nil, asActivityError(err)
	}

	schemas := make(map[string]stitch.StreamSchema)
	if req.IncludeSchemas {
		for name, stream := range streams {
			if !stream.IsSelected() {
				continue
			}
			schema, err := client.GetStreamSchema(ctx, req.SourceID, stream.StreamID.String())
			if err != nil {
				return nil, asActivityError(err)
			}
			schemas[name] = *schema
		}
	}

	assets := asset.CatalogFromStreams(source, streams, schemas)
	logger.Info("collected asset catalog", "sourceId", req.SourceID, "assets", len(assets))

	return &CatalogResult{SourceName: source.Name, Assets: assets}, nil
}

// =============================================================================
// ACTIVITY 4: ArchiveRunReport
// =============================================================================

// ArchiveRunReport persists a finished run's report and materializations to
// the report store and returns the storage URI.
func (a *Activities) ArchiveRunReport(ctx context.Context, result ReplicationRunResult) (string, error) {
	if a.reports == nil {
		return "", nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal run report: %w", err)
	}

	uri, err := a.reports.Put(ctx, result.RunID, payload)
	if err != nil {
		return "", err
	}

	activity.GetLogger(ctx).Info("archived run report", "runId", result.RunID, "uri", uri)
	return uri, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// asActivityError marks errors that a Temporal retry cannot fix as
// non-retryable so the workflow fails fast instead of re-triggering jobs.
func asActivityError(err error) error {
	var validationErr *stitch.ValidationError
	var authErr *stitch.AuthenticationError
	var notFoundErr *stitch.NotFoundError
	var jobErr *stitch.JobFailedError
	var timeoutErr *stitch.TimeoutError

	switch {
	case errors.As(err, &validationErr):
		return temporal.NewNonRetryableApplicationError(err.Error(), "VALIDATION", err)
	case errors.As(err, &authErr):
		return temporal.NewNonRetryableApplicationError(err.Error(), "AUTHENTICATION", err)
	case errors.As(err, &notFoundErr):
		return temporal.NewNonRetryableApplicationError(err.Error(), "NOT_FOUND", err)
	case errors.As(err, &jobErr):
		return temporal.NewNonRetryableApplicationError(err.Error(), "JOB_FAILED", err)
	case errors.As(err, &timeoutErr):
		return temporal.NewNonRetryableApplicationError(err.Error(), "POLL_TIMEOUT", err)
	}
	return err
}
