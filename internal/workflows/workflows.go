// Package workflows provides Temporal workflow definitions for Stitch
// replication runs.
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/msnidal/stitch-connect/internal/activities"
	"github.com/msnidal/stitch-connect/pkg/asset"
)

// =============================================================================
// WORKFLOW NAMES
// =============================================================================

const (
	ReplicationRunWorkflow = "replicationRunWorkflow"
	TestConnectionWorkflow = "testConnectionWorkflow"
	AssetCatalogWorkflow   = "assetCatalogWorkflow"
)

// =============================================================================
// ACTIVITY OPTIONS
// =============================================================================

// replicationActivityOptions allow a long poll and require heartbeats.
// The replication activity is never retried: re-running it would trigger a
// second data movement in Stitch.
var replicationActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 4 * time.Hour,
	HeartbeatTimeout:    5 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		MaximumAttempts: 1,
	},
}

var defaultActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 10 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    3,
	},
}

// =============================================================================
// WORKFLOW INPUTS/OUTPUTS
// =============================================================================

// ReplicationRunInput is the input for ReplicationRunWorkflow.
type ReplicationRunInput struct {
	SourceID              string `json:"sourceId"`
	RunID                 string `json:"runId,omitempty"`
	PollIntervalSecs      int    `json:"pollIntervalSecs,omitempty"`
	ExtractionTimeoutSecs int    `json:"extractionTimeoutSecs,omitempty"`
	LoadTimeoutSecs       int    `json:"loadTimeoutSecs,omitempty"`

	// SkipArchive disables run-report archiving for this run.
	SkipArchive bool `json:"skipArchive,omitempty"`
}

// ReplicationRunOutput is the result of ReplicationRunWorkflow.
type ReplicationRunOutput struct {
	RunID            string                  `json:"runId"`
	SourceName       string                  `json:"sourceName"`
	JobName          string                  `json:"jobName"`
	Materializations []asset.Materialization `json:"materializations"`
	ReportURI        string                  `json:"reportUri,omitempty"`
}

// =============================================================================
// REPLICATION RUN WORKFLOW
// =============================================================================

// ReplicationRunWorkflowFunc triggers one Stitch replication job, waits for
// it to finish, archives the run report, and returns the resulting asset
// materializations.
func ReplicationRunWorkflowFunc(ctx workflow.Context, input ReplicationRunInput) (*ReplicationRunOutput, error) {
	logger := workflow.GetLogger(ctx)

	if input.SourceID == "" {
		return nil, temporal.NewApplicationError("sourceId is required", "INVALID_INPUT")
	}

	var acts *activities.Activities

	// Step 1: trigger and poll the replication job.
	runCtx := workflow.WithActivityOptions(ctx, replicationActivityOptions)
	var result activities.ReplicationRunResult
	err := workflow.ExecuteActivity(runCtx, acts.RunReplication, activities.ReplicationRunRequest{
		RunID:                 input.RunID,
		SourceID:              input.SourceID,
		PollIntervalSecs:      input.PollIntervalSecs,
		ExtractionTimeoutSecs: input.ExtractionTimeoutSecs,
		LoadTimeoutSecs:       input.LoadTimeoutSecs,
	}).Get(ctx, &result)
	if err != nil {
		return nil, err
	}

	output := &ReplicationRunOutput{
		RunID:            result.RunID,
		SourceName:       result.SourceName,
		JobName:          result.JobName,
		Materializations: result.Materializations,
	}

	// Step 2: archive the run report. Failures are logged, not fatal; the
	// materializations already happened.
	if !input.SkipArchive {
		archiveCtx := workflow.WithActivityOptions(ctx, defaultActivityOptions)
		var uri string
		if err := workflow.ExecuteActivity(archiveCtx, acts.ArchiveRunReport, result).Get(ctx, &uri); err != nil {
			logger.Warn("run report archive failed", "runId", result.RunID, "error", err)
		} else {
			output.ReportURI = uri
		}
	}

	logger.Info("replication run finished",
		"runId", result.RunID, "jobName", result.JobName, "assets", len(result.Materializations))
	return output, nil
}

// =============================================================================
// CONNECTION TEST WORKFLOW
// =============================================================================

// TestConnectionWorkflowFunc checks credentials and source visibility.
func TestConnectionWorkflowFunc(ctx workflow.Context, input activities.ValidationRequest) (*activities.ValidationResult, error) {
	var acts *activities.Activities
	actCtx := workflow.WithActivityOptions(ctx, defaultActivityOptions)

	var result activities.ValidationResult
	if err := workflow.ExecuteActivity(actCtx, acts.ValidateConnection, input).Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// ASSET CATALOG WORKFLOW
// =============================================================================

// AssetCatalogWorkflowFunc lists the streams of a source as assets.
func AssetCatalogWorkflowFunc(ctx workflow.Context, input activities.CatalogRequest) (*activities.CatalogResult, error) {
	if input.SourceID == "" {
		return nil, temporal.NewApplicationError("sourceId is required", "INVALID_INPUT")
	}

	var acts *activities.Activities
	actCtx := workflow.WithActivityOptions(ctx, defaultActivityOptions)

	var result activities.CatalogResult
	if err := workflow.ExecuteActivity(actCtx, acts.CollectAssetCatalog, input).Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
