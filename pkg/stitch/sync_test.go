package stitch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/msnidal/stitch-connect/pkg/stitch"
)

func TestStartReplicationJobAndPoll_HappyPath(t *testing.T) {
	api := newStubAPI(t)
	api.installSyncFixtures()

	report, err := api.client().StartReplicationJobAndPoll(context.Background(), testSourceID, nil)
	if err != nil {
		t.Fatalf("replication run failed: %v", err)
	}

	if report.SourceName != testSourceName {
		t.Fatalf("expected source name %q, got %q", testSourceName, report.SourceName)
	}
	if report.JobName != testJobName {
		t.Fatalf("expected job %q, got %q", testJobName, report.JobName)
	}
	if !report.Extraction.Completed() {
		t.Fatal("expected completed extraction in report")
	}
	if _, ok := report.Loads[testStreamName]; !ok {
		t.Fatalf("expected load record for %q, got %v", testStreamName, report.Loads)
	}
	schema, ok := report.Schemas[testStreamName]
	if !ok {
		t.Fatalf("expected schema for %q, got %v", testStreamName, report.Schemas)
	}
	if len(schema.SelectedProperties) != 2 {
		t.Fatalf("expected 2 selected properties, got %v", schema.SelectedProperties)
	}

	// The trigger must fire exactly once regardless of how often status
	// endpoints were polled.
	if got := api.count("POST", "/sources/"+testSourceID+"/sync"); got != 1 {
		t.Fatalf("expected exactly 1 sync trigger, got %d", got)
	}
}

func TestStartReplicationJobAndPoll_ReportsHeartbeats(t *testing.T) {
	api := newStubAPI(t)
	api.installSyncFixtures()

	phases := make(map[string]int)
	opts := &stitch.PollOptions{
		OnPoll: func(phase string) { phases[phase]++ },
	}

	if _, err := api.client().StartReplicationJobAndPoll(context.Background(), testSourceID, opts); err != nil {
		t.Fatalf("replication run failed: %v", err)
	}
	if phases[stitch.PhaseExtraction] == 0 {
		t.Fatal("expected extraction phase heartbeats")
	}
	if phases[stitch.PhaseLoad] == 0 {
		t.Fatal("expected load phase heartbeats")
	}
}

func TestStartReplicationJobAndPoll_TapFailure(t *testing.T) {
	api := newStubAPI(t)
	api.installSyncFixtures()
	api.handleJSON("GET", "/"+testAccountID+"/extractions",
		extractionBody(testJobName, 1, "tap exploded", recentTimestamp()))

	_, err := api.client().StartReplicationJobAndPoll(context.Background(), testSourceID, nil)
	var jobErr *stitch.JobFailedError
	if !errors.As(err, &jobErr) {
		t.Fatalf("expected *JobFailedError, got %T: %v", err, err)
	}
	if jobErr.Phase != "tap" {
		t.Fatalf("expected tap phase, got %q", jobErr.Phase)
	}
	if jobErr.Detail != "exit status 1: tap exploded" {
		t.Fatalf("unexpected detail %q", jobErr.Detail)
	}
}

func TestStartReplicationJobAndPoll_LoadErrorState(t *testing.T) {
	api := newStubAPI(t)
	api.installSyncFixtures()
	api.handleJSON("GET", "/"+testAccountID+"/loads",
		loadsBody(futureTimestamp(), `{"notification_version":1,"type":"load_error","message":"table size exceeded"}`))

	_, err := api.client().StartReplicationJobAndPoll(context.Background(), testSourceID, nil)
	var jobErr *stitch.JobFailedError
	if !errors.As(err, &jobErr) {
		t.Fatalf("expected *JobFailedError, got %T: %v", err, err)
	}
	if jobErr.Phase != stitch.PhaseLoad {
		t.Fatalf("expected load phase, got %q", jobErr.Phase)
	}
	if jobErr.Stream != testStreamName {
		t.Fatalf("expected stream %q, got %q", testStreamName, jobErr.Stream)
	}
}

func TestStartReplicationJobAndPoll_ExtractionTimeout(t *testing.T) {
	api := newStubAPI(t)
	api.installSyncFixtures()
	// Only a stale extraction from a different job is ever visible.
	api.handleJSON("GET", "/"+testAccountID+"/extractions",
		extractionBody("some-old-job", 0, "", "2020-01-01T00:00:00Z"))

	opts := &stitch.PollOptions{
		Interval:          5 * time.Millisecond,
		ExtractionTimeout: 50 * time.Millisecond,
	}
	_, err := api.client().StartReplicationJobAndPoll(context.Background(), testSourceID, opts)
	var timeoutErr *stitch.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
	if timeoutErr.Phase != stitch.PhaseExtraction {
		t.Fatalf("expected extraction phase, got %q", timeoutErr.Phase)
	}
}

func TestStartReplicationJobAndPoll_LoadTimeoutStopsPolling(t *testing.T) {
	api := newStubAPI(t)
	api.installSyncFixtures()
	// Loads never catch up: the last batch predates the trigger.
	api.handleJSON("GET", "/"+testAccountID+"/loads",
		loadsBody("2020-01-01T00:00:00Z", "null"))

	opts := &stitch.PollOptions{
		Interval:    5 * time.Millisecond,
		LoadTimeout: 50 * time.Millisecond,
	}
	_, err := api.client().StartReplicationJobAndPoll(context.Background(), testSourceID, opts)
	var timeoutErr *stitch.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
	if timeoutErr.Phase != stitch.PhaseLoad {
		t.Fatalf("expected load phase, got %q", timeoutErr.Phase)
	}

	// No further polling once the timeout fires.
	before := api.total()
	time.Sleep(50 * time.Millisecond)
	if after := api.total(); after != before {
		t.Fatalf("polling continued after timeout: %d -> %d requests", before, after)
	}
}

func TestStartReplicationJobAndPoll_UnknownSourceTriggersNothing(t *testing.T) {
	api := newStubAPI(t)
	// No routes installed: GetSource 404s before any trigger.

	_, err := api.client().StartReplicationJobAndPoll(context.Background(), testSourceID, nil)
	var notFoundErr *stitch.NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected *NotFoundError, got %T: %v", err, err)
	}
	if got := api.count("POST", "/sources/"+testSourceID+"/sync"); got != 0 {
		t.Fatalf("expected no sync trigger, got %d", got)
	}
}

func TestStartReplicationJobAndPoll_CancelStopsRun(t *testing.T) {
	api := newStubAPI(t)
	api.installSyncFixtures()
	// Extraction never matches so the runner keeps polling until cancelled.
	api.handleJSON("GET", "/"+testAccountID+"/extractions",
		extractionBody("some-old-job", 0, "", "2020-01-01T00:00:00Z"))

	ctx, cancel := context.WithCancel(context.Background())
	opts := &stitch.PollOptions{
		Interval:          5 * time.Millisecond,
		ExtractionTimeout: -1,
		OnPoll: func(string) {
			cancel()
		},
	}

	_, err := api.client().StartReplicationJobAndPoll(ctx, testSourceID, opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
