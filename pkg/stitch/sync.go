package stitch

import (
	"context"
	"strconv"
	"time"
)

// =============================================================================
// REPLICATION RUNNER
// Trigger a sync and poll extraction + load phases to a terminal state.
// =============================================================================

// Poll phases reported through PollOptions.OnPoll.
const (
	PhaseExtraction = "extraction"
	PhaseLoad       = "load"
)

// PollOptions tune a blocking replication run. Zero values fall back to the
// client configuration.
type PollOptions struct {
	// Interval between status polls.
	Interval time.Duration

	// ExtractionTimeout bounds the extraction phase. Zero means the client
	// default; negative means no limit.
	ExtractionTimeout time.Duration

	// LoadTimeout bounds the load phase. Zero means the client default;
	// negative means no limit.
	LoadTimeout time.Duration

	// OnPoll is invoked before each status poll, e.g. to record activity
	// heartbeats.
	OnPoll func(phase string)
}

func (o *PollOptions) interval(cfg *Config) time.Duration {
	if o != nil && o.Interval > 0 {
		return o.Interval
	}
	return cfg.PollInterval
}

func (o *PollOptions) extractionTimeout(cfg *Config) time.Duration {
	if o != nil && o.ExtractionTimeout != 0 {
		return o.ExtractionTimeout
	}
	if cfg.ExtractionTimeout != 0 {
		return cfg.ExtractionTimeout
	}
	return DefaultExtractionTimeout
}

func (o *PollOptions) loadTimeout(cfg *Config) time.Duration {
	if o != nil && o.LoadTimeout != 0 {
		return o.LoadTimeout
	}
	if cfg.LoadTimeout != 0 {
		return cfg.LoadTimeout
	}
	return DefaultLoadTimeout
}

func (o *PollOptions) notify(phase string) {
	if o != nil && o.OnPoll != nil {
		o.OnPoll(phase)
	}
}

// StartReplicationJobAndPoll triggers a replication job for the source and
// blocks until extract and load both finish, a phase times out, or ctx is
// cancelled.
//
// Stitch runs the extract and load stages separately: the trigger returns
// the extraction job name, and loads are observed per stream. The runner
// first polls the account extraction list until the triggered job appears
// and completes with zero discovery/tap/target exit statuses, then polls the
// account load list until every selected stream reports a batch loaded after
// the extraction finished. A stream load carrying an error state fails the
// run. Cancelling or timing out stops polling only; the remote job keeps
// running.
func (c *Client) StartReplicationJobAndPoll(ctx context.Context, sourceID string, opts *PollOptions) (*SyncReport, error) {
	if err := requireID("sourceId", sourceID); err != nil {
		return nil, err
	}

	// Resolving the source up front validates the ID and yields the source
	// name, which keys the account load list.
	source, err := c.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	interval := (opts).interval(&c.config)
	triggeredAt := time.Now().UTC()

	job, err := c.StartReplicationJob(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	extraction, err := c.pollExtraction(ctx, sourceID, job, triggeredAt, interval, opts)
	if err != nil {
		return nil, err
	}

	streams, err := c.ListStreams(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	loads, err := c.pollLoads(ctx, sourceID, source.Name, streams, interval, opts)
	if err != nil {
		return nil, err
	}

	schemas := make(map[string]StreamSchema, len(streams))
	for name, stream := range streams {
		if !stream.IsSelected() {
			continue
		}
		schema, err := c.GetStreamSchema(ctx, sourceID, stream.StreamID.String())
		if err != nil {
			return nil, err
		}
		schemas[name] = *schema
	}

	return &SyncReport{
		SourceID:   source.ID,
		SourceName: source.Name,
		JobName:    job.JobName,
		Extraction: *extraction,
		Loads:      loads,
		Schemas:    schemas,
	}, nil
}

// pollExtraction waits until the triggered job shows up in the account
// extraction list and reaches a terminal state.
func (c *Client) pollExtraction(ctx context.Context, sourceID string, job *SyncJob, triggeredAt time.Time, interval time.Duration, opts *PollOptions) (*Extraction, error) {
	timeout := opts.extractionTimeout(&c.config)
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		opts.notify(PhaseExtraction)

		extraction, err := c.LatestExtraction(ctx, sourceID)
		if err != nil {
			return nil, err
		}

		if extraction != nil && c.matchesJob(extraction, job, triggeredAt) {
			if phase, status, detail, failed := extraction.FailedPhase(); failed {
				if detail == "" {
					detail = "exit status " + strconv.Itoa(status)
				} else {
					detail = "exit status " + strconv.Itoa(status) + ": " + detail
				}
				return nil, &JobFailedError{SourceID: sourceID, Phase: phase, Detail: detail}
			}
			if extraction.Completed() {
				return extraction, nil
			}
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, &TimeoutError{SourceID: sourceID, Phase: PhaseExtraction, Timeout: timeout}
		}
		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}

// matchesJob reports whether the extraction record corresponds to the job we
// triggered. Matching by start time covers the unlikely case of another job
// completing for the same source during polling.
func (c *Client) matchesJob(extraction *Extraction, job *SyncJob, triggeredAt time.Time) bool {
	if extraction.JobName == job.JobName {
		return true
	}
	if started, ok := extraction.StartedAt(); ok {
		return !started.Before(triggeredAt.Truncate(time.Second))
	}
	return false
}

// pollLoads waits until every selected stream reports a batch loaded after
// the load phase began.
func (c *Client) pollLoads(ctx context.Context, sourceID, sourceName string, streams map[string]Stream, interval time.Duration, opts *PollOptions) (map[string]Load, error) {
	timeout := opts.loadTimeout(&c.config)
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	loadStart := time.Now().UTC().Truncate(time.Second)

	for {
		opts.notify(PhaseLoad)

		loads, err := c.SourceLoads(ctx, sourceName)
		if err != nil {
			return nil, err
		}

		complete := true
		for name, stream := range streams {
			if !stream.IsSelected() {
				continue
			}

			load, ok := loads[name]
			if !ok {
				// Not visible yet (first run); keep waiting.
				complete = false
				continue
			}
			if load.ErrorState != nil {
				return nil, &JobFailedError{
					SourceID: sourceID,
					Phase:    PhaseLoad,
					Stream:   name,
					Detail:   load.ErrorState.Message,
				}
			}
			loadedAt, ok := load.LoadedAt()
			if !ok || loadedAt.Before(loadStart) {
				complete = false
			}
		}

		if complete {
			return loads, nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, &TimeoutError{SourceID: sourceID, Phase: PhaseLoad, Timeout: timeout}
		}
		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
