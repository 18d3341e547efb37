package stitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	connhttp "github.com/msnidal/stitch-connect/internal/connector/http"
)

// =============================================================================
// STITCH CONNECT CLIENT
// =============================================================================

// Client is a typed Stitch Connect API client scoped to one account.
type Client struct {
	config    Config
	http      *connhttp.Client
	paginator *connhttp.LinkPaginator
}

// New creates a Stitch client. The configuration is validated before any
// network I/O happens.
func New(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	httpConfig := connhttp.DefaultClientConfig()
	httpConfig.BaseURL = config.BaseURL
	httpConfig.Auth = connhttp.BearerToken{Token: config.APIToken}
	httpConfig.Headers["Accept"] = "application/json"
	if config.MaxRetries > 0 {
		httpConfig.MaxRetries = config.MaxRetries
	}
	if config.RequestTimeout > 0 {
		httpConfig.Timeout = config.RequestTimeout
	}

	basePath := ""
	if u, err := url.Parse(config.BaseURL); err == nil {
		basePath = u.Path
	}

	return &Client{
		config:    config,
		http:      connhttp.NewClient(httpConfig),
		paginator: &connhttp.LinkPaginator{BasePath: basePath},
	}, nil
}

// AccountID returns the account this client is scoped to.
func (c *Client) AccountID() string { return c.config.AccountID }

// Config returns a copy of the client configuration.
func (c *Client) Config() Config { return c.config }

// =============================================================================
// SOURCES
// =============================================================================

// GetSource retrieves metadata for a single data source.
func (c *Client) GetSource(ctx context.Context, sourceID string) (*Source, error) {
	if err := requireID("sourceId", sourceID); err != nil {
		return nil, err
	}

	var source Source
	if err := c.getObject(ctx, "sources/"+sourceID, "source "+sourceID, &source); err != nil {
		return nil, err
	}
	return &source, nil
}

// ListSources lists all data sources in the account.
func (c *Client) ListSources(ctx context.Context) ([]Source, error) {
	var sources []Source
	if err := c.getList(ctx, "sources", "sources", &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// =============================================================================
// STREAMS
// =============================================================================

// ListStreams lists the streams of a source, keyed by stream name.
func (c *Client) ListStreams(ctx context.Context, sourceID string) (map[string]Stream, error) {
	if err := requireID("sourceId", sourceID); err != nil {
		return nil, err
	}

	var streams []Stream
	if err := c.getList(ctx, "sources/"+sourceID+"/streams", "streams of source "+sourceID, &streams); err != nil {
		return nil, err
	}

	byName := make(map[string]Stream, len(streams))
	for _, s := range streams {
		byName[s.StreamName] = s
	}
	return byName, nil
}

// GetStreamSchema retrieves the schema of one stream, reduced to the
// selected property names.
func (c *Client) GetStreamSchema(ctx context.Context, sourceID, streamID string) (*StreamSchema, error) {
	if err := requireID("sourceId", sourceID); err != nil {
		return nil, err
	}
	if err := requireID("streamId", streamID); err != nil {
		return nil, err
	}

	var doc streamSchemaDoc
	path := "sources/" + sourceID + "/streams/" + streamID
	if err := c.getObject(ctx, path, "stream "+streamID, &doc); err != nil {
		return nil, err
	}

	schema := &StreamSchema{
		StreamID:  ID(streamID),
		RawSchema: doc.Schema,
	}
	for _, entry := range doc.Metadata {
		// Property entries have breadcrumb ["properties", "<name>"].
		if len(entry.Breadcrumb) == 2 && entry.Breadcrumb[0] == "properties" && entry.Metadata.Selected {
			schema.SelectedProperties = append(schema.SelectedProperties, entry.Breadcrumb[1])
		}
	}
	return schema, nil
}

// =============================================================================
// EXTRACTIONS AND LOADS
// =============================================================================

// ListExtractions lists the most recent extraction per source across the
// account.
func (c *Client) ListExtractions(ctx context.Context) ([]Extraction, error) {
	var extractions []Extraction
	path := c.config.AccountID + "/extractions"
	if err := c.getList(ctx, path, "extractions", &extractions); err != nil {
		return nil, err
	}
	return extractions, nil
}

// LatestExtraction returns the most recent extraction for the given source,
// or nil when none is visible yet.
func (c *Client) LatestExtraction(ctx context.Context, sourceID string) (*Extraction, error) {
	if err := requireID("sourceId", sourceID); err != nil {
		return nil, err
	}

	extractions, err := c.ListExtractions(ctx)
	if err != nil {
		return nil, err
	}

	var latest *Extraction
	for i := range extractions {
		e := &extractions[i]
		if e.SourceID.String() != sourceID {
			continue
		}
		if latest == nil || e.StartTime > latest.StartTime {
			latest = e
		}
	}
	return latest, nil
}

// ListLoads lists the most recent load per stream across the account,
// nested by source name then stream name.
func (c *Client) ListLoads(ctx context.Context) (map[string]map[string]Load, error) {
	var loads []Load
	path := c.config.AccountID + "/loads"
	if err := c.getList(ctx, path, "loads", &loads); err != nil {
		return nil, err
	}

	bySource := make(map[string]map[string]Load)
	for _, l := range loads {
		streams, ok := bySource[l.SourceName]
		if !ok {
			streams = make(map[string]Load)
			bySource[l.SourceName] = streams
		}
		streams[l.StreamName] = l
	}
	return bySource, nil
}

// SourceLoads returns the per-stream loads of one source by source name.
func (c *Client) SourceLoads(ctx context.Context, sourceName string) (map[string]Load, error) {
	all, err := c.ListLoads(ctx)
	if err != nil {
		return nil, err
	}
	return all[sourceName], nil
}

// =============================================================================
// REPLICATION TRIGGER
// =============================================================================

// StartReplicationJob triggers a replication job (extract and load) for the
// given source and returns the job handle.
//
// Stitch rejects a trigger for a source that is already extracting by
// embedding an error object in the response; that surfaces here as
// *JobFailedError and is never retried.
func (c *Client) StartReplicationJob(ctx context.Context, sourceID string) (*SyncJob, error) {
	if err := requireID("sourceId", sourceID); err != nil {
		return nil, err
	}

	resp, err := c.http.Post(ctx, "sources/"+sourceID+"/sync", nil)
	if err != nil {
		return nil, c.mapError("source "+sourceID, "start replication job", err)
	}

	body := c.unwrap(resp.Body)

	var failure struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &failure); err == nil && len(failure.Error) > 0 && string(failure.Error) != "null" {
		return nil, &JobFailedError{
			SourceID: sourceID,
			Phase:    "trigger",
			Detail:   errorDetail(failure.Error),
		}
	}

	var job SyncJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, &RemoteServiceError{Operation: "start replication job", Err: err}
	}
	if job.JobName == "" {
		return nil, &RemoteServiceError{
			Operation: "start replication job",
			Err:       errors.New("response carried no job_name"),
		}
	}
	return &job, nil
}

// =============================================================================
// TRANSPORT HELPERS
// =============================================================================

// getObject fetches a single JSON object, unwrapping the data envelope when
// present.
func (c *Client) getObject(ctx context.Context, path, resource string, out any) error {
	resp, err := c.http.Get(ctx, path, nil)
	if err != nil {
		return c.mapError(resource, "get "+resource, err)
	}
	if err := json.Unmarshal(c.unwrap(resp.Body), out); err != nil {
		return &RemoteServiceError{Operation: "decode " + resource, Err: err}
	}
	return nil
}

// getList fetches a list endpoint, following links.next across pages and
// accumulating every page's data array into out.
func (c *Client) getList(ctx context.Context, path, resource string, out any) error {
	req := &connhttp.Request{Method: "GET", Path: path}

	var items []json.RawMessage
	for req != nil {
		resp, err := c.http.Do(ctx, req)
		if err != nil {
			return c.mapError(resource, "list "+resource, err)
		}

		var page []json.RawMessage
		if err := json.Unmarshal(c.unwrap(resp.Body), &page); err != nil {
			return &RemoteServiceError{Operation: "decode " + resource, Err: err}
		}
		items = append(items, page...)

		req, err = c.paginator.NextPage(resp)
		if err != nil {
			return &RemoteServiceError{Operation: "paginate " + resource, Err: err}
		}
	}

	merged, err := json.Marshal(items)
	if err != nil {
		return &RemoteServiceError{Operation: "decode " + resource, Err: err}
	}
	if err := json.Unmarshal(merged, out); err != nil {
		return &RemoteServiceError{Operation: "decode " + resource, Err: err}
	}
	return nil
}

// unwrap strips the {"data": ...} envelope when present.
func (c *Client) unwrap(body []byte) json.RawMessage {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		return env.Data
	}
	return body
}

// mapError translates transport errors into the client error taxonomy.
func (c *Client) mapError(resource, operation string, err error) error {
	var httpErr *connhttp.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 401 || httpErr.StatusCode == 403:
			return &AuthenticationError{StatusCode: httpErr.StatusCode, Message: httpErr.Message}
		case httpErr.StatusCode == 404:
			return &NotFoundError{Resource: resource, Message: httpErr.Message}
		}
	}
	return &RemoteServiceError{Operation: operation, Err: err}
}

// requireID rejects blank identifiers before any request is attempted.
func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "required"}
	}
	return nil
}

// errorDetail renders Stitch's error body, which may be a bare string or an
// object with type and message fields.
func errorDetail(raw json.RawMessage) string {
	var obj struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && (obj.Type != "" || obj.Message != "") {
		if obj.Type != "" && obj.Message != "" {
			return fmt.Sprintf("%s: %s", obj.Type, obj.Message)
		}
		return obj.Type + obj.Message
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
