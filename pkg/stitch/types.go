package stitch

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultBaseURL is the Stitch Connect API v4 root.
const DefaultBaseURL = "https://api.stitchdata.com/v4"

// TimeFormat is the timestamp layout used by the Stitch API.
const TimeFormat = "2006-01-02T15:04:05Z"

const (
	// DefaultPollInterval between status polls.
	DefaultPollInterval = 10 * time.Second

	// DefaultExtractionTimeout bounds the extraction phase of a sync.
	DefaultExtractionTimeout = 10 * time.Minute

	// DefaultLoadTimeout bounds the load phase of a sync.
	DefaultLoadTimeout = 10 * time.Minute
)

// Config holds Stitch connection configuration.
type Config struct {
	// AccountID is the Stitch account (client) identifier. Stitch reports it
	// back as stitch_client_id in API payloads.
	AccountID string `json:"accountId"`

	// APIToken is the Stitch API access token, generated under
	// "API Access Keys" in the account settings page.
	APIToken string `json:"apiToken"`

	// BaseURL overrides the API root (tests, regional deployments).
	BaseURL string `json:"baseUrl,omitempty"`

	// MaxRetries is the per-request retry budget for transport and 429/5xx
	// failures.
	MaxRetries int `json:"maxRetries,omitempty"`

	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration `json:"-"`

	// PollInterval between job status polls.
	PollInterval time.Duration `json:"-"`

	// ExtractionTimeout bounds the extraction phase. Zero means no limit.
	ExtractionTimeout time.Duration `json:"-"`

	// LoadTimeout bounds the load phase. Zero means no limit.
	LoadTimeout time.Duration `json:"-"`
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AccountID) == "" {
		return &ValidationError{Field: "accountId", Message: "required"}
	}
	if strings.TrimSpace(c.APIToken) == "" {
		return &ValidationError{Field: "apiToken", Message: "required"}
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ID is a Stitch identifier. The API is inconsistent about whether ids are
// JSON numbers or strings, so both decode into the same type.
type ID string

// UnmarshalJSON accepts a string, a number, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*id = ID(v)
		return nil
	}
	*id = ID(s)
	return nil
}

func (id ID) String() string { return string(id) }

// =============================================================================
// STITCH API RESPONSE TYPES
// =============================================================================

// Source is a replication pipeline within a Stitch account.
type Source struct {
	ID             ID     `json:"id"`
	Name           string `json:"name"`
	DisplayName    string `json:"display_name,omitempty"`
	Type           string `json:"type,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
	PausedAt       string `json:"paused_at,omitempty"`
	StitchClientID ID     `json:"stitch_client_id,omitempty"`
}

// StreamMetadata carries the selection and replication settings of a stream.
type StreamMetadata struct {
	Selected           bool     `json:"selected"`
	ReplicationMethod  string   `json:"forced-replication-method,omitempty"`
	Inclusion          string   `json:"inclusion,omitempty"`
	TableKeyProperties []string `json:"table-key-properties,omitempty"`
}

// Stream is a single table or collection extracted from a source.
type Stream struct {
	StreamID    ID             `json:"stream_id"`
	TapStreamID string         `json:"tap_stream_id,omitempty"`
	StreamName  string         `json:"stream_name"`
	Selected    bool           `json:"selected"`
	Metadata    StreamMetadata `json:"metadata"`
}

// IsSelected reports whether the stream is selected for replication.
// Stitch repeats the flag at the top level and inside metadata.
func (s *Stream) IsSelected() bool {
	return s.Selected || s.Metadata.Selected
}

// StreamSchema is the discovered schema of a stream, reduced to the
// properties actually selected for replication.
type StreamSchema struct {
	StreamID ID `json:"stream_id"`

	// RawSchema is the JSON Schema document as Stitch returns it (a string).
	RawSchema string `json:"schema,omitempty"`

	// SelectedProperties are the property names whose metadata entries are
	// marked selected.
	SelectedProperties []string `json:"selected_properties"`
}

// streamSchemaDoc is the wire shape of GET sources/{id}/streams/{streamID}.
type streamSchemaDoc struct {
	Schema   string `json:"schema"`
	Metadata []struct {
		Breadcrumb []string `json:"breadcrumb"`
		Metadata   struct {
			Selected bool `json:"selected"`
		} `json:"metadata"`
	} `json:"metadata"`
}

// Extraction is the record of one extraction job run.
type Extraction struct {
	JobName              string `json:"job_name"`
	SourceID             ID     `json:"source_id"`
	SourceType           string `json:"source_type,omitempty"`
	StartTime            string `json:"start_time,omitempty"`
	CompletionTime       string `json:"completion_time,omitempty"`
	DiscoveryExitStatus  *int   `json:"discovery_exit_status"`
	DiscoveryDescription string `json:"discovery_description,omitempty"`
	TapExitStatus        *int   `json:"tap_exit_status"`
	TapDescription       string `json:"tap_description,omitempty"`
	TargetExitStatus     *int   `json:"target_exit_status"`
	TargetDescription    string `json:"target_description,omitempty"`
	StitchClientID       ID     `json:"stitch_client_id,omitempty"`
}

// StartedAt parses the extraction start time.
func (e *Extraction) StartedAt() (time.Time, bool) {
	t, err := time.Parse(TimeFormat, e.StartTime)
	return t, err == nil
}

// Completed reports whether the extraction reached a terminal state.
func (e *Extraction) Completed() bool {
	return e.CompletionTime != ""
}

// FailedPhase returns the first extraction phase that exited nonzero.
func (e *Extraction) FailedPhase() (phase string, status int, detail string, failed bool) {
	checks := []struct {
		phase  string
		status *int
		detail string
	}{
		{"discovery", e.DiscoveryExitStatus, e.DiscoveryDescription},
		{"tap", e.TapExitStatus, e.TapDescription},
		{"target", e.TargetExitStatus, e.TargetDescription},
	}
	for _, c := range checks {
		if c.status != nil && *c.status != 0 {
			return c.phase, *c.status, c.detail, true
		}
	}
	return "", 0, "", false
}

// ErrorState describes a failed load for a stream.
type ErrorState struct {
	Message             string `json:"message,omitempty"`
	NotificationVersion int    `json:"notification_version,omitempty"`
}

// Load is the record of the most recent batch loaded for a stream.
type Load struct {
	SourceName        string      `json:"source_name"`
	StreamName        string      `json:"stream_name"`
	LastBatchLoadedAt string      `json:"last_batch_loaded_at,omitempty"`
	ErrorState        *ErrorState `json:"error_state"`
	StitchClientID    ID          `json:"stitch_client_id,omitempty"`
}

// LoadedAt parses the last batch load time.
func (l *Load) LoadedAt() (time.Time, bool) {
	if l.LastBatchLoadedAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(TimeFormat, l.LastBatchLoadedAt)
	return t, err == nil
}

// SyncJob is the handle returned when a replication job is triggered.
type SyncJob struct {
	JobName string `json:"job_name"`
}

// SyncReport is the outcome of a complete replication run: the terminal
// extraction record, the per-stream load records, and the schemas of the
// selected streams.
type SyncReport struct {
	SourceID   ID                      `json:"source_id"`
	SourceName string                  `json:"source_name"`
	JobName    string                  `json:"job_name"`
	Extraction Extraction              `json:"extraction"`
	Loads      map[string]Load         `json:"loads"`
	Schemas    map[string]StreamSchema `json:"schemas"`
}

// =============================================================================
// RESPONSE ENVELOPE
// =============================================================================

// envelope is the paged response wrapper used by list endpoints.
type envelope struct {
	Data  json.RawMessage   `json:"data"`
	Page  int               `json:"page,omitempty"`
	Total int               `json:"total,omitempty"`
	Links map[string]string `json:"links,omitempty"`
}
