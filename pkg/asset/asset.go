// Package asset represents the tables a Stitch source replicates as
// downstream assets an orchestrator can key materializations on.
package asset

import (
	"sort"
	"time"

	"github.com/msnidal/stitch-connect/pkg/stitch"
)

// Key identifies one replicated table as "<source name>/<stream name>".
type Key string

// NewKey builds an asset key from a source and stream name.
func NewKey(sourceName, streamName string) Key {
	return Key(sourceName + "/" + streamName)
}

// Asset describes one replicated table.
type Asset struct {
	Key        Key    `json:"key"`
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`
	StreamName string `json:"stream_name"`
	StreamID   string `json:"stream_id"`
	Selected   bool   `json:"selected"`

	// Properties are the selected column names, when a schema was fetched.
	Properties []string `json:"properties,omitempty"`
}

// Materialization records that a replication run refreshed one asset.
type Materialization struct {
	Key      Key       `json:"key"`
	JobName  string    `json:"job_name"`
	LoadedAt time.Time `json:"loaded_at"`

	// Metadata carries descriptive values for the orchestration host's run
	// log (row schema, source type, timings).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Stream aliases the client stream type so callers of this package do not
// need to import both for catalog construction.
type Stream = stitch.Stream

// CatalogFromStreams builds the asset catalog of a source from its stream
// list and any fetched schemas, ordered by stream name.
func CatalogFromStreams(source *stitch.Source, streams map[string]Stream, schemas map[string]stitch.StreamSchema) []Asset {
	assets := make([]Asset, 0, len(streams))
	for name, stream := range streams {
		a := Asset{
			Key:        NewKey(source.Name, name),
			SourceID:   source.ID.String(),
			SourceName: source.Name,
			StreamName: name,
			StreamID:   stream.StreamID.String(),
			Selected:   stream.IsSelected(),
		}
		if schema, ok := schemas[name]; ok {
			a.Properties = append(a.Properties, schema.SelectedProperties...)
		}
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].StreamName < assets[j].StreamName })
	return assets
}

// MaterializationsFromReport converts a finished sync report into one
// materialization per loaded stream, ordered by stream name.
func MaterializationsFromReport(report *stitch.SyncReport) []Materialization {
	if report == nil {
		return nil
	}

	out := make([]Materialization, 0, len(report.Loads))
	for name, load := range report.Loads {
		m := Materialization{
			Key:     NewKey(report.SourceName, name),
			JobName: report.JobName,
			Metadata: map[string]any{
				"source_id":   report.SourceID.String(),
				"source_type": report.Extraction.SourceType,
				"stream":      name,
			},
		}
		if loadedAt, ok := load.LoadedAt(); ok {
			m.LoadedAt = loadedAt
			m.Metadata["last_batch_loaded_at"] = load.LastBatchLoadedAt
		}
		if schema, ok := report.Schemas[name]; ok {
			m.Metadata["properties"] = schema.SelectedProperties
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
