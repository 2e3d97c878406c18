// Package catalog models the stream catalog: which report streams exist,
// their JSON schemas, and the per-field metadata that records whether a
// field is a dimension or a metric. It also generates the catalog from a
// report-definition file (discovery).
package catalog

import (
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/tap-google-analytics/pkg/ga"
	"github.com/ajitpratap0/tap-google-analytics/pkg/taperrors"
)

// Catalog is the list of stream entries.
type Catalog struct {
	Streams []Stream `json:"streams"`
}

// Stream is one catalog entry.
type Stream struct {
	TapStreamID string          `json:"tap_stream_id"`
	Stream      string          `json:"stream"`
	Schema      json.RawMessage `json:"schema"`
	Metadata    []MetadataEntry `json:"metadata"`
}

// MetadataEntry attaches metadata to a breadcrumb: the empty breadcrumb is
// stream-level, ["properties", <field>] is field-level.
type MetadataEntry struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Load reads a catalog from a JSON file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to read catalog file").
			WithDetail("path", path)
	}

	catalog := &Catalog{}
	if err := json.Unmarshal(data, catalog); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to parse catalog file").
			WithDetail("path", path)
	}

	return catalog, nil
}

// streamMetadata returns the stream-level (empty breadcrumb) metadata map.
func (s *Stream) streamMetadata() map[string]interface{} {
	for _, entry := range s.Metadata {
		if len(entry.Breadcrumb) == 0 {
			return entry.Metadata
		}
	}
	return nil
}

// IsSelected reports whether the stream should be synced: an explicit
// selected flag, or inclusion == automatic.
func (s *Stream) IsSelected() bool {
	md := s.streamMetadata()
	if md == nil {
		return false
	}
	if selected, ok := md["selected"].(bool); ok && selected {
		return true
	}
	return md["inclusion"] == "automatic"
}

// KeyProperties returns the stream's table-key-properties.
func (s *Stream) KeyProperties() []string {
	md := s.streamMetadata()
	if md == nil {
		return nil
	}
	switch raw := md["table-key-properties"].(type) {
	case []string:
		return raw
	case []interface{}:
		keys := make([]string, 0, len(raw))
		for _, k := range raw {
			if name, ok := k.(string); ok {
				keys = append(keys, name)
			}
		}
		return keys
	default:
		return nil
	}
}

// ReportDefinition reconstructs the report query for a stream from the
// per-field ga_type metadata, restoring the API's ga: attribute names.
// Field order follows the metadata list, which discovery writes dimensions
// first, metrics second.
func (s *Stream) ReportDefinition() (*ga.ReportDefinition, error) {
	def := &ga.ReportDefinition{Name: s.TapStreamID}

	for _, entry := range s.Metadata {
		if len(entry.Breadcrumb) != 2 || entry.Breadcrumb[0] != "properties" {
			continue
		}
		attribute := strings.ReplaceAll(entry.Breadcrumb[1], "ga_", "ga:")

		switch entry.Metadata["ga_type"] {
		case "dimension":
			def.Dimensions = append(def.Dimensions, attribute)
		case "metric":
			def.Metrics = append(def.Metrics, attribute)
		}
	}

	if len(def.Metrics) == 0 {
		return nil, taperrors.Newf(taperrors.ErrorTypeConfig,
			"stream %q has no metrics in its catalog metadata", s.TapStreamID)
	}

	return def, nil
}
