package catalog

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tap-google-analytics/pkg/ga"
	"github.com/ajitpratap0/tap-google-analytics/pkg/taperrors"
)

// The Reporting API limits one query to 7 dimensions and 10 metrics, and a
// query without metrics is rejected.
const (
	maxDimensions = 7
	maxMetrics    = 10
)

// Replication constants written into the generated catalog.
const (
	replicationMethod = "INCREMENTAL"
	replicationKey    = "_sdc_record_timestamp"
)

//go:embed defaults/default_report_definition.json
var defaultReportDefinitions []byte

// TypeLookup resolves an attribute's emitted data type. *ga.Client satisfies
// it; tests substitute a table-backed fake.
type TypeLookup interface {
	LookupDataType(kind ga.FieldKind, attribute string) (string, error)
}

// LoadReportDefinitions loads report definitions from path, or the bundled
// defaults when path is empty. YAML is accepted alongside JSON.
func LoadReportDefinitions(path string) ([]ga.ReportDefinition, error) {
	data := defaultReportDefinitions
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to read report definitions").
				WithDetail("path", path)
		}
	}

	var defs []ga.ReportDefinition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &defs); err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "invalid YAML report definitions").
				WithDetail("path", path)
		}
	default:
		if err := json.Unmarshal(data, &defs); err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "invalid JSON report definitions").
				WithDetail("path", path)
		}
	}

	return defs, nil
}

// ValidateDefinitions enforces the per-report attribute limits and checks
// that every attribute resolves to a known type.
func ValidateDefinitions(defs []ga.ReportDefinition, lookup TypeLookup) error {
	if len(defs) == 0 {
		return taperrors.New(taperrors.ErrorTypeConfig, "report definitions are empty")
	}

	for _, def := range defs {
		if def.Name == "" {
			return taperrors.New(taperrors.ErrorTypeConfig, "report definition without a name")
		}
		if len(def.Dimensions) > maxDimensions {
			return taperrors.Newf(taperrors.ErrorTypeConfig,
				"report %q has %d dimensions, maximum is %d", def.Name, len(def.Dimensions), maxDimensions)
		}
		if len(def.Metrics) == 0 {
			return taperrors.Newf(taperrors.ErrorTypeConfig,
				"report %q needs at least one metric", def.Name)
		}
		if len(def.Metrics) > maxMetrics {
			return taperrors.Newf(taperrors.ErrorTypeConfig,
				"report %q has %d metrics, maximum is %d", def.Name, len(def.Metrics), maxMetrics)
		}

		for _, dimension := range def.Dimensions {
			if _, err := lookup.LookupDataType(ga.KindDimension, dimension); err != nil {
				return err
			}
		}
		for _, metric := range def.Metrics {
			if _, err := lookup.LookupDataType(ga.KindMetric, metric); err != nil {
				return err
			}
		}
	}

	return nil
}

// Generate builds the catalog for a set of validated report definitions:
// a JSON schema with additionalProperties:false covering exactly the
// declared attributes plus the synthetic fields, and per-field metadata
// tagging each attribute's ga_type.
func Generate(defs []ga.ReportDefinition, lookup TypeLookup) (*Catalog, error) {
	catalog := &Catalog{Streams: make([]Stream, 0, len(defs))}

	for _, def := range defs {
		properties := map[string]interface{}{
			ga.FieldRecordHash:      map[string]interface{}{"type": []string{"string"}},
			ga.FieldRecordTimestamp: map[string]interface{}{"type": []string{"string"}, "format": "date-time"},
			ga.FieldReportStartDate: map[string]interface{}{"type": []string{"string"}, "format": "date-time"},
			ga.FieldReportEndDate:   map[string]interface{}{"type": []string{"string"}, "format": "date-time"},
		}

		keyProperties := []string{ga.FieldRecordHash}
		metadata := make([]MetadataEntry, 0, len(def.Dimensions)+len(def.Metrics)+1)

		for _, dimension := range def.Dimensions {
			dataType, err := lookup.LookupDataType(ga.KindDimension, dimension)
			if err != nil {
				return nil, err
			}
			field := strings.ReplaceAll(dimension, "ga:", "ga_")
			properties[field] = map[string]interface{}{"type": []string{dataType}}
			keyProperties = append(keyProperties, field)
			metadata = append(metadata, fieldMetadata(field, "dimension"))
		}

		for _, metric := range def.Metrics {
			dataType, err := lookup.LookupDataType(ga.KindMetric, metric)
			if err != nil {
				return nil, err
			}
			field := strings.ReplaceAll(metric, "ga:", "ga_")
			properties[field] = map[string]interface{}{"type": []string{"null", dataType}}
			metadata = append(metadata, fieldMetadata(field, "metric"))
		}

		metadata = append(metadata, MetadataEntry{
			Breadcrumb: []string{},
			Metadata: map[string]interface{}{
				"inclusion":            "automatic",
				"table-key-properties": keyProperties,
				"replication-method":   replicationMethod,
				"replication-key":      replicationKey,
				"schema-name":          def.Name,
			},
		})

		schema, err := json.Marshal(map[string]interface{}{
			"type":                 []string{"null", "object"},
			"additionalProperties": false,
			"properties":           properties,
		})
		if err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeUnknown, "failed to marshal stream schema")
		}

		catalog.Streams = append(catalog.Streams, Stream{
			TapStreamID: def.Name,
			Stream:      def.Name,
			Schema:      schema,
			Metadata:    metadata,
		})
	}

	return catalog, nil
}

func fieldMetadata(field, gaType string) MetadataEntry {
	return MetadataEntry{
		Breadcrumb: []string{"properties", field},
		Metadata: map[string]interface{}{
			"inclusion":           "automatic",
			"selected-by-default": true,
			"ga_type":             gaType,
		},
	}
}
