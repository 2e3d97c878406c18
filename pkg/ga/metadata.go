package ga

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"google.golang.org/api/googleapi"

	"github.com/ajitpratap0/tap-google-analytics/pkg/taperrors"
)

// FieldKind distinguishes the two attribute classes of a report.
type FieldKind string

const (
	KindDimension FieldKind = "dimension"
	KindMetric    FieldKind = "metric"
)

// Data types the tap emits. These are JSON Schema primitive names.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
)

// Custom attribute slots are not listed in the reference metadata. Their
// data types follow documented naming rules instead.
var (
	customStringDimensions = []string{"ga:dimension", "ga:customVarName", "ga:customVarValue", "ga:segment"}
	goalMetricSuffixes     = []string{"Starts", "Completions", "Value", "ConversionRate", "Abandons", "AbandonRate"}
)

type columnsResponse struct {
	Items []column `json:"items"`
}

type column struct {
	ID         string           `json:"id"`
	Attributes columnAttributes `json:"attributes"`
}

type columnAttributes struct {
	Type     string `json:"type"`     // METRIC or DIMENSION
	DataType string `json:"dataType"` // STRING, INTEGER, FLOAT, PERCENT, TIME, CURRENCY
}

// fetchMetadata loads the reference (dimension, metric) -> raw data type
// tables from the metadata endpoint. Called once at client construction; the
// Reporting API itself does not expose attribute types.
func (c *Client) fetchMetadata(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.metadataRequestURL(), nil)
	if err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeUnknown, "failed to create metadata request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeUnknown, "metadata request failed")
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return c.classifyAPIError(err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeUnknown, "failed to read metadata response")
	}

	var columns columnsResponse
	if err := json.Unmarshal(body, &columns); err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeUnknown, "failed to decode metadata response")
	}

	c.dimensionTypes = make(map[string]string)
	c.metricTypes = make(map[string]string)
	for _, col := range columns.Items {
		switch col.Attributes.Type {
		case "METRIC":
			c.metricTypes[col.ID] = col.Attributes.DataType
		case "DIMENSION":
			c.dimensionTypes[col.ID] = col.Attributes.DataType
		}
	}

	return nil
}

// metadataRequestURL builds the columns metadata URL including the optional
// quotaUser parameter.
func (c *Client) metadataRequestURL() string {
	u := c.metadataURL
	if c.quotaUser != "" {
		u += "?quotaUser=" + url.QueryEscape(c.quotaUser)
	}
	return u
}

// LookupDataType resolves the emitted data type of a report attribute.
// Attributes matching neither the reference tables nor a recognized custom
// naming pattern are a fatal configuration error.
func (c *Client) LookupDataType(kind FieldKind, attribute string) (string, error) {
	var rawType string
	var ok bool

	switch kind {
	case KindDimension:
		for _, prefix := range customStringDimensions {
			if strings.HasPrefix(attribute, prefix) {
				return TypeString, nil
			}
		}
		rawType, ok = c.dimensionTypes[attribute]
	case KindMetric:
		if isCustomNumericMetric(attribute) {
			return TypeNumber, nil
		}
		rawType, ok = c.metricTypes[attribute]
	default:
		return "", taperrors.Newf(taperrors.ErrorTypeConfig, "unsupported attribute kind: %s", kind)
	}

	if !ok {
		return "", taperrors.Newf(taperrors.ErrorTypeConfig, "unsupported %s: %s", kind, attribute)
	}

	switch rawType {
	case "INTEGER":
		return TypeInteger, nil
	case "FLOAT", "PERCENT", "TIME", "CURRENCY":
		return TypeNumber, nil
	default:
		return TypeString, nil
	}
}

// isCustomNumericMetric matches custom metric slots, calculated metrics and
// goal conversion metrics. They can be integers, but the API does not say
// which, so number is the safe choice.
func isCustomNumericMetric(attribute string) bool {
	if strings.HasPrefix(attribute, "ga:metric") || strings.HasPrefix(attribute, "ga:calcMetric") {
		return true
	}
	if strings.HasPrefix(attribute, "ga:searchGoal") && strings.HasSuffix(attribute, "ConversionRate") {
		return true
	}
	if strings.HasPrefix(attribute, "ga:goal") {
		for _, suffix := range goalMetricSuffixes {
			if strings.HasSuffix(attribute, suffix) {
				return true
			}
		}
	}
	return false
}
