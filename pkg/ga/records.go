package ga

import (
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/tap-google-analytics/pkg/taperrors"
)

// Record is one normalized report row: attribute names mapped to typed
// scalars plus the synthetic bookkeeping fields.
type Record map[string]interface{}

// Synthetic fields attached to every record.
const (
	FieldRecordHash      = "_sdc_record_hash"
	FieldRecordTimestamp = "_sdc_record_timestamp"
	FieldReportStartDate = "report_start_date"
	FieldReportEndDate   = "report_end_date"
)

// buildRecords normalizes one page of a report into records. Dimension and
// metric headers are zipped with the row values and coerced according to the
// reference type tables.
func (c *Client) buildRecords(start, end time.Time, rpt *report) ([]Record, error) {
	dimensionHeaders := rpt.ColumnHeader.Dimensions
	metricHeaders := rpt.ColumnHeader.MetricHeader.MetricHeaderEntries

	startDateString := start.Format(time.RFC3339)
	endDateString := end.Format(time.RFC3339)

	hasDateDimension := false
	for _, header := range dimensionHeaders {
		if header == "ga:date" {
			hasDateDimension = true
			break
		}
	}

	records := make([]Record, 0, len(rpt.Data.Rows))

	for _, row := range rpt.Data.Rows {
		record := make(Record, len(dimensionHeaders)+len(metricHeaders)+4)

		for i, header := range dimensionHeaders {
			if i >= len(row.Dimensions) {
				break
			}
			value, err := c.coerce(KindDimension, header, row.Dimensions[i])
			if err != nil {
				return nil, err
			}
			record[emittedName(header)] = value
		}

		for _, rangeValues := range row.Metrics {
			for i, header := range metricHeaders {
				if i >= len(rangeValues.Values) {
					break
				}
				value, err := c.coerce(KindMetric, header.Name, rangeValues.Values[i])
				if err != nil {
					return nil, err
				}
				record[emittedName(header.Name)] = value
			}
		}

		record[FieldReportStartDate] = startDateString
		record[FieldReportEndDate] = endDateString

		// Without a date dimension, identical dimension values would hash
		// the same across windows. Injecting the window start keeps the
		// primary key unique per window.
		hashDimensions := row.Dimensions
		if !hasDateDimension {
			hashDimensions = append(append([]string{}, row.Dimensions...), startDateString)
		}
		record[FieldRecordHash] = RecordHash(c.viewID, hashDimensions)
		record[FieldRecordTimestamp] = c.now().Format(time.RFC3339Nano)

		records = append(records, record)
	}

	return records, nil
}

// coerce converts a raw string value into the attribute's declared type.
func (c *Client) coerce(kind FieldKind, attribute, raw string) (interface{}, error) {
	dataType, err := c.LookupDataType(kind, attribute)
	if err != nil {
		return nil, err
	}

	switch dataType {
	case TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeUnknown, "non-integer value for integer attribute").
				WithDetail("attribute", attribute).
				WithDetail("value", raw)
		}
		return n, nil
	case TypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeUnknown, "non-numeric value for numeric attribute").
				WithDetail("attribute", attribute).
				WithDetail("value", raw)
		}
		return f, nil
	default:
		return raw, nil
	}
}

// emittedName converts an API attribute name to its emitted field name,
// ga:users -> ga_users. Colons are not valid in most destination column
// names.
func emittedName(attribute string) string {
	return strings.ReplaceAll(attribute, "ga:", "ga_")
}
