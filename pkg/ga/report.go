package ga

// ReportDefinition describes one report query: an ordered set of dimensions
// and metrics using the API's ga: attribute names.
type ReportDefinition struct {
	Name       string   `json:"name"`
	Dimensions []string `json:"dimensions"`
	Metrics    []string `json:"metrics"`
}

// Wire types for the Reporting API v4 reports:batchGet call. Only the fields
// the tap reads or writes are modelled.

type batchGetRequest struct {
	ReportRequests []reportRequest `json:"reportRequests"`
}

type reportRequest struct {
	ViewID        string            `json:"viewId"`
	DateRanges    []dateRange       `json:"dateRanges"`
	SamplingLevel string            `json:"samplingLevel"`
	PageSize      string            `json:"pageSize"`
	PageToken     string            `json:"pageToken,omitempty"`
	Metrics       []metricRequest   `json:"metrics"`
	Dimensions    []dimensionRequest `json:"dimensions"`
	Segments      []segmentRequest  `json:"segments,omitempty"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type metricRequest struct {
	Expression string `json:"expression"`
}

type dimensionRequest struct {
	Name string `json:"name"`
}

type segmentRequest struct {
	SegmentID string `json:"segmentId"`
}

type batchGetResponse struct {
	Reports []report `json:"reports"`
}

type report struct {
	ColumnHeader  columnHeader `json:"columnHeader"`
	Data          reportData   `json:"data"`
	NextPageToken string       `json:"nextPageToken"`
}

type columnHeader struct {
	Dimensions   []string     `json:"dimensions"`
	MetricHeader metricHeader `json:"metricHeader"`
}

type metricHeader struct {
	MetricHeaderEntries []metricHeaderEntry `json:"metricHeaderEntries"`
}

type metricHeaderEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type reportData struct {
	Rows []reportRow `json:"rows"`
}

type reportRow struct {
	Dimensions []string          `json:"dimensions"`
	Metrics    []dateRangeValues `json:"metrics"`
}

type dateRangeValues struct {
	Values []string `json:"values"`
}
