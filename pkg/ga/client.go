// Package ga implements the Analytics Reporting API client: paginated report
// queries with retry and error classification, reference metadata lookup, and
// normalization of raw report rows into typed records.
package ga

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"

	"github.com/ajitpratap0/tap-google-analytics/pkg/config"
	"github.com/ajitpratap0/tap-google-analytics/pkg/logger"
	"github.com/ajitpratap0/tap-google-analytics/pkg/metrics"
	"github.com/ajitpratap0/tap-google-analytics/pkg/taperrors"
)

const (
	defaultReportsURL  = "https://analyticsreporting.googleapis.com/v4/reports:batchGet"
	defaultMetadataURL = "https://www.googleapis.com/analytics/v3/metadata/ga/columns"

	oauthTokenURL = "https://accounts.google.com/o/oauth2/token"
	reportScope   = "https://www.googleapis.com/auth/analytics.readonly"

	// Maximum the API allows per page. The tap always asks for the maximum
	// and lets pagination handle the rest.
	defaultPageSize = "100000"

	dateLayout = "2006-01-02"
)

// Error reasons the Reporting API documents as transient. Queries failing
// with one of these are retried with backoff before classification.
var nonFatalReasons = map[string]bool{
	"userRateLimitExceeded": true,
	"rateLimitExceeded":     true,
	"quotaExceeded":         true,
	"internalServerError":   true,
	"backendError":          true,
}

// Client issues report queries against the Reporting API. It is safe for
// sequential use only; the sync engine runs one query at a time.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	retry      *RetryPolicy

	viewID        string
	samplingLevel string
	quotaUser     string
	segmentID     string

	reportsURL  string
	metadataURL string

	dimensionTypes map[string]string
	metricTypes    map[string]string

	now func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the authenticated HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoints overrides the reports and metadata endpoints.
func WithEndpoints(reportsURL, metadataURL string) Option {
	return func(c *Client) {
		c.reportsURL = reportsURL
		c.metadataURL = metadataURL
	}
}

// WithRetryPolicy overrides the query retry policy.
func WithRetryPolicy(rp *RetryPolicy) Option {
	return func(c *Client) { c.retry = rp }
}

// NewClient builds an authenticated client and fetches the reference
// attribute metadata once up front.
func NewClient(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	c := &Client{
		logger:        logger.With(zap.String("component", "ga_client")),
		retry:         DefaultRetryPolicy(),
		viewID:        cfg.ViewID,
		samplingLevel: cfg.SamplingLevel,
		quotaUser:     cfg.QuotaUser,
		segmentID:     cfg.SegmentID,
		reportsURL:    defaultReportsURL,
		metadataURL:   defaultMetadataURL,
		now:           func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		hc, err := newAuthenticatedClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.httpClient = hc
	}

	if err := c.fetchMetadata(ctx); err != nil {
		return nil, err
	}

	c.logger.Info("client initialized",
		zap.String("view_id", c.viewID),
		zap.String("sampling_level", c.samplingLevel),
		zap.Int("reference_dimensions", len(c.dimensionTypes)),
		zap.Int("reference_metrics", len(c.metricTypes)))

	return c, nil
}

// newAuthenticatedClient builds an http.Client whose transport injects OAuth2
// access tokens, from either a service account key file or a user-consent
// refresh token.
func newAuthenticatedClient(ctx context.Context, cfg *config.Config) (*http.Client, error) {
	if cfg.OAuthCredentials != nil {
		oc := cfg.OAuthCredentials
		conf := &oauth2.Config{
			ClientID:     oc.ClientID,
			ClientSecret: oc.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: oauthTokenURL},
			Scopes:       []string{reportScope},
		}
		token := &oauth2.Token{
			AccessToken:  oc.AccessToken,
			RefreshToken: oc.RefreshToken,
		}
		return conf.Client(ctx, token), nil
	}

	keyData, err := os.ReadFile(cfg.KeyFileLocation)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to read key file").
			WithDetail("key_file_location", cfg.KeyFileLocation)
	}

	jwtConf, err := google.JWTConfigFromJSON(keyData, reportScope)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "invalid service account key file").
			WithDetail("key_file_location", cfg.KeyFileLocation)
	}

	return jwtConf.Client(ctx), nil
}

// ProcessWindow executes one report query for the [start, end] window and
// pages through all results. Records from all pages are returned in page
// order. Errors carry a taperrors classification.
func (c *Client) ProcessWindow(ctx context.Context, start, end time.Time, def *ReportDefinition) ([]Record, error) {
	var records []Record
	pageToken := ""

	for {
		resp, err := c.queryWithRetry(ctx, start, end, def, pageToken)
		if err != nil {
			return nil, err
		}

		if len(resp.Reports) == 0 {
			return records, nil
		}
		rpt := &resp.Reports[0]

		pageRecords, err := c.buildRecords(start, end, rpt)
		if err != nil {
			return nil, err
		}
		records = append(records, pageRecords...)

		if rpt.NextPageToken == "" {
			return records, nil
		}
		pageToken = rpt.NextPageToken
	}
}

// queryWithRetry wraps a single query in the retry policy, retrying socket
// timeouts and the API's documented non-fatal error reasons, then classifies
// whatever error survives.
func (c *Client) queryWithRetry(ctx context.Context, start, end time.Time, def *ReportDefinition, pageToken string) (*batchGetResponse, error) {
	var resp *batchGetResponse

	err := c.retry.ExecuteWithCondition(ctx, func() error {
		var qerr error
		resp, qerr = c.query(ctx, start, end, def, pageToken)
		if qerr != nil {
			metrics.APIRequests.WithLabelValues("error").Inc()
		} else {
			metrics.APIRequests.WithLabelValues("success").Inc()
		}
		return qerr
	}, isTransientError)
	if err != nil {
		return nil, c.classifyAPIError(err)
	}

	return resp, nil
}

// query performs one reports:batchGet call.
func (c *Client) query(ctx context.Context, start, end time.Time, def *ReportDefinition, pageToken string) (*batchGetResponse, error) {
	reqBody := c.buildRequest(start, end, def, pageToken)

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeUnknown, "failed to marshal report request")
	}

	reqURL := c.reportsURL
	if c.quotaUser != "" {
		reqURL += "?quotaUser=" + url.QueryEscape(c.quotaUser)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeUnknown, "failed to create report request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	out := &batchGetResponse{}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeUnknown, "failed to decode report response")
	}

	return out, nil
}

// buildRequest assembles the batchGet body for one window and page.
func (c *Client) buildRequest(start, end time.Time, def *ReportDefinition, pageToken string) *batchGetRequest {
	rr := reportRequest{
		ViewID: c.viewID,
		DateRanges: []dateRange{{
			StartDate: start.Format(dateLayout),
			EndDate:   end.Format(dateLayout),
		}},
		SamplingLevel: c.samplingLevel,
		PageSize:      defaultPageSize,
		PageToken:     pageToken,
	}

	for _, dim := range def.Dimensions {
		rr.Dimensions = append(rr.Dimensions, dimensionRequest{Name: dim})
	}
	for _, metric := range def.Metrics {
		rr.Metrics = append(rr.Metrics, metricRequest{Expression: metric})
	}
	if c.segmentID != "" {
		rr.Segments = []segmentRequest{{SegmentID: c.segmentID}}
	}

	return &batchGetRequest{ReportRequests: []reportRequest{rr}}
}

// isTransientError reports whether an error should be retried: socket
// timeouts, HTTP 500/503, and the documented non-fatal API reasons.
func isTransientError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}

	if apiErr.Code == http.StatusInternalServerError || apiErr.Code == http.StatusServiceUnavailable {
		return true
	}

	return nonFatalReasons[apiErrorReason(apiErr)]
}

// apiErrorReason extracts the first error reason code from the API error
// body, the field the documented error taxonomy keys on.
func apiErrorReason(apiErr *googleapi.Error) string {
	if len(apiErr.Errors) == 0 {
		return ""
	}
	return apiErr.Errors[0].Reason
}

// classifyAPIError maps a raw transport or API error onto the closed error
// taxonomy. Only errors that escaped the retry loop reach this point.
func (c *Client) classifyAPIError(err error) error {
	if err == nil {
		return nil
	}

	var classified *taperrors.Error
	if errors.As(err, &classified) {
		return err
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return taperrors.Wrap(err, taperrors.ErrorTypeUnknown, "report query failed")
	}

	reason := apiErrorReason(apiErr)
	wrapped := func(t taperrors.ErrorType, msg string) error {
		return taperrors.Wrap(err, t, msg).
			WithDetail("status", apiErr.Code).
			WithDetail("reason", reason)
	}

	switch {
	case reason == "userRateLimitExceeded" || reason == "rateLimitExceeded":
		return wrapped(taperrors.ErrorTypeRateLimit, "rate limit exceeded")
	case reason == "quotaExceeded":
		return wrapped(taperrors.ErrorTypeQuotaExceeded, "quota exceeded")
	case apiErr.Code == http.StatusBadRequest:
		return wrapped(taperrors.ErrorTypeInvalidArgument, "invalid report definition")
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusPaymentRequired:
		return wrapped(taperrors.ErrorTypeAuthentication, "authentication failed")
	case apiErr.Code == http.StatusInternalServerError || apiErr.Code == http.StatusServiceUnavailable:
		return wrapped(taperrors.ErrorTypeBackendUnavailable, "backend unavailable")
	default:
		return wrapped(taperrors.ErrorTypeUnknown, "unexpected API error")
	}
}
