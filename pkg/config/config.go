// Package config loads and validates the tap configuration.
//
// The configuration is a flat JSON document (conventionally config.json)
// supplied by the operator. Loading never terminates the process: every
// problem is reported as an error so the caller decides the exit path.
package config

import (
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-google-analytics/pkg/logger"
	"github.com/ajitpratap0/tap-google-analytics/pkg/taperrors"
)

// Sampling levels accepted by the Reporting API.
const (
	SamplingDefault = "DEFAULT"
	SamplingSmall   = "SMALL"
	SamplingLarge   = "LARGE"
)

// Date batching granularities and the report-window interval each maps to.
// The interval is the number of days added to a window start to obtain its
// end, so DAY means single-day windows.
const (
	BatchingDay   = "DAY"
	BatchingWeek  = "WEEK"
	BatchingMonth = "MONTH"
)

// DefaultLookbackDays is reprocessed on every run to absorb late-arriving
// data revisions upstream.
const DefaultLookbackDays = 15

const dateLayout = "2006-01-02"

// OAuthCredentials carries user-consent OAuth tokens as an alternative to a
// service account key file.
type OAuthCredentials struct {
	AccessToken  string `mapstructure:"access_token" json:"access_token"`
	RefreshToken string `mapstructure:"refresh_token" json:"refresh_token"`
	ClientID     string `mapstructure:"client_id" json:"client_id"`
	ClientSecret string `mapstructure:"client_secret" json:"client_secret"`
}

// Config is the immutable tap configuration.
type Config struct {
	ViewID        string `mapstructure:"view_id" json:"view_id"`
	StartDate     string `mapstructure:"start_date" json:"start_date"`
	EndDate       string `mapstructure:"end_date" json:"end_date,omitempty"`
	SamplingLevel string `mapstructure:"sampling_level" json:"sampling_level,omitempty"`
	LookbackDays  int    `mapstructure:"lookback_days" json:"lookback_days,omitempty"`
	DateBatching  string `mapstructure:"date_batching" json:"date_batching,omitempty"`
	Reports       string `mapstructure:"reports" json:"reports,omitempty"`
	QuotaUser     string `mapstructure:"quota_user" json:"quota_user,omitempty"`
	SegmentID     string `mapstructure:"segment_id" json:"segment_id,omitempty"`

	KeyFileLocation  string            `mapstructure:"key_file_location" json:"key_file_location,omitempty"`
	OAuthCredentials *OAuthCredentials `mapstructure:"oauth_credentials" json:"oauth_credentials,omitempty"`

	// Resolved by Validate.
	Start time.Time `mapstructure:"-" json:"-"`
	End   time.Time `mapstructure:"-" json:"-"`
}

// Load reads the configuration file at path and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("lookback_days", DefaultLookbackDays)
	v.SetDefault("sampling_level", SamplingDefault)
	v.SetDefault("date_batching", BatchingDay)

	if err := v.ReadInConfig(); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to parse config file").
			WithDetail("path", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields, normalizes optional ones to their
// documented defaults, and resolves the [Start, End] date window. End
// defaults to today (midnight UTC), so the last window reads the current
// day's still-accumulating data; the lookback re-reads it on later runs.
func (c *Config) Validate() error {
	log := logger.Get()

	if c.ViewID == "" {
		return taperrors.New(taperrors.ErrorTypeConfig, "a valid view_id must be provided")
	}
	if c.StartDate == "" {
		return taperrors.New(taperrors.ErrorTypeConfig, "a valid start_date must be provided")
	}
	if c.KeyFileLocation == "" && c.OAuthCredentials == nil {
		return taperrors.New(taperrors.ErrorTypeConfig,
			"a valid key_file_location or oauth_credentials object must be provided")
	}
	if c.OAuthCredentials != nil {
		if err := c.OAuthCredentials.validate(); err != nil {
			return err
		}
	}

	start, err := time.ParseInLocation(dateLayout, c.StartDate, time.UTC)
	if err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeConfig, "invalid start_date").
			WithDetail("start_date", c.StartDate)
	}
	c.Start = start

	if c.EndDate != "" {
		end, err := time.ParseInLocation(dateLayout, c.EndDate, time.UTC)
		if err != nil {
			return taperrors.Wrap(err, taperrors.ErrorTypeConfig, "invalid end_date").
				WithDetail("end_date", c.EndDate)
		}
		c.End = end
	} else {
		c.End = time.Now().UTC().Truncate(24 * time.Hour)
	}

	if c.End.Before(c.Start) {
		return taperrors.Newf(taperrors.ErrorTypeConfig,
			"start_date %q > end_date %q", c.Start.Format(dateLayout), c.End.Format(dateLayout))
	}

	switch c.SamplingLevel {
	case SamplingDefault, SamplingSmall, SamplingLarge:
	default:
		log.Warn("invalid sampling_level, falling back to DEFAULT",
			zap.String("sampling_level", c.SamplingLevel))
		c.SamplingLevel = SamplingDefault
	}

	if c.LookbackDays < 0 {
		log.Warn("negative lookback_days, falling back to default",
			zap.Int("lookback_days", c.LookbackDays))
		c.LookbackDays = DefaultLookbackDays
	}

	switch c.DateBatching {
	case BatchingDay, BatchingWeek, BatchingMonth:
	default:
		log.Warn("invalid date_batching, falling back to DAY",
			zap.String("date_batching", c.DateBatching))
		c.DateBatching = BatchingDay
	}

	return nil
}

func (oc *OAuthCredentials) validate() error {
	switch {
	case oc.AccessToken == "":
		return taperrors.New(taperrors.ErrorTypeConfig, "oauth_credentials requires a valid access_token")
	case oc.RefreshToken == "":
		return taperrors.New(taperrors.ErrorTypeConfig, "oauth_credentials requires a valid refresh_token")
	case oc.ClientID == "":
		return taperrors.New(taperrors.ErrorTypeConfig, "oauth_credentials requires a valid client_id")
	case oc.ClientSecret == "":
		return taperrors.New(taperrors.ErrorTypeConfig, "oauth_credentials requires a valid client_secret")
	}
	return nil
}

// BatchIntervalDays maps the configured batching granularity to the window
// interval in days: DAY=0, WEEK=6, MONTH=29.
func (c *Config) BatchIntervalDays() int {
	switch c.DateBatching {
	case BatchingWeek:
		return 6
	case BatchingMonth:
		return 29
	default:
		return 0
	}
}
