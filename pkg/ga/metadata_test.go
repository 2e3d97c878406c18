package ga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-google-analytics/pkg/taperrors"
)

func referenceClient() *Client {
	return &Client{
		dimensionTypes: map[string]string{
			"ga:date":     "STRING",
			"ga:userType": "STRING",
			"ga:daysSinceLastSession": "INTEGER",
		},
		metricTypes: map[string]string{
			"ga:sessions":           "INTEGER",
			"ga:bounceRate":         "PERCENT",
			"ga:sessionDuration":    "TIME",
			"ga:transactionRevenue": "CURRENCY",
			"ga:pageValue":          "FLOAT",
			"ga:eventLabel":         "STRING",
		},
	}
}

func TestLookupDataTypeReference(t *testing.T) {
	c := referenceClient()

	tests := []struct {
		kind      FieldKind
		attribute string
		want      string
	}{
		{KindDimension, "ga:date", TypeString},
		{KindDimension, "ga:daysSinceLastSession", TypeInteger},
		{KindMetric, "ga:sessions", TypeInteger},
		{KindMetric, "ga:bounceRate", TypeNumber},
		{KindMetric, "ga:sessionDuration", TypeNumber},
		{KindMetric, "ga:transactionRevenue", TypeNumber},
		{KindMetric, "ga:pageValue", TypeNumber},
		{KindMetric, "ga:eventLabel", TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.attribute, func(t *testing.T) {
			got, err := c.LookupDataType(tt.kind, tt.attribute)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupDataTypeCustomAttributes(t *testing.T) {
	c := referenceClient()

	tests := []struct {
		kind      FieldKind
		attribute string
		want      string
	}{
		{KindDimension, "ga:dimension7", TypeString},
		{KindDimension, "ga:customVarName2", TypeString},
		{KindDimension, "ga:customVarValue2", TypeString},
		{KindDimension, "ga:segment", TypeString},
		{KindMetric, "ga:metric12", TypeNumber},
		{KindMetric, "ga:calcMetric_revenuePerUser", TypeNumber},
		{KindMetric, "ga:goal3Completions", TypeNumber},
		{KindMetric, "ga:goal12ConversionRate", TypeNumber},
		{KindMetric, "ga:goal1Abandons", TypeNumber},
		{KindMetric, "ga:searchGoal5ConversionRate", TypeNumber},
	}

	for _, tt := range tests {
		t.Run(tt.attribute, func(t *testing.T) {
			got, err := c.LookupDataType(tt.kind, tt.attribute)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupDataTypeUnknownAttributeIsFatal(t *testing.T) {
	c := referenceClient()

	_, err := c.LookupDataType(KindDimension, "ga:doesNotExist")
	require.Error(t, err)
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeConfig))

	_, err = c.LookupDataType(KindMetric, "ga:alsoDoesNotExist")
	require.Error(t, err)
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeConfig))
}
