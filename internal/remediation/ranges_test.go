package remediation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

func TestInferTrustedRanges_ExcludesGenericSources(t *testing.T) {
	rules := []models.NetworkRule{
		openRule("a", "*", "22"),
		openRule("b", "10.1.0.0/16", "22"),
		openRule("c", "VirtualNetwork", "22"),
		openRule("d", "172.16.5.0/24", "22"),
	}
	assert.Equal(t, []string{"10.1.0.0/16", "172.16.5.0/24"}, InferTrustedRanges(rules))
}

func TestInferTrustedRanges_Filters(t *testing.T) {
	outbound := openRule("out", "192.0.2.0/24", "22")
	outbound.Direction = models.DirectionOutbound
	deny := openRule("deny", "192.0.2.1/32", "22")
	deny.Access = models.AccessDeny
	multi := openRule("multi", "", "22")
	multi.Sources = []string{"198.51.100.0/24", "198.51.100.128/25"}

	rules := []models.NetworkRule{
		outbound,
		deny,
		multi,
		openRule("joined", "10.0.0.0/8,10.1.0.0/16", "22"),
		openRule("tag", "internet", "22"),
		openRule("open", "0.0.0.0/0", "22"),
		openRule("host", "203.0.113.4", "22"),
		openRule("v6", "2001:db8::/32", "22"),
		openRule("dup1", "203.0.113.4/32", "22"),
		openRule("dup2", "203.0.113.4/32", "3389"),
	}
	assert.Equal(t, []string{"203.0.113.4/32"}, InferTrustedRanges(rules))
}

func TestInferTrustedRanges_EmptyIsNonNil(t *testing.T) {
	got := InferTrustedRanges(nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParseOperatorRanges(t *testing.T) {
	got, err := ParseOperatorRanges(" 203.0.113.4/32, 10.0.0.0/8 203.0.113.4/32 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"203.0.113.4/32", "10.0.0.0/8"}, got)

	got, err = ParseOperatorRanges("   ")
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, bad := range []string{"10.0.0.0", "300.1.1.1/24", "10.0.0.0/40", "office"} {
		_, err := ParseOperatorRanges("10.0.0.0/8," + bad)
		require.Error(t, err, bad)
		assert.True(t, IsValidation(err), "want ValidationError for %q", bad)
	}
}
