package version

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionReport(t *testing.T) {
	assert.Equal(t, Version, Short())
	assert.Contains(t, Info(), Version)

	report := Print()
	assert.True(t, strings.HasPrefix(report, Program), report)
	assert.Contains(t, report, Commit)
}

func TestBuildInfoCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector()))

	count, err := testutil.GatherAndCount(reg, "planrelay_build_info")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
