package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMarker(t *testing.T) {
	assert.Equal(t, "2020010107", FormatMarker(time.Date(2020, 1, 1, 7, 59, 59, 0, time.UTC)))
	assert.Equal(t, "0999123123", FormatMarker(time.Date(999, 12, 31, 23, 0, 0, 0, time.UTC)))

	local := time.Date(2020, 1, 1, 2, 0, 0, 0, time.FixedZone("UTC-3", -3*3600))
	assert.Equal(t, "2020010105", FormatMarker(local))
}

func TestParseMarker(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		got, err := ParseMarker("2020010107")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2020, 1, 1, 7, 0, 0, 0, time.UTC), got)
		assert.Equal(t, "2020010107", FormatMarker(got))
	})

	t.Run("sentinel", func(t *testing.T) {
		_, err := ParseMarker(Sentinel)
		assert.ErrorIs(t, err, ErrNeverRuns)
	})

	for _, marker := range []string{"", "2020", "20200101071", "2020130107", "2020010125", "abcdefghij"} {
		t.Run("invalid "+marker, func(t *testing.T) {
			_, err := ParseMarker(marker)
			assert.ErrorIs(t, err, ErrInvalidMarker)
		})
	}
}

func TestSentinelSortsLast(t *testing.T) {
	assert.Greater(t, Sentinel, "2999123123")
	assert.Greater(t, Sentinel, FormatMarker(time.Date(9999, 12, 31, 23, 0, 0, 0, time.UTC)))
}
