package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name      string
		from, to  string
		expected  TimeRange
		expectErr string
	}{
		{name: "empty", expected: TimeRange{}},
		{
			name: "both bounds",
			from: "2024-01-01",
			to:   "2024-06-30",
			expected: TimeRange{
				From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2024, 6, 30, 23, 59, 59, 999999999, time.UTC),
			},
		},
		{name: "bad from", from: "01/01/2024", expectErr: "from"},
		{name: "bad to", to: "yesterday", expectErr: "to"},
		{name: "reversed", from: "2024-06-01", to: "2024-01-01", expectErr: "to"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := ParseDateRange(tt.from, tt.to)
			if tt.expectErr != "" {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.expectErr, verr.Field)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expected.From.Equal(tr.From))
			assert.True(t, tt.expected.To.Equal(tr.To))
		})
	}
}

