package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	plus2 := time.FixedZone("", 2*3600)

	tests := []struct {
		name    string
		kind    Kind
		lexical string
		want    time.Time
	}{
		{"utc dateTime", DateTime, "2024-05-01T12:00:00Z", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{"fractional dateTime", DateTime, "2024-05-01T12:00:00.25Z", time.Date(2024, 5, 1, 12, 0, 0, 250_000_000, time.UTC)},
		{"offset dateTime", DateTime, "2024-05-01T12:00:00+02:00", time.Date(2024, 5, 1, 12, 0, 0, 0, plus2)},
		{"local dateTime", DateTime, " 2024-05-01T12:00:00 ", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{"date", Date, "2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"date with zone", Date, "2024-05-01Z", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"time", Time, "08:15:00", time.Date(0, 1, 1, 8, 15, 0, 0, time.UTC)},
		{"time with zone", Time, "08:15:00.5+02:00", time.Date(0, 1, 1, 8, 15, 0, 500_000_000, plus2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.kind, tt.lexical)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, tc := range []struct {
		kind    Kind
		lexical string
	}{
		{DateTime, "2024-05-01"},
		{DateTime, "yesterday"},
		{Date, "2024-13-01"},
		{Date, "01/05/2024"},
		{Time, "25:00:00"},
		{Kind(9), "2024-05-01"},
	} {
		_, err := Parse(tc.kind, tc.lexical)
		assert.Error(t, err, "%v %q", tc.kind, tc.lexical)
		assert.False(t, Valid(tc.kind, tc.lexical))
	}
}

func TestFormat(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-01T09:30:00Z", Format(DateTime, ts))
	assert.Equal(t, "2024-03-01", Format(Date, ts))
	assert.Equal(t, "09:30:00", Format(Time, ts))
	assert.Equal(t, "dateTime", DateTime.String())
}
