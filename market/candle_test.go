package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeframe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Timeframe
		wantErr bool
	}{
		{"5s", S5, false},
		{"15s", S15, false},
		{"30s", S30, false},
		{"1m", M1, false},
		{"60s", M1, false},
		{"5M", M5, false},
		{"300s", M5, false},
		{"10s", 0, true},
		{"bogus", 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTimeframe(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeframeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "5s", S5.String())
	assert.Equal(t, "15s", S15.String())
	assert.Equal(t, "30s", S30.String())
	assert.Equal(t, "1m", M1.String())
	assert.Equal(t, "5m", M5.String())
}

func TestTimeframeBucket(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 1, 10, 7, 44, 123, time.UTC)

	assert.Equal(t, time.Date(2024, 1, 1, 10, 7, 40, 0, time.UTC), S5.Bucket(ts))
	assert.Equal(t, time.Date(2024, 1, 1, 10, 7, 30, 0, time.UTC), S15.Bucket(ts))
	assert.Equal(t, time.Date(2024, 1, 1, 10, 7, 30, 0, time.UTC), S30.Bucket(ts))
	assert.Equal(t, time.Date(2024, 1, 1, 10, 7, 0, 0, time.UTC), M1.Bucket(ts))
	assert.Equal(t, time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC), M5.Bucket(ts))
}

func TestCandleValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Candle{Open: 10, High: 12, Low: 9, Close: 11}.Valid())
	assert.False(t, Candle{Open: 10, High: 10.5, Low: 9, Close: 11}.Valid())
	assert.False(t, Candle{Open: 8, High: 12, Low: 9, Close: 11}.Valid())
}
