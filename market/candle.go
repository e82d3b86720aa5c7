package market

import (
	"fmt"
	"strings"
	"time"
)

// Candle is an OHLCV summary of one timeframe bucket. Time is the bucket start.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Timeframe is a candle bucket width.
type Timeframe time.Duration

const (
	S5  = Timeframe(5 * time.Second)
	S15 = Timeframe(15 * time.Second)
	S30 = Timeframe(30 * time.Second)
	M1  = Timeframe(time.Minute)
	M5  = Timeframe(5 * time.Minute)
)

// Timeframes lists every timeframe the aggregator maintains.
var Timeframes = []Timeframe{S5, S15, S30, M1, M5}

// CandleCapacity is the number of candles kept per (symbol, timeframe).
const CandleCapacity = 600

func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf)
}

// Bucket returns the start of the bucket that contains t.
func (tf Timeframe) Bucket(t time.Time) time.Time {
	return t.Truncate(tf.Duration())
}

func (tf Timeframe) String() string {
	switch tf {
	case M1:
		return "1m"
	case M5:
		return "5m"
	}
	return fmt.Sprintf("%ds", int(tf.Duration()/time.Second))
}

// ParseTimeframe accepts the display names ("5s", "1m", "5m") as well as any
// Go duration string matching a supported timeframe ("60s", "300s").
func ParseTimeframe(s string) (Timeframe, error) {
	d, err := time.ParseDuration(strings.TrimSpace(strings.ToLower(s)))
	if err != nil {
		return 0, fmt.Errorf("parse timeframe %q: %w", s, err)
	}
	for _, tf := range Timeframes {
		if tf.Duration() == d {
			return tf, nil
		}
	}
	return 0, fmt.Errorf("unsupported timeframe %q", s)
}

// Valid reports whether the OHLC fields are mutually consistent.
func (c Candle) Valid() bool {
	return c.Low <= c.Open && c.Open <= c.High &&
		c.Low <= c.Close && c.Close <= c.High
}

// CandleSeries is the bounded candle history of one (symbol, timeframe).
type CandleSeries struct {
	Timeframe Timeframe
	*Ring[Candle]
}

func NewCandleSeries(tf Timeframe, capacity int) *CandleSeries {
	return &CandleSeries{
		Timeframe: tf,
		Ring:      NewRing[Candle](capacity),
	}
}
