package sim

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rustyeddy/marketsim/market"
)

const (
	minOpenVolume = 200
	maxOpenVolume = 800
	minAddVolume  = 50
	maxAddVolume  = 400
)

// CandleAggregator buckets price transitions into OHLCV candles for every
// tracked timeframe of every symbol.
//
// The number of candles produced depends only on the timestamps fed in;
// volumes are random.
type CandleAggregator struct {
	rng        *rand.Rand
	capacity   int
	timeframes []market.Timeframe
	series     map[string]map[market.Timeframe]*market.CandleSeries
}

func NewCandleAggregator(rng *rand.Rand, capacity int, timeframes ...market.Timeframe) *CandleAggregator {
	if capacity <= 0 {
		capacity = market.CandleCapacity
	}
	if len(timeframes) == 0 {
		timeframes = market.Timeframes
	}
	return &CandleAggregator{
		rng:        rng,
		capacity:   capacity,
		timeframes: timeframes,
		series:     make(map[string]map[market.Timeframe]*market.CandleSeries),
	}
}

// OnPriceChange records one price transition at now.
func (a *CandleAggregator) OnPriceChange(symbol string, oldPrice, newPrice float64, now time.Time) {
	for _, tf := range a.timeframes {
		a.update(a.Series(symbol, tf), oldPrice, newPrice, now)
	}
}

func (a *CandleAggregator) update(s *market.CandleSeries, oldPrice, newPrice float64, now time.Time) {
	bucket := s.Timeframe.Bucket(now)

	last := s.Last()
	if last != nil && last.Time.Equal(bucket) {
		last.High = math.Max(last.High, newPrice)
		last.Low = math.Min(last.Low, newPrice)
		last.Close = newPrice
		last.Volume += uniformInt(a.rng, minAddVolume, maxAddVolume)
		return
	}

	if last != nil {
		last.Close = oldPrice
		last.High = math.Max(last.High, oldPrice)
		last.Low = math.Min(last.Low, oldPrice)
	}

	s.Push(market.Candle{
		Time:   bucket,
		Open:   oldPrice,
		High:   math.Max(oldPrice, newPrice),
		Low:    math.Min(oldPrice, newPrice),
		Close:  newPrice,
		Volume: uniformInt(a.rng, minOpenVolume, maxOpenVolume),
	})
}

// Series returns the series for (symbol, tf), creating it on first use.
func (a *CandleAggregator) Series(symbol string, tf market.Timeframe) *market.CandleSeries {
	byTF, ok := a.series[symbol]
	if !ok {
		byTF = make(map[market.Timeframe]*market.CandleSeries)
		a.series[symbol] = byTF
	}
	s, ok := byTF[tf]
	if !ok {
		s = market.NewCandleSeries(tf, a.capacity)
		byTF[tf] = s
	}
	return s
}

// Candles copies the series for (symbol, tf), oldest first.
func (a *CandleAggregator) Candles(symbol string, tf market.Timeframe) ([]market.Candle, error) {
	if !a.tracks(tf) {
		return nil, fmt.Errorf("candles %s: timeframe %s not tracked", symbol, tf)
	}
	byTF, ok := a.series[symbol]
	if !ok {
		return []market.Candle{}, nil
	}
	s, ok := byTF[tf]
	if !ok {
		return []market.Candle{}, nil
	}
	return s.Slice(), nil
}

func (a *CandleAggregator) tracks(tf market.Timeframe) bool {
	for _, t := range a.timeframes {
		if t == tf {
			return true
		}
	}
	return false
}
