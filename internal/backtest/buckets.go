package backtest

import (
	"time"

	"github.com/quantfold/rulebot/internal/market"
	"github.com/quantfold/rulebot/internal/models"
)

// bucketSet keeps one HourlyBucket per wall-clock hour of the replay
// window, pre-created so the final report carries every hour in order,
// including empty ones.
type bucketSet struct {
	byHour map[time.Time]*HourlyBucket
	hours  []time.Time
	priced map[time.Time]bool
}

func newBucketSet(start, end time.Time) *bucketSet {
	s := &bucketSet{
		byHour: make(map[time.Time]*HourlyBucket),
		priced: make(map[time.Time]bool),
	}
	for h := start.UTC().Truncate(time.Hour); !h.After(end.UTC()); h = h.Add(time.Hour) {
		s.byHour[h] = &HourlyBucket{HourStart: h}
		s.hours = append(s.hours, h)
	}
	return s
}

func (s *bucketSet) bucketFor(t time.Time) *HourlyBucket {
	return s.byHour[t.UTC().Truncate(time.Hour)]
}

// observe records a candle's prices into its hour: the first candle of
// the hour sets the open, every candle advances the close.
func (s *bucketSet) observe(c market.Candle) {
	b := s.bucketFor(c.OpenTime)
	if b == nil {
		return
	}
	hour := b.HourStart
	if !s.priced[hour] {
		b.OpenPrice = c.Open
		s.priced[hour] = true
	}
	b.ClosePrice = c.Close
}

func (s *bucketSet) addBuy(t models.Trade) {
	if b := s.bucketFor(t.Timestamp); b != nil {
		b.Buys++
	}
}

func (s *bucketSet) addSell(t models.Trade, realised float64) {
	if b := s.bucketFor(t.Timestamp); b != nil {
		b.Sells++
		b.RealisedPnl += realised
	}
}

func (s *bucketSet) ordered() []HourlyBucket {
	out := make([]HourlyBucket, 0, len(s.hours))
	for _, h := range s.hours {
		out = append(out, *s.byHour[h])
	}
	return out
}
