package activity

import (
	"errors"
	"fmt"
	"time"
)

// Stream identifiers understood by the aggregation API.
const (
	StreamSteps         = "com.google.step_count.delta"
	StreamHeartRate     = "com.google.heart_rate.bpm"
	StreamCalories      = "com.google.calories.expended"
	StreamActiveMinutes = "com.google.active_minutes"
)

// DefaultStreams is the request order. The normalizer reads datasets back in
// this same order, so the slot indexes below must follow it.
var DefaultStreams = []string{
	StreamSteps,
	StreamHeartRate,
	StreamCalories,
	StreamActiveMinutes,
}

const (
	stepsSlot = iota
	heartRateSlot
	caloriesSlot
	activeMinutesSlot
)

// DayMillis is both the bucket width and the window length of the daily query.
const DayMillis int64 = 24 * 60 * 60 * 1000

// MetricQuery describes one aggregation request.
type MetricQuery struct {
	Streams           []string
	BucketWidthMillis int64
	WindowStart       int64
	WindowEnd         int64
}

// NewDailyQuery builds the last-24h, single-bucket query ending at now.
func NewDailyQuery(now time.Time) MetricQuery {
	end := now.UnixMilli()
	streams := make([]string, len(DefaultStreams))
	copy(streams, DefaultStreams)

	return MetricQuery{
		Streams:           streams,
		BucketWidthMillis: DayMillis,
		WindowStart:       end - DayMillis,
		WindowEnd:         end,
	}
}

// Validate reports the first invariant the query breaks.
func (q MetricQuery) Validate() error {
	if len(q.Streams) == 0 {
		return errors.New("no streams to aggregate")
	}
	for i, s := range q.Streams {
		if s == "" {
			return fmt.Errorf("stream %d is empty", i)
		}
	}
	if q.BucketWidthMillis <= 0 {
		return fmt.Errorf("invalid bucket width: %d", q.BucketWidthMillis)
	}
	if q.WindowStart >= q.WindowEnd {
		return fmt.Errorf("invalid window [%d, %d]", q.WindowStart, q.WindowEnd)
	}
	return nil
}

type aggregateBy struct {
	DataTypeName string `json:"dataTypeName"`
}

type bucketByTime struct {
	DurationMillis int64 `json:"durationMillis"`
}

type queryBody struct {
	AggregateBy     []aggregateBy `json:"aggregateBy"`
	BucketByTime    bucketByTime  `json:"bucketByTime"`
	StartTimeMillis int64         `json:"startTimeMillis"`
	EndTimeMillis   int64         `json:"endTimeMillis"`
}

func (q MetricQuery) body() queryBody {
	b := queryBody{
		AggregateBy:     make([]aggregateBy, 0, len(q.Streams)),
		BucketByTime:    bucketByTime{DurationMillis: q.BucketWidthMillis},
		StartTimeMillis: q.WindowStart,
		EndTimeMillis:   q.WindowEnd,
	}
	for _, s := range q.Streams {
		b.AggregateBy = append(b.AggregateBy, aggregateBy{DataTypeName: s})
	}
	return b
}
