package activity

import "strings"

// ActivityMetrics is the flat record the dashboard renders.
type ActivityMetrics struct {
	Steps         int64   `json:"steps"`
	HeartRate     float64 `json:"heartRate"`
	Calories      float64 `json:"calories"`
	ActiveMinutes int64   `json:"activeMinutes"`
}

// Normalize extracts the four metrics from the first bucket of resp. Any level
// that is missing zeroes only the metric that needed it.
func Normalize(resp *AggregationResponse) ActivityMetrics {
	if resp == nil || len(resp.Buckets) == 0 {
		return ActivityMetrics{}
	}

	datasets := matchDatasets(resp.Buckets[0].Datasets, DefaultStreams)

	return ActivityMetrics{
		Steps:         firstValue(datasets[stepsSlot]).Int(),
		HeartRate:     firstValue(datasets[heartRateSlot]).Float(),
		Calories:      firstValue(datasets[caloriesSlot]).Float(),
		ActiveMinutes: firstValue(datasets[activeMinutesSlot]).Int(),
	}
}

// matchDatasets returns one dataset (or nil) per stream. Datasets are matched
// by the stream echoed in their data source id when every one of them carries
// a distinct known stream; otherwise they are matched by position.
func matchDatasets(datasets []Dataset, streams []string) []*Dataset {
	if matched, ok := matchByDataSource(datasets, streams); ok {
		return matched
	}

	matched := make([]*Dataset, len(streams))
	for i := range streams {
		if i < len(datasets) {
			matched[i] = &datasets[i]
		}
	}
	return matched
}

func matchByDataSource(datasets []Dataset, streams []string) ([]*Dataset, bool) {
	if len(datasets) == 0 {
		return nil, false
	}

	matched := make([]*Dataset, len(streams))
	for i := range datasets {
		slot := streamSlot(datasets[i].DataSourceID, streams)
		if slot < 0 || matched[slot] != nil {
			return nil, false
		}
		matched[slot] = &datasets[i]
	}
	return matched, true
}

func streamSlot(dataSourceID string, streams []string) int {
	if dataSourceID == "" {
		return -1
	}
	for i, s := range streams {
		if strings.Contains(dataSourceID, s) {
			return i
		}
	}
	return -1
}

func firstValue(ds *Dataset) *Value {
	if ds == nil || len(ds.Points) == 0 {
		return nil
	}
	values := ds.Points[0].Values
	if len(values) == 0 {
		return nil
	}
	return &values[0]
}
