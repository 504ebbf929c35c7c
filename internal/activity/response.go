package activity

import (
	"encoding/json"
	"math"
)

// AggregationResponse mirrors the aggregation API reply. Every level may be
// missing or carry an unexpected type; such a level decodes as empty and only
// zeroes the metrics that needed it. Only the fields the normalizer reads are kept.
type AggregationResponse struct {
	Buckets []Bucket `json:"bucket"`
}

type Bucket struct {
	Datasets []Dataset `json:"dataset"`
}

type Dataset struct {
	// DataSourceID is echoed by some backends, e.g.
	// "derived:com.google.step_count.delta:com.google.android.gms:aggregated".
	DataSourceID string  `json:"dataSourceId,omitempty"`
	Points       []Point `json:"point"`
}

type Point struct {
	DataTypeName string  `json:"dataTypeName,omitempty"`
	Values       []Value `json:"value"`
}

// Value holds either an integer or a floating point reading. Both are kept as
// json.Number so a float sent in intVal (or the other way around) still decodes.
type Value struct {
	IntVal *json.Number `json:"intVal,omitempty"`
	FpVal  *json.Number `json:"fpVal,omitempty"`
}

// UnmarshalJSON never fails on well-formed JSON: a body that is not an object
// decodes as a response without buckets. Malformed JSON is still rejected by
// json.Unmarshal before this is called.
func (r *AggregationResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Buckets json.RawMessage `json:"bucket"`
	}
	*r = AggregationResponse{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	r.Buckets = decodeList[Bucket](raw.Buckets)
	return nil
}

func (b *Bucket) UnmarshalJSON(data []byte) error {
	var raw struct {
		Datasets json.RawMessage `json:"dataset"`
	}
	*b = Bucket{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	b.Datasets = decodeList[Dataset](raw.Datasets)
	return nil
}

func (d *Dataset) UnmarshalJSON(data []byte) error {
	var raw struct {
		DataSourceID json.RawMessage `json:"dataSourceId"`
		Points       json.RawMessage `json:"point"`
	}
	*d = Dataset{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	d.DataSourceID = decodeString(raw.DataSourceID)
	d.Points = decodeList[Point](raw.Points)
	return nil
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var raw struct {
		DataTypeName json.RawMessage `json:"dataTypeName"`
		Values       json.RawMessage `json:"value"`
	}
	*p = Point{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	p.DataTypeName = decodeString(raw.DataTypeName)
	p.Values = decodeList[Value](raw.Values)
	return nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw struct {
		IntVal json.RawMessage `json:"intVal"`
		FpVal  json.RawMessage `json:"fpVal"`
	}
	*v = Value{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	v.IntVal = decodeNumber(raw.IntVal)
	v.FpVal = decodeNumber(raw.FpVal)
	return nil
}

// decodeList decodes a JSON array element by element. Anything other than an
// array yields nil; elements keep their positions even when they are malformed.
func decodeList[T any](data json.RawMessage) []T {
	if len(data) == 0 {
		return nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil
	}
	items := make([]T, len(raws))
	for i, item := range raws {
		_ = json.Unmarshal(item, &items[i])
	}
	return items
}

func decodeString(data json.RawMessage) string {
	var s string
	if len(data) == 0 || json.Unmarshal(data, &s) != nil {
		return ""
	}
	return s
}

// decodeNumber accepts a number or a numeric string.
func decodeNumber(data json.RawMessage) *json.Number {
	if len(data) == 0 {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil || n == "" {
		return nil
	}
	return &n
}

// Int reads intVal as an integer. Non-integral values are truncated; values
// that do not fit in an int64 read as 0.
func (v *Value) Int() int64 {
	if v == nil || v.IntVal == nil {
		return 0
	}
	if i, err := v.IntVal.Int64(); err == nil {
		return i
	}
	f, err := v.IntVal.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}

// Float reads fpVal; unparsable and infinite values read as 0.
func (v *Value) Float() float64 {
	if v == nil || v.FpVal == nil {
		return 0
	}
	f, err := v.FpVal.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
