package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/nhirsama/infra-console/src/inter"
)

// fluxRecord 时序库查询记录
// 后端可能直接输出列 (_time, _value, sensor_id ...)，也可能输出 FluxRecord 对象，列放在 values 中
type fluxRecord struct {
	Time       json.RawMessage `json:"_time"`
	Value      json.RawMessage `json:"_value"`
	SensorID   string          `json:"sensor_id"`
	SensorType string          `json:"sensor_type"`
	Unit       string          `json:"unit"`
	AssetID    string          `json:"asset_id"`

	// FluxRecord 的 getter 输出
	GetterTime  json.RawMessage `json:"time"`
	GetterValue json.RawMessage `json:"value"`

	Values *fluxRecord `json:"values"`
}

func (r fluxRecord) reading(assetID string) inter.SensorReading {
	merged := r
	if r.Values != nil {
		v := *r.Values
		merged.Time = firstRaw(v.Time, r.Time, r.GetterTime)
		merged.Value = firstRaw(v.Value, r.Value, r.GetterValue)
		merged.SensorID = firstString(v.SensorID, r.SensorID)
		merged.SensorType = firstString(v.SensorType, r.SensorType)
		merged.Unit = firstString(v.Unit, r.Unit)
		merged.AssetID = firstString(v.AssetID, r.AssetID)
	} else {
		merged.Time = firstRaw(r.Time, r.GetterTime)
		merged.Value = firstRaw(r.Value, r.GetterValue)
	}

	out := inter.SensorReading{
		AssetID:    firstString(merged.AssetID, assetID),
		SensorID:   merged.SensorID,
		SensorType: inter.SensorType(merged.SensorType),
		Unit:       merged.Unit,
		Value:      parseRecordValue(merged.Value),
		Timestamp:  parseRecordTime(merged.Time),
	}
	return out
}

// parseRecordValue 非数值读数记为 NaN，展示为 N/A
func parseRecordValue(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return math.NaN()
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return math.NaN()
}

func parseRecordTime(raw json.RawMessage) inter.Timestamp {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return inter.Timestamp{}
	}
	// Instant 以秒为单位的数值输出
	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		whole, frac := math.Modf(secs)
		return inter.NewTimestamp(time.Unix(int64(whole), int64(frac*1e9)))
	}
	var ts inter.Timestamp
	if err := json.Unmarshal(raw, &ts); err != nil {
		return inter.Timestamp{}
	}
	return ts
}

func firstRaw(candidates ...json.RawMessage) json.RawMessage {
	for _, c := range candidates {
		if len(bytes.TrimSpace(c)) > 0 {
			return c
		}
	}
	return nil
}

func firstString(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
