package api

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/nhirsama/infra-console/src/inter"
)

// DefaultAggregationWindow 聚合窗口默认值
const DefaultAggregationWindow = "1h"

// windowPattern Flux 时长字面量，如 30s、5m、1h、7d
var windowPattern = regexp.MustCompile(`^[1-9][0-9]*(ns|us|µs|ms|s|m|h|d|w|mo|y)$`)

type sensorApi struct {
	t Doer
}

// NewSensorApi 创建传感器客户端
func NewSensorApi(t Doer) inter.SensorApi {
	return &sensorApi{t: t}
}

type readingRequest struct {
	AssetID    string           `json:"assetId"`
	SensorID   string           `json:"sensorId"`
	SensorType inter.SensorType `json:"sensorType"`
	Value      float64          `json:"value"`
	Unit       string           `json:"unit"`
}

func (s *sensorApi) RecordReading(ctx context.Context, draft inter.ReadingDraft) (inter.SensorReading, error) {
	req, err := validateReadingDraft(draft)
	if err != nil {
		return inter.SensorReading{}, err
	}

	var saved inter.SensorReading
	if err := s.t.Do(ctx, http.MethodPost, pathSensorData, nil, req, &saved); err != nil {
		return inter.SensorReading{}, err
	}
	// 后端返回的实体不含资产编号
	saved.AssetID = req.AssetID
	if saved.SensorID == "" {
		saved.SensorID = req.SensorID
		saved.SensorType = req.SensorType
		saved.Value = req.Value
		saved.Unit = req.Unit
	}
	return saved, nil
}

func (s *sensorApi) AggregatedReadings(ctx context.Context, assetID, window string) ([]inter.SensorReading, error) {
	id, err := requireAssetID(assetID)
	if err != nil {
		return nil, err
	}
	window = strings.TrimSpace(window)
	if window == "" {
		window = DefaultAggregationWindow
	}
	if !windowPattern.MatchString(window) {
		return nil, &inter.ValidationError{Field: "aggregationWindow", Message: "聚合窗口格式错误，例如 1h、30m"}
	}

	q := url.Values{}
	q.Set("aggregationWindow", window)
	var records []fluxRecord
	if err := s.t.Do(ctx, http.MethodGet, assetPath(pathSensorData, id, "aggregated"), q, nil, &records); err != nil {
		return nil, err
	}

	readings := make([]inter.SensorReading, 0, len(records))
	for _, r := range records {
		readings = append(readings, r.reading(id))
	}
	return readings, nil
}

func (s *sensorApi) SimulateReadings(ctx context.Context, assetID string) (string, error) {
	id, err := requireAssetID(assetID)
	if err != nil {
		return "", err
	}
	var msg string
	if err := s.t.Do(ctx, http.MethodPost, assetPath(pathSensorSimulate, id), nil, nil, &msg); err != nil {
		return "", err
	}
	return msg, nil
}

// validateReadingDraft 校验读数表单，读数必须是有限数值
func validateReadingDraft(d inter.ReadingDraft) (readingRequest, error) {
	req := readingRequest{
		AssetID:  strings.TrimSpace(d.AssetID),
		SensorID: strings.TrimSpace(d.SensorID),
		Unit:     strings.TrimSpace(d.Unit),
	}
	if req.AssetID == "" {
		return req, &inter.ValidationError{Field: "assetId", Message: MsgSelectAsset}
	}
	if req.SensorID == "" {
		return req, &inter.ValidationError{Field: "sensorId", Message: "传感器编号不能为空"}
	}
	req.SensorType = inter.SensorType(strings.ToUpper(strings.TrimSpace(d.SensorType)))
	if !req.SensorType.Valid() {
		return req, &inter.ValidationError{Field: "sensorType", Message: "未知的传感器类型"}
	}

	raw := strings.TrimSpace(d.Value)
	v, err := strconv.ParseFloat(raw, 64)
	if raw == "" || err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return req, &inter.ValidationError{Field: "value", Message: "读数必须是数字"}
	}
	req.Value = v

	if req.Unit == "" {
		req.Unit = req.SensorType.DefaultUnit()
	}
	return req, nil
}
