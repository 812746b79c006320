package viewmodel

import (
	"context"
	"errors"
	"log"

	"github.com/nhirsama/infra-console/src/inter"
)

const (
	// SensorsAssetPageSize 传感器页资产下拉框拉取的数量
	SensorsAssetPageSize = 100
	// SensorsRowLimit 表格展示的记录数
	SensorsRowLimit = 20
)

// ReadingRow 表格中的一行
type ReadingRow struct {
	Time      string
	SensorID  string
	TypeLabel string
	Value     string
	Unit      string
}

// ReadingStats 数据概览
type ReadingStats struct {
	Total   int
	Types   int
	Sensors int
	Latest  string
}

// SensorsPage 传感器数据页
type SensorsPage struct {
	Viewer      Viewer
	Assets      []inter.Asset
	Selected    string
	Window      string
	Rows        []ReadingRow
	Stats       ReadingStats
	Empty       bool
	Error       string
	CanSimulate bool
	CanRecord   bool
	SensorTypes []Option
}

// LoadSensors 拉取资产列表与选中资产的聚合数据，未指定资产时默认选中第一个
func LoadSensors(ctx context.Context, assets inter.AssetApi, sensors inter.SensorApi, viewer Viewer, selected, window string) SensorsPage {
	page := SensorsPage{
		Viewer:      viewer,
		Window:      window,
		CanSimulate: viewer.CanMutate(),
		CanRecord:   viewer.CanMutate(),
		SensorTypes: SensorOptions(),
	}
	if page.Window == "" {
		page.Window = "1h"
	}

	res, err := assets.ListAssets(ctx, 0, SensorsAssetPageSize)
	if err != nil {
		page.Error = loadError(err, "加载资产列表失败")
		return page
	}
	page.Assets = res.Content
	if selected == "" && len(page.Assets) > 0 {
		selected = page.Assets[0].AssetID
	}
	page.Selected = selected
	if selected == "" {
		page.Empty = true
		return page
	}

	readings, err := sensors.AggregatedReadings(ctx, selected, page.Window)
	if err != nil {
		var ve *inter.ValidationError
		if errors.As(err, &ve) {
			page.Error = ve.Message
			return page
		}
		switch inter.KindOf(err) {
		case inter.KindNotFound, inter.KindValidation:
			// 还没有数据时后端返回 404 或 400
			log.Printf("资产 %s 暂无传感器数据: %v", selected, err)
			page.Empty = true
		default:
			page.Error = loadError(err, "加载传感器数据失败")
		}
		return page
	}

	page.Stats = summarize(readings)
	page.Empty = len(readings) == 0
	limit := readings
	if len(limit) > SensorsRowLimit {
		limit = limit[:SensorsRowLimit]
	}
	for _, r := range limit {
		page.Rows = append(page.Rows, ReadingRow{
			Time:      FormatDateTime(r.Timestamp),
			SensorID:  r.SensorID,
			TypeLabel: SensorText(r.SensorType),
			Value:     FormatValue(r.Value),
			Unit:      r.Unit,
		})
	}
	return page
}

func summarize(readings []inter.SensorReading) ReadingStats {
	types := make(map[inter.SensorType]struct{})
	ids := make(map[string]struct{})
	var latest inter.Timestamp
	for _, r := range readings {
		if r.SensorType != "" {
			types[r.SensorType] = struct{}{}
		}
		if r.SensorID != "" {
			ids[r.SensorID] = struct{}{}
		}
		if r.Timestamp.After(latest.Time) {
			latest = r.Timestamp
		}
	}
	return ReadingStats{
		Total:   len(readings),
		Types:   len(types),
		Sensors: len(ids),
		Latest:  FormatDateTime(latest),
	}
}

// RecordReading 录入一条读数，只读角色直接拒绝
func RecordReading(ctx context.Context, sensors inter.SensorApi, viewer Viewer, draft inter.ReadingDraft) Outcome {
	if !viewer.CanMutate() {
		return forbidden()
	}
	saved, err := sensors.RecordReading(ctx, draft)
	if err != nil {
		return OutcomeOf(err, "")
	}
	return OutcomeOf(nil, "已记录 "+saved.SensorID+" 读数 "+FormatValue(saved.Value)+" "+saved.Unit)
}

// SimulateReadings 生成模拟数据
func SimulateReadings(ctx context.Context, sensors inter.SensorApi, viewer Viewer, assetID string) Outcome {
	if !viewer.CanMutate() {
		return forbidden()
	}
	msg, err := sensors.SimulateReadings(ctx, assetID)
	if err != nil {
		return OutcomeOf(err, "")
	}
	if msg == "" {
		msg = "模拟数据已生成"
	}
	return OutcomeOf(nil, msg)
}
