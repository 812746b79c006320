package inter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// AssetType 基础设施资产类型
type AssetType string

const (
	AssetBridge   AssetType = "BRIDGE"
	AssetRoad     AssetType = "ROAD"
	AssetBuilding AssetType = "BUILDING"
	AssetTunnel   AssetType = "TUNNEL"
)

// AssetTypes 按展示顺序列出全部资产类型
var AssetTypes = []AssetType{AssetBridge, AssetRoad, AssetBuilding, AssetTunnel}

func (t AssetType) Valid() bool {
	for _, v := range AssetTypes {
		if v == t {
			return true
		}
	}
	return false
}

// AssetStatus 资产运行状态
type AssetStatus string

const (
	StatusOperational         AssetStatus = "OPERATIONAL"
	StatusMaintenanceRequired AssetStatus = "MAINTENANCE_REQUIRED"
	StatusUnderMaintenance    AssetStatus = "UNDER_MAINTENANCE"
	StatusCritical            AssetStatus = "CRITICAL"
	StatusOutOfService        AssetStatus = "OUT_OF_SERVICE"
)

// AssetStatuses 按展示顺序列出全部资产状态
var AssetStatuses = []AssetStatus{
	StatusOperational, StatusMaintenanceRequired, StatusUnderMaintenance, StatusCritical, StatusOutOfService,
}

func (s AssetStatus) Valid() bool {
	for _, v := range AssetStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// SensorType 传感器类型
type SensorType string

const (
	SensorTemperature SensorType = "TEMPERATURE"
	SensorVibration   SensorType = "VIBRATION"
	SensorPressure    SensorType = "PRESSURE"
	SensorHumidity    SensorType = "HUMIDITY"
	SensorStrain      SensorType = "STRAIN"
)

// SensorTypes 按展示顺序列出全部传感器类型
var SensorTypes = []SensorType{SensorTemperature, SensorVibration, SensorPressure, SensorHumidity, SensorStrain}

func (t SensorType) Valid() bool {
	for _, v := range SensorTypes {
		if v == t {
			return true
		}
	}
	return false
}

// DefaultUnit 传感器类型对应的默认单位
func (t SensorType) DefaultUnit() string {
	switch t {
	case SensorTemperature:
		return "°C"
	case SensorVibration:
		return "mm/s"
	case SensorPressure:
		return "kPa"
	case SensorHumidity:
		return "%"
	case SensorStrain:
		return "με"
	}
	return ""
}

// RiskLevel 预测风险等级
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Severe HIGH 与 CRITICAL 需要醒目提示
func (r RiskLevel) Severe() bool {
	return r == RiskHigh || r == RiskCritical
}

// Asset 基础设施资产
type Asset struct {
	ID                       int64       `json:"id,omitempty"`
	AssetID                  string      `json:"assetId"`
	Name                     string      `json:"name"`
	Type                     AssetType   `json:"type"`
	Description              string      `json:"description,omitempty"`
	Latitude                 float64     `json:"latitude"`
	Longitude                float64     `json:"longitude"`
	Status                   AssetStatus `json:"status"`
	InstallationDate         Timestamp   `json:"installationDate"`
	LastMaintenance          Timestamp   `json:"lastMaintenance"`
	NextScheduledMaintenance Timestamp   `json:"nextScheduledMaintenance"`
	MaintenancePriority      int         `json:"maintenancePriority"`
}

// AssetDraft 新建资产表单的原始输入，全部为字符串，由客户端校验后再提交
type AssetDraft struct {
	AssetID     string
	Name        string
	Type        string
	Description string
	Latitude    string
	Longitude   string
	Priority    string // 可为空，为空时由后端决定
}

// AssetPage 分页查询结果
type AssetPage struct {
	Content       []Asset `json:"content"`
	TotalElements int64   `json:"totalElements"`
	TotalPages    int     `json:"totalPages"`
	Number        int     `json:"number"`
	Size          int     `json:"size"`
}

// DashboardStats 按状态统计的资产数量
type DashboardStats struct {
	Operational         int64 `json:"operational"`
	MaintenanceRequired int64 `json:"maintenance_required"`
	UnderMaintenance    int64 `json:"under_maintenance"`
	Critical            int64 `json:"critical"`
	OutOfService        int64 `json:"out_of_service"`
}

// Count 返回指定状态的数量
func (s DashboardStats) Count(status AssetStatus) int64 {
	switch status {
	case StatusOperational:
		return s.Operational
	case StatusMaintenanceRequired:
		return s.MaintenanceRequired
	case StatusUnderMaintenance:
		return s.UnderMaintenance
	case StatusCritical:
		return s.Critical
	case StatusOutOfService:
		return s.OutOfService
	}
	return 0
}

func (s DashboardStats) Total() int64 {
	return s.Operational + s.MaintenanceRequired + s.UnderMaintenance + s.Critical + s.OutOfService
}

// SensorReading 单条传感器读数，只追加不修改
type SensorReading struct {
	AssetID    string     `json:"assetId,omitempty"`
	SensorID   string     `json:"sensorId"`
	SensorType SensorType `json:"sensorType"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit"`
	Timestamp  Timestamp  `json:"timestamp"`
}

// ReadingDraft 录入传感器数据表单的原始输入
type ReadingDraft struct {
	AssetID    string
	SensorID   string
	SensorType string
	Value      string
	Unit       string // 为空时按传感器类型取默认单位
}

// Prediction 机器学习服务产出的故障预测
type Prediction struct {
	ID                   int64     `json:"id,omitempty"`
	Asset                *Asset    `json:"asset,omitempty"`
	PredictionDate       Timestamp `json:"predictionDate"`
	PredictedFailureDate Timestamp `json:"predictedFailureDate"`
	ConfidenceScore      float64   `json:"confidenceScore"`
	RiskLevel            RiskLevel `json:"riskLevel"`
	FailureProbability   float64   `json:"failureProbability"`
	RecommendedAction    string    `json:"recommendedAction"`
	ModelVersion         string    `json:"modelVersion,omitempty"`
	PredictionAlgorithm  string    `json:"predictionAlgorithm"`
}

// AssetID 返回预测所属资产编号，未关联资产时为空
func (p Prediction) AssetID() string {
	if p.Asset == nil {
		return ""
	}
	return p.Asset.AssetID
}

// AssetName 返回预测所属资产名称
func (p Prediction) AssetName() string {
	if p.Asset == nil {
		return ""
	}
	return p.Asset.Name
}

// LocalDateTimeLayout 后端使用的无时区日期时间格式
const LocalDateTimeLayout = "2006-01-02T15:04:05"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	LocalDateTimeLayout,
	"2006-01-02T15:04",
	"2006-01-02",
}

// Timestamp 兼容带时区与不带时区两种 ISO 格式的时间，不带时区时按 UTC 处理
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// ParseTimestamp 解析 ISO 格式时间
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("无法解析时间: %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(LocalDateTimeLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	// Jackson 未关闭 WRITE_DATES_AS_TIMESTAMPS 时输出 [年,月,日,时,分,秒,纳秒]
	if data[0] == '[' {
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		t.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.UTC)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
