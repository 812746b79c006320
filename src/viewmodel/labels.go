package viewmodel

import (
	"fmt"
	"math"
	"time"

	"github.com/nhirsama/infra-console/src/inter"
)

// 展示用的中文名称与样式类

var statusText = map[inter.AssetStatus]string{
	inter.StatusOperational:         "正常运行",
	inter.StatusMaintenanceRequired: "需要维护",
	inter.StatusUnderMaintenance:    "维护中",
	inter.StatusCritical:            "严重状态",
	inter.StatusOutOfService:        "停用",
}

var statusClass = map[inter.AssetStatus]string{
	inter.StatusOperational:         "status-operational",
	inter.StatusMaintenanceRequired: "status-maintenance",
	inter.StatusUnderMaintenance:    "status-maintenance",
	inter.StatusCritical:            "status-critical",
	inter.StatusOutOfService:        "status-critical",
}

var typeText = map[inter.AssetType]string{
	inter.AssetBridge:   "桥梁",
	inter.AssetRoad:     "道路",
	inter.AssetBuilding: "建筑",
	inter.AssetTunnel:   "隧道",
}

var sensorText = map[inter.SensorType]string{
	inter.SensorTemperature: "温度",
	inter.SensorVibration:   "振动",
	inter.SensorPressure:    "压力",
	inter.SensorHumidity:    "湿度",
	inter.SensorStrain:      "应变",
}

var riskText = map[inter.RiskLevel]string{
	inter.RiskCritical: "极其严重",
	inter.RiskHigh:     "高风险",
	inter.RiskMedium:   "中等风险",
	inter.RiskLow:      "低风险",
}

var riskClass = map[inter.RiskLevel]string{
	inter.RiskCritical: "status-critical",
	inter.RiskHigh:     "status-critical",
	inter.RiskMedium:   "status-maintenance",
	inter.RiskLow:      "status-operational",
}

var roleText = map[inter.Role]string{
	inter.RoleAdmin:    "管理员",
	inter.RoleManager:  "经理",
	inter.RoleOperator: "操作员",
	inter.RoleViewer:   "访客",
}

// StatusText 未知状态原样返回
func StatusText(s inter.AssetStatus) string {
	if t, ok := statusText[s]; ok {
		return t
	}
	return string(s)
}

func StatusClass(s inter.AssetStatus) string {
	return statusClass[s]
}

func TypeText(t inter.AssetType) string {
	if v, ok := typeText[t]; ok {
		return v
	}
	return string(t)
}

func SensorText(t inter.SensorType) string {
	if v, ok := sensorText[t]; ok {
		return v
	}
	return string(t)
}

func RiskText(r inter.RiskLevel) string {
	if v, ok := riskText[r]; ok {
		return v
	}
	return string(r)
}

func RiskClass(r inter.RiskLevel) string {
	return riskClass[r]
}

func RoleText(r inter.Role) string {
	if v, ok := roleText[r]; ok {
		return v
	}
	return string(r)
}

// FormatValue 读数保留两位小数，非数值显示 N/A
func FormatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatPercent 0-1 的比例格式化为百分比，保留一位小数
func FormatPercent(v float64) string {
	if math.IsNaN(v) {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", v*100)
}

func FormatDate(t inter.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func FormatDateTime(t inter.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(time.Local).Format("2006-01-02 15:04:05")
}

// Option 下拉框选项
type Option struct {
	Value string
	Label string
	Extra string
}

// StatusOptions 资产状态选项
func StatusOptions() []Option {
	out := make([]Option, 0, len(inter.AssetStatuses))
	for _, s := range inter.AssetStatuses {
		out = append(out, Option{Value: string(s), Label: StatusText(s)})
	}
	return out
}

// TypeOptions 资产类型选项
func TypeOptions() []Option {
	out := make([]Option, 0, len(inter.AssetTypes))
	for _, t := range inter.AssetTypes {
		out = append(out, Option{Value: string(t), Label: TypeText(t)})
	}
	return out
}

// SensorOptions 传感器类型选项，Extra 为默认单位
func SensorOptions() []Option {
	out := make([]Option, 0, len(inter.SensorTypes))
	for _, t := range inter.SensorTypes {
		out = append(out, Option{Value: string(t), Label: SensorText(t), Extra: t.DefaultUnit()})
	}
	return out
}
