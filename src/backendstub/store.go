package backendstub

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nhirsama/infra-console/src/inter"
	"golang.org/x/crypto/bcrypt"
)

type stubUser struct {
	Username     string
	PasswordHash []byte
	Role         inter.Role
}

// DemoUsers 演示账号，密码为用户名加 123
var DemoUsers = []struct {
	Username string
	Password string
	Role     inter.Role
}{
	{"admin", "admin123", inter.RoleAdmin},
	{"manager", "manager123", inter.RoleManager},
	{"operator", "operator123", inter.RoleOperator},
	{"viewer", "viewer123", inter.RoleViewer},
}

// memoryBackend 进程内的资产、读数与预测数据
type memoryBackend struct {
	mu          sync.Mutex
	users       map[string]stubUser
	assets      []*inter.Asset
	nextAssetID int64
	readings    map[string][]inter.SensorReading
	predictions map[string][]inter.Prediction
	nextPredID  int64
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		users:       make(map[string]stubUser),
		readings:    make(map[string][]inter.SensorReading),
		predictions: make(map[string][]inter.Prediction),
	}
}

func (m *memoryBackend) addUser(username, password string, role inter.Role) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.users[username] = stubUser{Username: username, PasswordHash: hash, Role: role}
	m.mu.Unlock()
	return nil
}

func (m *memoryBackend) authenticate(username, password string) (stubUser, bool) {
	m.mu.Lock()
	u, ok := m.users[username]
	m.mu.Unlock()
	if !ok {
		return stubUser{}, false
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return stubUser{}, false
	}
	return u, true
}

func (m *memoryBackend) findAssetLocked(assetID string) *inter.Asset {
	for _, a := range m.assets {
		if a.AssetID == assetID {
			return a
		}
	}
	return nil
}

func (m *memoryBackend) asset(assetID string) (inter.Asset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.findAssetLocked(assetID)
	if a == nil {
		return inter.Asset{}, false
	}
	return *a, true
}

// insertAsset 资产编号重复时返回 false
func (m *memoryBackend) insertAsset(a inter.Asset) (inter.Asset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findAssetLocked(a.AssetID) != nil {
		return inter.Asset{}, false
	}
	m.nextAssetID++
	a.ID = m.nextAssetID
	stored := a
	m.assets = append(m.assets, &stored)
	return stored, true
}

func (m *memoryBackend) setStatus(assetID string, status inter.AssetStatus) (inter.Asset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.findAssetLocked(assetID)
	if a == nil {
		return inter.Asset{}, false
	}
	a.Status = status
	return *a, true
}

func (m *memoryBackend) setPriority(assetID string, priority int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.findAssetLocked(assetID); a != nil {
		a.MaintenancePriority = priority
	}
}

func (m *memoryBackend) page(number, size int) inter.AssetPage {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := len(m.assets)
	out := inter.AssetPage{
		Content:       []inter.Asset{},
		TotalElements: int64(total),
		Number:        number,
		Size:          size,
	}
	if size > 0 {
		out.TotalPages = (total + size - 1) / size
	}
	start := number * size
	if start >= total {
		return out
	}
	end := start + size
	if end > total {
		end = total
	}
	for _, a := range m.assets[start:end] {
		out.Content = append(out.Content, *a)
	}
	return out
}

func (m *memoryBackend) stats() inter.DashboardStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s inter.DashboardStats
	for _, a := range m.assets {
		switch a.Status {
		case inter.StatusOperational:
			s.Operational++
		case inter.StatusMaintenanceRequired:
			s.MaintenanceRequired++
		case inter.StatusUnderMaintenance:
			s.UnderMaintenance++
		case inter.StatusCritical:
			s.Critical++
		case inter.StatusOutOfService:
			s.OutOfService++
		}
	}
	return s
}

func (m *memoryBackend) record(r inter.SensorReading) {
	m.mu.Lock()
	m.readings[r.AssetID] = append(m.readings[r.AssetID], r)
	m.mu.Unlock()
}

// aggregate 按传感器与时间窗口求均值，新窗口在前
func (m *memoryBackend) aggregate(assetID string, window time.Duration) []aggregatedRecord {
	m.mu.Lock()
	readings := append([]inter.SensorReading(nil), m.readings[assetID]...)
	m.mu.Unlock()

	type bucketKey struct {
		sensorID string
		start    int64
	}
	type bucket struct {
		first inter.SensorReading
		sum   float64
		n     int
		end   time.Time
	}
	buckets := make(map[bucketKey]*bucket)
	var order []bucketKey
	for _, r := range readings {
		start := r.Timestamp.Truncate(window)
		k := bucketKey{sensorID: r.SensorID, start: start.UnixNano()}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{first: r, end: start.Add(window)}
			buckets[k] = b
			order = append(order, k)
		}
		b.sum += r.Value
		b.n++
	}

	out := make([]aggregatedRecord, 0, len(order))
	for _, k := range order {
		b := buckets[k]
		out = append(out, aggregatedRecord{
			Time:       b.end.UTC().Format(time.RFC3339),
			Value:      b.sum / float64(b.n),
			SensorID:   b.first.SensorID,
			SensorType: string(b.first.SensorType),
			Unit:       b.first.Unit,
			AssetID:    assetID,
			Field:      "value",
			Start:      k.start,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start > out[j].Start
		}
		return out[i].SensorID < out[j].SensorID
	})
	return out
}

func (m *memoryBackend) addPrediction(assetID string, p inter.Prediction) inter.Prediction {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPredID++
	p.ID = m.nextPredID
	m.predictions[assetID] = append(m.predictions[assetID], p)
	return p
}

// predictionsFor 按预测时间倒序
func (m *memoryBackend) predictionsFor(assetID string) []inter.Prediction {
	m.mu.Lock()
	out := append([]inter.Prediction{}, m.predictions[assetID]...)
	m.mu.Unlock()
	sortByDateDesc(out)
	return out
}

func (m *memoryBackend) highRisk() []inter.Prediction {
	m.mu.Lock()
	out := []inter.Prediction{}
	for _, list := range m.predictions {
		for _, p := range list {
			if p.RiskLevel.Severe() {
				out = append(out, p)
			}
		}
	}
	m.mu.Unlock()
	sortByDateDesc(out)
	return out
}

func sortByDateDesc(list []inter.Prediction) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].PredictionDate.Equal(list[j].PredictionDate.Time) {
			return list[i].PredictionDate.After(list[j].PredictionDate.Time)
		}
		return list[i].ID > list[j].ID
	})
}

// aggregatedRecord 与时序库聚合查询输出的列保持一致
type aggregatedRecord struct {
	Time       string  `json:"_time"`
	Value      float64 `json:"_value"`
	Field      string  `json:"_field"`
	SensorID   string  `json:"sensor_id"`
	SensorType string  `json:"sensor_type"`
	Unit       string  `json:"unit"`
	AssetID    string  `json:"asset_id"`
	Start      int64   `json:"-"`
}

// parseWindow 支持 s m h d w 单位
func parseWindow(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Hour, true
	}
	mult := time.Duration(0)
	switch {
	case strings.HasSuffix(raw, "d"):
		mult = 24 * time.Hour
	case strings.HasSuffix(raw, "w"):
		mult = 7 * 24 * time.Hour
	}
	if mult > 0 {
		n, err := strconv.Atoi(raw[:len(raw)-1])
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * mult, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
