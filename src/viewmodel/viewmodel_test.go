package viewmodel

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/nhirsama/infra-console/src/inter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin  = Viewer{Username: "admin", Role: inter.RoleAdmin}
	viewer = Viewer{Username: "viewer", Role: inter.RoleViewer}
)

type fakeAssets struct {
	page     inter.AssetPage
	listErr  error
	stats    inter.DashboardStats
	statsErr error
	calls    int
}

func (f *fakeAssets) ListAssets(context.Context, int, int) (inter.AssetPage, error) {
	f.calls++
	return f.page, f.listErr
}

func (f *fakeAssets) CreateAsset(_ context.Context, d inter.AssetDraft) (inter.Asset, error) {
	f.calls++
	if d.Latitude == "north" {
		return inter.Asset{}, &inter.ValidationError{Field: "latitude", Message: "纬度必须是数字"}
	}
	return inter.Asset{AssetID: d.AssetID}, nil
}

func (f *fakeAssets) UpdateStatus(_ context.Context, id string, s inter.AssetStatus) (inter.Asset, error) {
	f.calls++
	return inter.Asset{AssetID: id, Status: s}, nil
}

func (f *fakeAssets) DashboardStats(context.Context) (inter.DashboardStats, error) {
	return f.stats, f.statsErr
}

type fakeSensors struct {
	readings []inter.SensorReading
	err      error
	window   string
	recorded int
}

func (f *fakeSensors) RecordReading(_ context.Context, d inter.ReadingDraft) (inter.SensorReading, error) {
	f.recorded++
	return inter.SensorReading{SensorID: d.SensorID, Value: 1.5, Unit: "°C"}, nil
}

func (f *fakeSensors) AggregatedReadings(_ context.Context, _ string, window string) ([]inter.SensorReading, error) {
	f.window = window
	return f.readings, f.err
}

func (f *fakeSensors) SimulateReadings(context.Context, string) (string, error) {
	return "", nil
}

type fakePredictions struct {
	mu        sync.Mutex
	list      []inter.Prediction
	highRisk  []inter.Prediction
	highErr   error
	onTrigger func()
	triggered int
}

func (f *fakePredictions) TriggerPrediction(context.Context, string) (string, error) {
	f.mu.Lock()
	f.triggered++
	fn := f.onTrigger
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
	return "Prediction triggered", nil
}

func (f *fakePredictions) ListForAsset(context.Context, string) ([]inter.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]inter.Prediction, len(f.list))
	copy(out, f.list)
	return out, nil
}

func (f *fakePredictions) ListHighRisk(context.Context) ([]inter.Prediction, error) {
	return f.highRisk, f.highErr
}

func (f *fakePredictions) add(p inter.Prediction) {
	f.mu.Lock()
	f.list = append([]inter.Prediction{p}, f.list...)
	f.mu.Unlock()
}

func prediction(id int64, risk inter.RiskLevel, at time.Time) inter.Prediction {
	return inter.Prediction{
		ID:             id,
		Asset:          &inter.Asset{AssetID: "B1", Name: "Bridge"},
		RiskLevel:      risk,
		PredictionDate: inter.NewTimestamp(at),
	}
}

func TestLoadDashboard(t *testing.T) {
	assets := &fakeAssets{stats: inter.DashboardStats{Operational: 3, Critical: 1}}
	preds := &fakePredictions{highErr: errors.New("boom")}

	page := LoadDashboard(context.Background(), assets, preds, admin)
	assert.Empty(t, page.StatsErr)
	assert.Equal(t, int64(4), page.Total)
	require.Len(t, page.Counts, len(inter.AssetStatuses))
	assert.Equal(t, "正常运行", page.Counts[0].Text)
	assert.Empty(t, page.HighRisk, "高风险预测失败时按空列表显示")

	var many []inter.Prediction
	for i := 0; i < 10; i++ {
		many = append(many, prediction(int64(i), inter.RiskHigh, time.Now()))
	}
	preds = &fakePredictions{highRisk: many}
	assets.statsErr = &inter.ResponseError{Status: 500, Kind: inter.ErrServer}
	page = LoadDashboard(context.Background(), assets, preds, admin)
	assert.Equal(t, "加载仪表板数据失败", page.StatsErr)
	assert.Len(t, page.HighRisk, DashboardHighRiskLimit)
	assert.Equal(t, "Bridge", page.HighRisk[0].AssetLabel)
	assert.True(t, page.HighRisk[0].Severe)
}

// rendezvous 两个请求都开始后才一起返回，串行执行时会一直等到超时
type rendezvous struct {
	fakeAssets
	fakePredictions
	wg sync.WaitGroup
}

func newRendezvous() *rendezvous {
	r := &rendezvous{}
	r.wg.Add(2)
	return r
}

func (r *rendezvous) meet(ctx context.Context) error {
	r.wg.Done()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *rendezvous) DashboardStats(ctx context.Context) (inter.DashboardStats, error) {
	if err := r.meet(ctx); err != nil {
		return inter.DashboardStats{}, err
	}
	return inter.DashboardStats{Operational: 2}, nil
}

func (r *rendezvous) ListHighRisk(ctx context.Context) ([]inter.Prediction, error) {
	if err := r.meet(ctx); err != nil {
		return nil, err
	}
	return []inter.Prediction{prediction(1, inter.RiskCritical, time.Now())}, nil
}

func TestLoadDashboardFetchesConcurrently(t *testing.T) {
	r := newRendezvous()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	page := LoadDashboard(ctx, r, r, admin)
	require.NoError(t, ctx.Err(), "统计与高风险预测应并发请求")
	assert.Empty(t, page.StatsErr)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.HighRisk, 1)
}

func TestLoadAssetsGate(t *testing.T) {
	assets := &fakeAssets{page: inter.AssetPage{
		Content: []inter.Asset{
			{AssetID: "B1", Type: inter.AssetBridge, Status: inter.StatusCritical},
			{AssetID: "R1", Type: inter.AssetRoad, Status: inter.StatusOperational},
		},
		TotalElements: 2,
	}}

	page := LoadAssets(context.Background(), assets, admin)
	assert.True(t, page.CanCreate)
	assert.Equal(t, 1, page.CriticalCount)
	require.Len(t, page.Assets, 2)
	assert.True(t, page.Assets[0].ShowStatusControl)
	assert.Equal(t, "桥梁", page.Assets[0].TypeText)

	page = LoadAssets(context.Background(), assets, viewer)
	assert.False(t, page.CanCreate)
	assert.False(t, page.Assets[0].ShowStatusControl)

	assets.listErr = &inter.ResponseError{Status: 401, Kind: inter.ErrUnauthenticated}
	page = LoadAssets(context.Background(), assets, admin)
	assert.Empty(t, page.Error, "未登录时不显示错误，由会话负责跳转")
}

func TestMutationsRespectGate(t *testing.T) {
	assets := &fakeAssets{}
	out := CreateAsset(context.Background(), assets, viewer, inter.AssetDraft{AssetID: "B9"})
	assert.False(t, out.OK)
	assert.Equal(t, MsgForbidden, out.Message)
	out = UpdateAssetStatus(context.Background(), assets, Viewer{Role: inter.RoleOperator}, "B1", inter.StatusCritical)
	assert.Equal(t, MsgForbidden, out.Message)
	assert.Zero(t, assets.calls, "无权限时不应发出请求")

	out = CreateAsset(context.Background(), assets, admin, inter.AssetDraft{AssetID: "B9", Latitude: "north"})
	assert.False(t, out.OK)
	assert.Equal(t, "纬度必须是数字", out.FieldErrors["latitude"])

	out = CreateAsset(context.Background(), assets, admin, inter.AssetDraft{AssetID: "B9"})
	assert.True(t, out.OK)
	assert.Equal(t, "资产 B9 创建成功", out.Message)

	out = SimulateReadings(context.Background(), &fakeSensors{}, viewer, "B1")
	assert.Equal(t, MsgForbidden, out.Message)

	sensors := &fakeSensors{}
	draft := inter.ReadingDraft{AssetID: "B1", SensorID: "T1", SensorType: "TEMPERATURE", Value: "1.5"}
	out = RecordReading(context.Background(), sensors, viewer, draft)
	assert.False(t, out.OK)
	assert.Equal(t, MsgForbidden, out.Message)
	assert.Zero(t, sensors.recorded, "只读角色不应提交读数")
	out = RecordReading(context.Background(), sensors, Viewer{Role: inter.RoleOperator}, draft)
	assert.Equal(t, MsgForbidden, out.Message, "OPERATOR 同样只读")
	out = RecordReading(context.Background(), sensors, Viewer{Role: inter.RoleManager}, draft)
	assert.True(t, out.OK)
	assert.Equal(t, "已记录 T1 读数 1.50 °C", out.Message)
	assert.Equal(t, 1, sensors.recorded)

	out = SimulateReadings(context.Background(), &fakeSensors{}, admin, "B1")
	assert.True(t, out.OK)
	assert.Equal(t, "模拟数据已生成", out.Message)
}

func TestOutcomeOf(t *testing.T) {
	out := OutcomeOf(&inter.ResponseError{Status: 401, Kind: inter.ErrUnauthenticated}, "")
	assert.True(t, out.Unauthenticated)

	out = OutcomeOf(&inter.ResponseError{Status: 403, Kind: inter.ErrForbidden}, "")
	assert.Equal(t, MsgForbidden, out.Message)

	out = OutcomeOf(&inter.ResponseError{Status: 400, Kind: inter.ErrValidation, Message: "Asset ID already exists: B1"}, "")
	assert.Equal(t, "Asset ID already exists: B1", out.Message)
	assert.Nil(t, out.FieldErrors)
}

func TestLoadSensors(t *testing.T) {
	assets := &fakeAssets{page: inter.AssetPage{Content: []inter.Asset{{AssetID: "B1"}, {AssetID: "R1"}}}}
	now := time.Now()
	sensors := &fakeSensors{readings: []inter.SensorReading{
		{SensorID: "T1", SensorType: inter.SensorTemperature, Value: 21.456, Unit: "°C", Timestamp: inter.NewTimestamp(now)},
		{SensorID: "T1", SensorType: inter.SensorTemperature, Value: math.NaN(), Unit: "°C", Timestamp: inter.NewTimestamp(now.Add(-time.Minute))},
		{SensorID: "V1", SensorType: inter.SensorVibration, Value: 3, Unit: "mm/s", Timestamp: inter.NewTimestamp(now.Add(-time.Hour))},
	}}

	page := LoadSensors(context.Background(), assets, sensors, viewer, "", "")
	assert.Equal(t, "B1", page.Selected, "未选择时默认第一个资产")
	assert.Equal(t, "1h", sensors.window)
	assert.False(t, page.CanSimulate)
	assert.Equal(t, 3, page.Stats.Total)
	assert.Equal(t, 2, page.Stats.Types)
	assert.Equal(t, 2, page.Stats.Sensors)
	require.Len(t, page.Rows, 3)
	assert.Equal(t, "21.46", page.Rows[0].Value)
	assert.Equal(t, "N/A", page.Rows[1].Value)

	sensors.err = &inter.ResponseError{Status: 404, Kind: inter.ErrNotFound}
	page = LoadSensors(context.Background(), assets, sensors, admin, "R1", "1d")
	assert.True(t, page.Empty, "没有数据时按空状态显示")
	assert.Empty(t, page.Error)

	sensors.err = &inter.ValidationError{Field: "aggregationWindow", Message: "聚合窗口格式错误，例如 1h、30m"}
	page = LoadSensors(context.Background(), assets, sensors, admin, "R1", "soon")
	assert.Equal(t, "聚合窗口格式错误，例如 1h、30m", page.Error)

	empty := &fakeAssets{}
	page = LoadSensors(context.Background(), empty, sensors, admin, "", "")
	assert.True(t, page.Empty)
	assert.Empty(t, page.Selected)
}

func TestLoadPredictions(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	preds := &fakePredictions{
		list:     []inter.Prediction{prediction(2, inter.RiskMedium, base)},
		highRisk: []inter.Prediction{prediction(1, inter.RiskHigh, base)},
	}
	assets := &fakeAssets{page: inter.AssetPage{Content: []inter.Asset{{AssetID: "B1"}}}}

	page := LoadPredictions(context.Background(), assets, preds, viewer, "")
	assert.Nil(t, page.Latest)
	assert.Len(t, page.HighRisk, 1)
	assert.False(t, page.CanTrigger)

	page = LoadPredictions(context.Background(), assets, preds, admin, "B1")
	require.NotNil(t, page.Latest)
	assert.Equal(t, int64(2), page.Latest.ID)
	assert.Equal(t, DefaultAlgorithm, page.Algorithm)
	assert.True(t, page.CanTrigger)
}

type chanSignal struct {
	ch      chan struct{}
	drained int
}

func (s *chanSignal) Await(ctx context.Context, _ string) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *chanSignal) Drain(string) { s.drained++ }

func TestWaiter(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("无权限", func(t *testing.T) {
		preds := &fakePredictions{}
		w := &Waiter{Predictions: preds}
		res := w.Trigger(context.Background(), viewer, "B1")
		assert.Equal(t, MsgForbidden, res.Outcome.Message)
		assert.Zero(t, preds.triggered)
	})

	t.Run("不等待时提示已提交", func(t *testing.T) {
		preds := &fakePredictions{}
		w := &Waiter{Predictions: preds}
		res := w.Trigger(context.Background(), admin, "B1")
		assert.True(t, res.Outcome.OK)
		assert.False(t, res.Ready)
		assert.Equal(t, MsgPredictionPending, res.Outcome.Message)
	})

	t.Run("轮询到新结果", func(t *testing.T) {
		preds := &fakePredictions{list: []inter.Prediction{prediction(1, inter.RiskLow, base)}}
		preds.onTrigger = func() {
			go func() {
				time.Sleep(15 * time.Millisecond)
				preds.add(prediction(2, inter.RiskHigh, base.Add(time.Hour)))
			}()
		}
		w := &Waiter{Predictions: preds, PollInterval: 5 * time.Millisecond, MaxWait: time.Second}
		res := w.Trigger(context.Background(), admin, "B1")
		assert.True(t, res.Ready)
		assert.Equal(t, "预测已完成", res.Outcome.Message)
		assert.Equal(t, int64(2), res.Predictions[0].ID)
	})

	t.Run("等待完成信号", func(t *testing.T) {
		preds := &fakePredictions{}
		sig := &chanSignal{ch: make(chan struct{}, 1)}
		preds.onTrigger = func() {
			preds.add(prediction(3, inter.RiskMedium, base))
			sig.ch <- struct{}{}
		}
		w := &Waiter{Predictions: preds, Signal: sig, MaxWait: time.Second}
		res := w.Trigger(context.Background(), admin, "B1")
		assert.True(t, res.Ready)
		assert.Equal(t, 1, sig.drained, "触发前应丢弃积压事件")
	})

	t.Run("超时不是错误", func(t *testing.T) {
		preds := &fakePredictions{}
		w := &Waiter{Predictions: preds, PollInterval: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}
		res := w.Trigger(context.Background(), admin, "B1")
		assert.True(t, res.Outcome.OK)
		assert.False(t, res.Ready)
		assert.Equal(t, MsgPredictionPending, res.Outcome.Message)
	})
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "N/A", FormatValue(math.Inf(1)))
	assert.Equal(t, "12.30", FormatValue(12.3))
	assert.Equal(t, "87.5%", FormatPercent(0.875))
	assert.Equal(t, "-", FormatDate(inter.Timestamp{}))
	assert.Equal(t, "UNKNOWN", StatusText("UNKNOWN"))
	assert.Equal(t, "管理员", RoleText(inter.RoleAdmin))
	assert.Equal(t, "°C", SensorOptions()[0].Extra)
	assert.Equal(t, Viewer{}, ViewerOf(inter.Session{Username: "x"}, false))
}
