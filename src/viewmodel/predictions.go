package viewmodel

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/nhirsama/infra-console/src/inter"
	"github.com/sourcegraph/conc"
)

const (
	// PredictionsHighRiskLimit 预测页展示的高风险预测数量
	PredictionsHighRiskLimit = 4
	// DefaultAlgorithm 后端未返回算法名时的展示值
	DefaultAlgorithm = "LSTM"
	// MsgPredictionPending 等待超时后的提示
	MsgPredictionPending = "预测任务已提交，结果生成后刷新页面即可查看"
)

// PredictionsPage 预测分析页
type PredictionsPage struct {
	Viewer      Viewer
	Assets      []inter.Asset
	Selected    string
	Predictions []PredictionCard
	Latest      *PredictionCard
	HighRisk    []PredictionCard
	Algorithm   string
	CanTrigger  bool
	Error       string
}

// LoadPredictions 并发拉取资产列表与高风险预测，再拉取选中资产的预测
func LoadPredictions(ctx context.Context, assets inter.AssetApi, predictions inter.PredictionApi, viewer Viewer, selected string) PredictionsPage {
	page := PredictionsPage{
		Viewer:     viewer,
		Selected:   selected,
		CanTrigger: viewer.CanMutate(),
	}

	var (
		assetPage inter.AssetPage
		assetErr  error
		highRisk  []inter.Prediction
	)
	var wg conc.WaitGroup
	wg.Go(func() {
		assetPage, assetErr = assets.ListAssets(ctx, 0, SensorsAssetPageSize)
	})
	wg.Go(func() {
		list, err := predictions.ListHighRisk(ctx)
		if err != nil {
			log.Printf("加载高风险预测失败，按空列表显示: %v", err)
			return
		}
		highRisk = list
	})
	wg.Wait()

	page.HighRisk = predictionCards(highRisk, PredictionsHighRiskLimit)
	if assetErr != nil {
		page.Error = loadError(assetErr, "加载资产列表失败")
	} else {
		page.Assets = assetPage.Content
	}

	if selected == "" {
		return page
	}
	list, err := predictions.ListForAsset(ctx, selected)
	if err != nil {
		page.Error = loadError(err, "加载预测数据失败")
		return page
	}
	page.fill(list)
	return page
}

func (p *PredictionsPage) fill(list []inter.Prediction) {
	p.Predictions = predictionCards(list, 0)
	if len(p.Predictions) > 0 {
		latest := p.Predictions[0]
		p.Latest = &latest
		p.Algorithm = latest.PredictionAlgorithm
		if p.Algorithm == "" {
			p.Algorithm = DefaultAlgorithm
		}
	}
}

// Drainer 可丢弃积压事件的完成信号
type Drainer interface {
	Drain(assetID string)
}

// Waiter 触发预测并等待结果
// 预测是异步任务，触发成功后结果可能仍为空
// 配置了完成信号时等待信号，否则按 PollInterval 轮询，最长等待 MaxWait
type Waiter struct {
	Predictions  inter.PredictionApi
	Signal       inter.CompletionSignal
	PollInterval time.Duration
	MaxWait      time.Duration
}

// TriggerResult 触发结果
type TriggerResult struct {
	Outcome     Outcome
	Ready       bool
	Predictions []inter.Prediction
}

// Trigger 触发预测，随后等待新的预测出现或超时
// 超时不是错误，Ready 为 false 表示结果尚未生成
func (w *Waiter) Trigger(ctx context.Context, viewer Viewer, assetID string) TriggerResult {
	if !viewer.CanMutate() {
		return TriggerResult{Outcome: forbidden()}
	}

	before, err := w.Predictions.ListForAsset(ctx, assetID)
	if err != nil {
		return TriggerResult{Outcome: OutcomeOf(err, "")}
	}
	if d, ok := w.Signal.(Drainer); ok {
		d.Drain(assetID)
	}

	msg, err := w.Predictions.TriggerPrediction(ctx, assetID)
	if err != nil {
		return TriggerResult{Outcome: OutcomeOf(err, "")}
	}
	if msg == "" {
		msg = "预测任务已触发"
	}
	res := TriggerResult{Outcome: OutcomeOf(nil, msg), Predictions: before}

	if w.MaxWait <= 0 {
		after, err := w.Predictions.ListForAsset(ctx, assetID)
		if err == nil {
			res.Predictions = after
			res.Ready = hasNewer(before, after)
		}
		if !res.Ready {
			res.Outcome.Message = MsgPredictionPending
		}
		return res
	}

	waitCtx, cancel := context.WithTimeout(ctx, w.MaxWait)
	defer cancel()
	interval := w.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	for {
		if w.Signal != nil {
			if err := w.Signal.Await(waitCtx, assetID); err != nil {
				break
			}
		} else {
			timer := time.NewTimer(interval)
			select {
			case <-waitCtx.Done():
				timer.Stop()
			case <-timer.C:
			}
			if waitCtx.Err() != nil {
				break
			}
		}

		after, err := w.Predictions.ListForAsset(ctx, assetID)
		if err != nil {
			if inter.KindOf(err) == inter.KindUnauthenticated || errors.Is(err, context.Canceled) {
				return TriggerResult{Outcome: OutcomeOf(err, "")}
			}
			log.Printf("等待预测结果时查询失败: %v", err)
			continue
		}
		res.Predictions = after
		if hasNewer(before, after) {
			res.Ready = true
			res.Outcome.Message = "预测已完成"
			return res
		}
	}

	res.Outcome.Message = MsgPredictionPending
	return res
}

// hasNewer 判断 after 中是否出现了 before 之后的新预测，两个列表都按时间倒序
func hasNewer(before, after []inter.Prediction) bool {
	if len(after) == 0 {
		return false
	}
	if len(before) == 0 {
		return true
	}
	a, b := after[0], before[0]
	if a.ID != 0 && b.ID != 0 && a.ID != b.ID {
		return true
	}
	if a.PredictionDate.After(b.PredictionDate.Time) {
		return true
	}
	return len(after) > len(before)
}
