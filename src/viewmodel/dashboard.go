package viewmodel

import (
	"context"
	"log"

	"github.com/nhirsama/infra-console/src/inter"
	"github.com/sourcegraph/conc"
)

// DashboardHighRiskLimit 仪表板展示的高风险预测数量
const DashboardHighRiskLimit = 6

// StatusCount 单个状态的统计卡片
type StatusCount struct {
	Status inter.AssetStatus
	Text   string
	Class  string
	Count  int64
}

// PredictionCard 预测卡片
type PredictionCard struct {
	inter.Prediction
	AssetLabel  string
	RiskText    string
	RiskClass   string
	Confidence  string
	Probability string
	FailureDate string
	CreatedAt   string
	Severe      bool
}

func newPredictionCard(p inter.Prediction) PredictionCard {
	label := p.AssetName()
	if label == "" {
		label = p.AssetID()
	}
	return PredictionCard{
		Prediction:  p,
		AssetLabel:  label,
		RiskText:    RiskText(p.RiskLevel),
		RiskClass:   RiskClass(p.RiskLevel),
		Confidence:  FormatPercent(p.ConfidenceScore),
		Probability: FormatPercent(p.FailureProbability),
		FailureDate: FormatDate(p.PredictedFailureDate),
		CreatedAt:   FormatDateTime(p.PredictionDate),
		Severe:      p.RiskLevel.Severe(),
	}
}

func predictionCards(list []inter.Prediction, limit int) []PredictionCard {
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]PredictionCard, 0, len(list))
	for _, p := range list {
		out = append(out, newPredictionCard(p))
	}
	return out
}

// DashboardPage 仪表板
type DashboardPage struct {
	Viewer   Viewer
	Stats    inter.DashboardStats
	Counts   []StatusCount
	Total    int64
	StatsErr string
	HighRisk []PredictionCard
}

// LoadDashboard 并发拉取统计与高风险预测
// 两个请求互不影响，高风险预测失败时按空列表处理
func LoadDashboard(ctx context.Context, assets inter.AssetApi, predictions inter.PredictionApi, viewer Viewer) DashboardPage {
	page := DashboardPage{Viewer: viewer}

	var (
		stats    inter.DashboardStats
		statsErr error
		highRisk []inter.Prediction
	)
	var wg conc.WaitGroup
	wg.Go(func() {
		stats, statsErr = assets.DashboardStats(ctx)
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

	if statsErr != nil {
		page.StatsErr = loadError(statsErr, "加载仪表板数据失败")
	} else {
		page.Stats = stats
		page.Total = stats.Total()
		for _, s := range inter.AssetStatuses {
			page.Counts = append(page.Counts, StatusCount{
				Status: s,
				Text:   StatusText(s),
				Class:  StatusClass(s),
				Count:  stats.Count(s),
			})
		}
	}
	page.HighRisk = predictionCards(highRisk, DashboardHighRiskLimit)
	return page
}
