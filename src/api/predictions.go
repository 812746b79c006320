package api

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/nhirsama/infra-console/src/inter"
)

type predictionApi struct {
	t Doer
}

// NewPredictionApi 创建预测客户端
func NewPredictionApi(t Doer) inter.PredictionApi {
	return &predictionApi{t: t}
}

func (p *predictionApi) TriggerPrediction(ctx context.Context, assetID string) (string, error) {
	id, err := requireAssetID(assetID)
	if err != nil {
		return "", err
	}
	var msg string
	if err := p.t.Do(ctx, http.MethodPost, assetPath(pathPredictTrigger, id), nil, nil, &msg); err != nil {
		return "", err
	}
	return msg, nil
}

func (p *predictionApi) ListForAsset(ctx context.Context, assetID string) ([]inter.Prediction, error) {
	id, err := requireAssetID(assetID)
	if err != nil {
		return nil, err
	}
	var list []inter.Prediction
	if err := p.t.Do(ctx, http.MethodGet, assetPath(pathPredictAsset, id), nil, nil, &list); err != nil {
		// 还没有预测结果属于正常的空状态
		if errors.Is(err, inter.ErrNotFound) {
			return []inter.Prediction{}, nil
		}
		return nil, err
	}
	if list == nil {
		list = []inter.Prediction{}
	}
	SortByPredictionDate(list)
	return list, nil
}

func (p *predictionApi) ListHighRisk(ctx context.Context) ([]inter.Prediction, error) {
	var list []inter.Prediction
	if err := p.t.Do(ctx, http.MethodGet, pathPredictHigh, nil, nil, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []inter.Prediction{}
	}
	return list, nil
}

// SortByPredictionDate 按预测时间倒序排列
func SortByPredictionDate(list []inter.Prediction) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].PredictionDate.After(list[j].PredictionDate.Time)
	})
}
