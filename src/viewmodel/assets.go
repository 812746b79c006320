package viewmodel

import (
	"context"

	"github.com/nhirsama/infra-console/src/inter"
)

// AssetsPageSize 资产页一次拉取的数量
const AssetsPageSize = 50

// AssetCard 资产卡片
type AssetCard struct {
	inter.Asset
	TypeText          string
	StatusText        string
	StatusClass       string
	Installed         string
	ShowStatusControl bool
}

// AssetsPage 资产列表页
type AssetsPage struct {
	Viewer        Viewer
	Assets        []AssetCard
	Total         int64
	CriticalCount int
	CanCreate     bool
	Error         string
	Types         []Option
	Statuses      []Option
}

// LoadAssets 拉取资产列表
func LoadAssets(ctx context.Context, assets inter.AssetApi, viewer Viewer) AssetsPage {
	canMutate := viewer.CanMutate()
	page := AssetsPage{
		Viewer:    viewer,
		CanCreate: canMutate,
		Types:     TypeOptions(),
		Statuses:  StatusOptions(),
	}

	res, err := assets.ListAssets(ctx, 0, AssetsPageSize)
	if err != nil {
		page.Error = loadError(err, "加载资产列表失败")
		return page
	}
	page.Total = res.TotalElements
	page.Assets = make([]AssetCard, 0, len(res.Content))
	for _, a := range res.Content {
		if a.Status == inter.StatusCritical {
			page.CriticalCount++
		}
		page.Assets = append(page.Assets, AssetCard{
			Asset:             a,
			TypeText:          TypeText(a.Type),
			StatusText:        StatusText(a.Status),
			StatusClass:       StatusClass(a.Status),
			Installed:         FormatDate(a.InstallationDate),
			ShowStatusControl: canMutate,
		})
	}
	return page
}

// CreateAsset 新建资产，成功后调用方需要重新拉取列表
func CreateAsset(ctx context.Context, assets inter.AssetApi, viewer Viewer, draft inter.AssetDraft) Outcome {
	if !viewer.CanMutate() {
		return forbidden()
	}
	created, err := assets.CreateAsset(ctx, draft)
	if err != nil {
		return OutcomeOf(err, "")
	}
	return OutcomeOf(nil, "资产 "+created.AssetID+" 创建成功")
}

// UpdateAssetStatus 修改资产状态
func UpdateAssetStatus(ctx context.Context, assets inter.AssetApi, viewer Viewer, assetID string, status inter.AssetStatus) Outcome {
	if !viewer.CanMutate() {
		return forbidden()
	}
	if _, err := assets.UpdateStatus(ctx, assetID, status); err != nil {
		return OutcomeOf(err, "")
	}
	return OutcomeOf(nil, "资产 "+assetID+" 状态已更新为"+StatusText(status))
}
