package api

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhirsama/infra-console/src/inter"
)

// DefaultPageSize 后端的默认页大小
const DefaultPageSize = 20

// MaxPriority 维护优先级上限
const MaxPriority = 10

type assetApi struct {
	t   Doer
	now func() time.Time
}

// NewAssetApi 创建资产客户端
func NewAssetApi(t Doer) inter.AssetApi {
	return &assetApi{t: t, now: time.Now}
}

// assetCreateRequest 新建资产请求体
type assetCreateRequest struct {
	AssetID             string            `json:"assetId"`
	Name                string            `json:"name"`
	Type                inter.AssetType   `json:"type"`
	Description         string            `json:"description,omitempty"`
	Latitude            float64           `json:"latitude"`
	Longitude           float64           `json:"longitude"`
	Status              inter.AssetStatus `json:"status"`
	InstallationDate    inter.Timestamp   `json:"installationDate"`
	MaintenancePriority *int              `json:"maintenancePriority,omitempty"`
}

func (a *assetApi) ListAssets(ctx context.Context, page, size int) (inter.AssetPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var resp inter.AssetPage
	if err := a.t.Do(ctx, http.MethodGet, pathAssets, q, nil, &resp); err != nil {
		return inter.AssetPage{}, err
	}
	if resp.Content == nil {
		resp.Content = []inter.Asset{}
	}
	return resp, nil
}

func (a *assetApi) CreateAsset(ctx context.Context, draft inter.AssetDraft) (inter.Asset, error) {
	req, err := validateAssetDraft(draft)
	if err != nil {
		return inter.Asset{}, err
	}
	req.InstallationDate = inter.NewTimestamp(a.now())

	var created inter.Asset
	if err := a.t.Do(ctx, http.MethodPost, pathAssets, nil, req, &created); err != nil {
		return inter.Asset{}, err
	}
	return created, nil
}

func (a *assetApi) UpdateStatus(ctx context.Context, assetID string, status inter.AssetStatus) (inter.Asset, error) {
	id, err := requireAssetID(assetID)
	if err != nil {
		return inter.Asset{}, err
	}
	status = inter.AssetStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return inter.Asset{}, &inter.ValidationError{Field: "status", Message: "未知的资产状态"}
	}

	var updated inter.Asset
	body := map[string]string{"status": string(status)}
	if err := a.t.Do(ctx, http.MethodPatch, assetPath(pathAssets, id, "status"), nil, body, &updated); err != nil {
		return inter.Asset{}, err
	}
	return updated, nil
}

func (a *assetApi) DashboardStats(ctx context.Context) (inter.DashboardStats, error) {
	var stats inter.DashboardStats
	if err := a.t.Do(ctx, http.MethodGet, pathDashboardStats, nil, nil, &stats); err != nil {
		return inter.DashboardStats{}, err
	}
	return stats, nil
}

// validateAssetDraft 校验新建资产表单，按表单顺序返回第一个错误
func validateAssetDraft(d inter.AssetDraft) (assetCreateRequest, error) {
	req := assetCreateRequest{
		AssetID:     strings.TrimSpace(d.AssetID),
		Name:        strings.TrimSpace(d.Name),
		Description: strings.TrimSpace(d.Description),
		Status:      inter.StatusOperational,
	}
	if req.AssetID == "" {
		return req, &inter.ValidationError{Field: "assetId", Message: "资产编号不能为空"}
	}
	if req.Name == "" {
		return req, &inter.ValidationError{Field: "name", Message: "资产名称不能为空"}
	}

	req.Type = inter.AssetType(strings.ToUpper(strings.TrimSpace(d.Type)))
	if req.Type == "" {
		req.Type = inter.AssetBridge
	}
	if !req.Type.Valid() {
		return req, &inter.ValidationError{Field: "type", Message: "未知的资产类型"}
	}

	lat, err := parseCoordinate("latitude", "纬度", d.Latitude, 90)
	if err != nil {
		return req, err
	}
	lon, err := parseCoordinate("longitude", "经度", d.Longitude, 180)
	if err != nil {
		return req, err
	}
	req.Latitude, req.Longitude = lat, lon

	if p := strings.TrimSpace(d.Priority); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > MaxPriority {
			return req, &inter.ValidationError{Field: "maintenancePriority", Message: "维护优先级必须是 0 到 10 的整数"}
		}
		req.MaintenancePriority = &n
	}
	return req, nil
}

func parseCoordinate(field, label, raw string, limit float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &inter.ValidationError{Field: field, Message: "请输入" + label}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &inter.ValidationError{Field: field, Message: label + "必须是数字"}
	}
	if v < -limit || v > limit {
		return 0, &inter.ValidationError{
			Field:   field,
			Message: label + "超出范围 (-" + strconv.FormatFloat(limit, 'f', -1, 64) + " 到 " + strconv.FormatFloat(limit, 'f', -1, 64) + ")",
		}
	}
	return v, nil
}
