package api

import (
	"context"
	"net/url"
	"strings"

	"github.com/nhirsama/infra-console/src/inter"
)

// 后端接口路径
const (
	pathLogin          = "/api/auth/login"
	pathValidate       = "/api/auth/validate"
	pathAssets         = "/api/infrastructure/assets"
	pathDashboardStats = "/api/infrastructure/dashboard/stats"
	pathSensorData     = "/api/sensors/data"
	pathSensorSimulate = "/api/sensors/simulate"
	pathPredictTrigger = "/api/predictions/trigger"
	pathPredictAsset   = "/api/predictions/asset"
	pathPredictHigh    = "/api/predictions/high-risk"
)

// Doer 发送请求的最小接口，由 transport.Client 实现
type Doer interface {
	Do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error
}

// MsgSelectAsset 未选择资产时的提示
const MsgSelectAsset = "请先选择一个资产"

// assetPath 拼接带资产编号的路径，编号按路径段转义
func assetPath(prefix, assetID string, suffix ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('/')
	b.WriteString(url.PathEscape(assetID))
	for _, s := range suffix {
		b.WriteByte('/')
		b.WriteString(s)
	}
	return b.String()
}

// requireAssetID 资产编号为空时返回校验错误
func requireAssetID(assetID string) (string, error) {
	id := strings.TrimSpace(assetID)
	if id == "" {
		return "", &inter.ValidationError{Field: "assetId", Message: MsgSelectAsset}
	}
	return id, nil
}
