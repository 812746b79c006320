package inter

import "context"

// 后端 HTTP 契约的客户端接口
// 所有实现共享同一个传输层，鉴权头与 401 处理都在传输层完成

// AuthApi 登录与令牌校验
type AuthApi interface {
	// Login 提交用户名密码，成功时返回完整会话，角色以后端返回为准
	// 失败时返回 *LoginError，其 Message 可直接展示
	Login(ctx context.Context, username, password string) (Session, error)

	// ValidateToken 校验令牌，令牌无效属于正常结果 (Valid=false)，不返回错误
	ValidateToken(ctx context.Context, token string) (TokenValidation, error)
}

// AssetApi 资产管理
type AssetApi interface {
	// ListAssets 分页列出资产，size <= 0 时使用默认页大小
	ListAssets(ctx context.Context, page, size int) (AssetPage, error)

	// CreateAsset 校验表单后创建资产，校验失败时不会发出请求
	CreateAsset(ctx context.Context, draft AssetDraft) (Asset, error)

	// UpdateStatus 修改资产状态
	UpdateStatus(ctx context.Context, assetID string, status AssetStatus) (Asset, error)

	// DashboardStats 按状态统计资产数量
	DashboardStats(ctx context.Context) (DashboardStats, error)
}

// SensorApi 传感器数据
type SensorApi interface {
	// RecordReading 校验并提交一条读数
	RecordReading(ctx context.Context, draft ReadingDraft) (SensorReading, error)

	// AggregatedReadings 查询聚合后的时序数据，window 为空时使用 1h
	AggregatedReadings(ctx context.Context, assetID, window string) ([]SensorReading, error)

	// SimulateReadings 让后端为资产生成一组模拟读数
	SimulateReadings(ctx context.Context, assetID string) (string, error)
}

// PredictionApi 故障预测
type PredictionApi interface {
	// TriggerPrediction 启动异步预测任务，返回后端的确认信息
	// 返回成功不代表预测结果已经可查
	TriggerPrediction(ctx context.Context, assetID string) (string, error)

	// ListForAsset 列出资产的预测，按预测时间倒序，没有结果时返回空切片
	ListForAsset(ctx context.Context, assetID string) ([]Prediction, error)

	// ListHighRisk 列出所有高风险预测
	ListHighRisk(ctx context.Context) ([]Prediction, error)
}

// CompletionSignal 预测任务完成信号
type CompletionSignal interface {
	// Await 阻塞直到收到资产 assetID 的预测完成通知或 ctx 结束
	Await(ctx context.Context, assetID string) error
}

// MessageQueue 按键分组的有界队列
type MessageQueue interface {
	// Push 入队，队列满时丢弃最早的一条
	Push(key string, message interface{}) error

	// Pop 非阻塞出队 (FIFO)
	// 返回: (消息内容, 是否存在消息)
	Pop(key string) (interface{}, bool)

	// Wait 阻塞出队，直到有消息或 ctx 结束
	Wait(ctx context.Context, key string) (interface{}, error)

	IsEmpty(key string) bool
}

// WebServer 控制台 Web 服务
type WebServer interface {
	// Start 启动监听 (阻塞调用)，ctx 结束时优雅关闭
	Start(ctx context.Context) error
}
