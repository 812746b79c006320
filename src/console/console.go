package console

import (
	"net/http"
	"time"

	"github.com/nhirsama/infra-console/src/api"
	"github.com/nhirsama/infra-console/src/inter"
	"github.com/nhirsama/infra-console/src/session"
	"github.com/nhirsama/infra-console/src/transport"
	"github.com/nhirsama/infra-console/src/viewmodel"
)

// Options 构造控制台所需的依赖
type Options struct {
	BaseURL      string
	HTTPClient   *http.Client
	Storage      inter.TokenStorage
	Signal       inter.CompletionSignal
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Console 一个客户端实例：一个会话、一个传输层、四个领域客户端
type Console struct {
	Session     *session.Store
	Transport   *transport.Client
	Auth        inter.AuthApi
	Assets      inter.AssetApi
	Sensors     inter.SensorApi
	Predictions inter.PredictionApi
	Waiter      *viewmodel.Waiter
}

// New 组装控制台，会话存储同时作为传输层的令牌来源
func New(opts Options) (*Console, error) {
	store := session.NewStore(opts.Storage)
	tc, err := transport.NewClient(opts.BaseURL, store, opts.HTTPClient)
	if err != nil {
		return nil, err
	}

	c := &Console{
		Session:     store,
		Transport:   tc,
		Auth:        api.NewAuthApi(tc),
		Assets:      api.NewAssetApi(tc),
		Sensors:     api.NewSensorApi(tc),
		Predictions: api.NewPredictionApi(tc),
	}
	store.BindAuth(c.Auth)
	c.Waiter = &viewmodel.Waiter{
		Predictions:  c.Predictions,
		Signal:       opts.Signal,
		PollInterval: opts.PollInterval,
		MaxWait:      opts.MaxWait,
	}
	return c, nil
}

// Viewer 当前用户，每次调用都从会话读取
func (c *Console) Viewer() viewmodel.Viewer {
	return viewmodel.ViewerOf(c.Session.Current())
}
