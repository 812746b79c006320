package web

import (
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/aarondl/authboss/v3"
	"github.com/nhirsama/infra-console/src/console"
	"github.com/nhirsama/infra-console/src/inter"
)

// Options Web 控制台配置
type Options struct {
	Addr          string
	BaseURL       string // 后端地址
	HTTPClient    *http.Client
	HTMLDir       string
	SessionSecret string
	CookieSecure  bool
	Signal        inter.CompletionSignal
	PollInterval  time.Duration
	MaxWait       time.Duration
}

type webServer struct {
	opts      Options
	templates map[string]*template.Template
	authboss  *authboss.Authboss
	handler   http.Handler
}

// NewWebServer 创建一个新的 Web 服务器实例
func NewWebServer(opts Options) (inter.WebServer, error) {
	ws, err := newWebServer(opts)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

func newWebServer(opts Options) (*webServer, error) {
	if opts.Addr == "" {
		opts.Addr = ":3000"
	}
	templates, err := loadTemplates(opts.HTMLDir)
	if err != nil {
		return nil, err
	}
	ws := &webServer{
		opts:      opts,
		templates: templates,
		authboss:  SetupClientState(opts.SessionSecret, opts.CookieSecure),
	}
	ws.handler = ws.routes()
	return ws, nil
}

// Start 启动 HTTP 服务器，ctx 结束后优雅关闭
func (ws *webServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ws.opts.Addr,
		Handler:           ws.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("正在启动 Web 控制台 (HTTP) 于 %s，后端 %s", ws.opts.Addr, ws.opts.BaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("正在关闭 Web 控制台...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// consoleFor 为一次请求创建控制台，令牌读写都落在该请求的会话 cookie 上
func (ws *webServer) consoleFor(w http.ResponseWriter, r *http.Request) (*console.Console, error) {
	return console.New(console.Options{
		BaseURL:      ws.opts.BaseURL,
		HTTPClient:   ws.opts.HTTPClient,
		Storage:      &cookieTokenStorage{w: w, r: r},
		Signal:       ws.opts.Signal,
		PollInterval: ws.opts.PollInterval,
		MaxWait:      ws.opts.MaxWait,
	})
}
