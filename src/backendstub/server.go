// Package backendstub 进程内的基础设施维护后端，实现控制台使用的全部接口
// 用于本地演示与测试，数据只保存在内存中
package backendstub

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/nhirsama/infra-console/src/inter"
)

// Options 后端配置
type Options struct {
	Secret          []byte        // 令牌签名密钥，为空时随机生成
	TokenTTL        time.Duration // 默认 24h
	PredictionDelay time.Duration // 触发预测到结果写入之间的延迟
	// OnPrediction 预测结果写入后回调，可用于发布完成事件
	OnPrediction func(assetID string, p inter.Prediction)
	Now          func() time.Time
}

// Server 内存后端
type Server struct {
	opts    Options
	issuer  *tokenIssuer
	data    *memoryBackend
	router  *mux.Router
	jobs    sync.WaitGroup
	stopped chan struct{}

	failHighRisk atomic.Bool

	headerMu    sync.Mutex
	authHeaders []string
}

// New 创建后端并注册演示账号
func New(opts Options) (*Server, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if len(opts.Secret) == 0 {
		opts.Secret = make([]byte, 32)
		if _, err := rand.Read(opts.Secret); err != nil {
			return nil, err
		}
	}

	s := &Server{
		opts:    opts,
		issuer:  newTokenIssuer(opts.Secret, opts.TokenTTL, opts.Now),
		data:    newMemoryBackend(),
		stopped: make(chan struct{}),
	}
	for _, u := range DemoUsers {
		if err := s.data.addUser(u.Username, u.Password, u.Role); err != nil {
			return nil, err
		}
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recordAuthHeader)

	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/validate", s.handleValidate).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireToken)

	api.HandleFunc("/infrastructure/assets", s.handleListAssets).Methods(http.MethodGet)
	api.HandleFunc("/infrastructure/assets", s.requireRole(s.handleCreateAsset)).Methods(http.MethodPost)
	api.HandleFunc("/infrastructure/assets/{assetId}/status", s.requireRole(s.handleUpdateStatus)).Methods(http.MethodPatch)
	api.HandleFunc("/infrastructure/dashboard/stats", s.handleStats).Methods(http.MethodGet)

	api.HandleFunc("/sensors/data", s.requireRole(s.handleRecord)).Methods(http.MethodPost)
	api.HandleFunc("/sensors/data/{assetId}/aggregated", s.handleAggregated).Methods(http.MethodGet)
	api.HandleFunc("/sensors/simulate/{assetId}", s.requireRole(s.handleSimulate)).Methods(http.MethodPost)

	api.HandleFunc("/predictions/trigger/{assetId}", s.requireRole(s.handleTrigger)).Methods(http.MethodPost)
	api.HandleFunc("/predictions/asset/{assetId}", s.handlePredictionsForAsset).Methods(http.MethodGet)
	api.HandleFunc("/predictions/high-risk", s.handleHighRisk).Methods(http.MethodGet)
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start 监听 addr，ctx 结束后优雅关闭
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("正在启动模拟后端于 %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close 取消尚未完成的预测任务并等待退出
func (s *Server) Close() {
	select {
	case <-s.stopped:
	default:
		close(s.stopped)
	}
	s.jobs.Wait()
}

// Wait 等待所有已触发的预测任务写入结果
func (s *Server) Wait() {
	s.jobs.Wait()
}

// Revoke 吊销令牌，之后携带该令牌的请求返回 401
func (s *Server) Revoke(token string) {
	s.issuer.Revoke(token)
}

// SetFailHighRisk 让高风险预测接口返回 500
func (s *Server) SetFailHighRisk(fail bool) {
	s.failHighRisk.Store(fail)
}

// AuthHeaders 返回收到的全部 Authorization 头，未携带时为空字符串
func (s *Server) AuthHeaders() []string {
	s.headerMu.Lock()
	defer s.headerMu.Unlock()
	return append([]string(nil), s.authHeaders...)
}

func (s *Server) recordAuthHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.headerMu.Lock()
		s.authHeaders = append(s.authHeaders, r.Header.Get("Authorization"))
		s.headerMu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type identityKey struct{}

type identity struct {
	Username string
	Role     inter.Role
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(raw, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		username, role, err := s.issuer.Parse(strings.TrimPrefix(raw, "Bearer "))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, identity{Username: username, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole 修改类接口只允许 ADMIN 与 MANAGER
func (s *Server) requireRole(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := r.Context().Value(identityKey{}).(identity)
		if id.Role != inter.RoleAdmin && id.Role != inter.RoleManager {
			writeJSON(w, http.StatusForbidden, map[string]interface{}{
				"status": http.StatusForbidden,
				"error":  "Forbidden",
				"path":   r.URL.Path,
			})
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("写入响应失败: %v", err)
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain;charset=UTF-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
