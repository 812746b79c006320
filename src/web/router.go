package web

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/aarondl/authboss/v3"
	"github.com/gorilla/mux"
	"github.com/nhirsama/infra-console/src/access"
	"github.com/nhirsama/infra-console/src/console"
	"github.com/nhirsama/infra-console/src/inter"
)

// routes 注册所有的 HTTP 路由
func (ws *webServer) routes() http.Handler {
	r := mux.NewRouter()

	staticPath := filepath.Join(ws.opts.HTMLDir, "static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(staticPath))))

	r.HandleFunc("/login", ws.loginPageHandler).Methods(http.MethodGet)
	r.HandleFunc("/login", ws.loginHandler).Methods(http.MethodPost)
	r.HandleFunc("/logout", ws.logoutHandler).Methods(http.MethodPost)

	// 辅助函数: 套上会话恢复与权限检查
	chain := func(handler http.HandlerFunc, minPerm inter.PermissionType) http.Handler {
		return ws.authMiddleware(handler, minPerm)
	}

	// 所有已登录角色都可以查看；修改类操作需要读写权限
	r.Handle("/", chain(ws.indexHandler, inter.PermissionNone)).Methods(http.MethodGet)
	r.Handle("/dashboard", chain(ws.dashboardHandler, inter.PermissionNone)).Methods(http.MethodGet)
	r.Handle("/assets", chain(ws.assetListHandler, inter.PermissionNone)).Methods(http.MethodGet)
	r.Handle("/assets", chain(ws.createAssetHandler, inter.PermissionReadWrite)).Methods(http.MethodPost)
	r.Handle("/assets/{assetId}/status", chain(ws.updateStatusHandler, inter.PermissionReadWrite)).Methods(http.MethodPost)
	r.Handle("/sensors", chain(ws.sensorsHandler, inter.PermissionNone)).Methods(http.MethodGet)
	r.Handle("/sensors/record", chain(ws.recordReadingHandler, inter.PermissionReadWrite)).Methods(http.MethodPost)
	r.Handle("/sensors/simulate", chain(ws.simulateHandler, inter.PermissionReadWrite)).Methods(http.MethodPost)
	r.Handle("/predictions", chain(ws.predictionsHandler, inter.PermissionNone)).Methods(http.MethodGet)
	r.Handle("/predictions/trigger", chain(ws.triggerHandler, inter.PermissionReadWrite)).Methods(http.MethodPost)

	// 挂载逻辑：加载 Session 环境 -> 执行业务逻辑
	return ws.authboss.LoadClientStateMiddleware(r)
}

type consoleKey struct{}

// consoleFrom 取出 authMiddleware 放入的控制台
func consoleFrom(r *http.Request) *console.Console {
	c, _ := r.Context().Value(consoleKey{}).(*console.Console)
	return c
}

// authMiddleware 鉴权中间件
// 每个请求都用 cookie 中的令牌恢复会话，角色以后端校验结果为准
func (ws *webServer) authMiddleware(next http.Handler, minPerm inter.PermissionType) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := ws.consoleFor(w, r)
		if err != nil {
			log.Printf("创建控制台失败: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		state, err := c.Session.Restore(r.Context())
		if err != nil || state != inter.SessionAuthenticated {
			ws.redirectOrHTMX(w, r, loginPath(r))
			return
		}

		if !access.HasPermission(c.Session.Role(), minPerm) {
			http.Error(w, "Forbidden: Insufficient Permissions (权限不足)", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), consoleKey{}, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loginPath 带上原始路径，登录后跳回
func loginPath(r *http.Request) string {
	if r.Method != http.MethodGet || r.URL.Path == "/" {
		return "/login"
	}
	return "/login?" + url.Values{authboss.FormValueRedirect: {r.URL.RequestURI()}}.Encode()
}

// safeRedirect 只允许站内路径
func safeRedirect(path string) string {
	if path == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.Contains(path, "\\") {
		return "/dashboard"
	}
	return path
}

// redirectOrHTMX 根据请求类型进行重定向 (支持 HTMX)
func (ws *webServer) redirectOrHTMX(w http.ResponseWriter, r *http.Request, url string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
	} else {
		http.Redirect(w, r, url, http.StatusFound)
	}
}

// redirectWithFlash 写入 Flash 消息后跳转，表单提交后统一走 Post/Redirect/Get
// 303 让浏览器用 GET 取结果页，不依赖请求的 Content-Type
func (ws *webServer) redirectWithFlash(w http.ResponseWriter, r *http.Request, path, success, failure string) {
	if success != "" {
		authboss.PutSession(w, authboss.FlashSuccessKey, success)
	}
	if failure != "" {
		authboss.PutSession(w, authboss.FlashErrorKey, failure)
	}
	if r.Header.Get("HX-Request") == "true" {
		ws.redirectOrHTMX(w, r, path)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// sessionLost 请求过程中收到 401 时会话已被销毁，跳转登录页
func (ws *webServer) sessionLost(w http.ResponseWriter, r *http.Request, c *console.Console) bool {
	if c.Session.State() == inter.SessionAuthenticated {
		return false
	}
	ws.redirectWithFlash(w, r, "/login", "", "登录已失效，请重新登录")
	return true
}
