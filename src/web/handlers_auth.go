package web

import (
	"log"
	"net/http"

	"github.com/aarondl/authboss/v3"
	"github.com/nhirsama/infra-console/src/inter"
)

type loginForm struct {
	Username string
	Redirect string
}

// loginPageHandler 登录页，已登录时直接进入仪表板
func (ws *webServer) loginPageHandler(w http.ResponseWriter, r *http.Request) {
	redir := r.URL.Query().Get(authboss.FormValueRedirect)
	c, err := ws.consoleFor(w, r)
	if err == nil {
		if state, _ := c.Session.Restore(r.Context()); state == inter.SessionAuthenticated {
			http.Redirect(w, r, safeRedirect(redir), http.StatusFound)
			return
		}
	}
	ws.render(w, r, "login.html", pageData{Title: "登录", Page: loginForm{Redirect: redir}})
}

// loginHandler 提交登录，失败时原样展示后端返回的原因
func (ws *webServer) loginHandler(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")
	redir := r.FormValue(authboss.FormValueRedirect)

	c, err := ws.consoleFor(w, r)
	if err != nil {
		log.Printf("创建控制台失败: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sess, err := c.Session.Login(r.Context(), username, password)
	if err != nil {
		log.Printf("用户 %q 登录失败: %v", username, err)
		ws.render(w, r, "login.html", pageData{
			Title: "登录",
			Error: inter.MessageOf(err),
			Page:  loginForm{Username: username, Redirect: redir},
		})
		return
	}
	ws.redirectWithFlash(w, r, safeRedirect(redir), "欢迎回来，"+sess.Username, "")
}

// logoutHandler 登出并清除令牌，可重复调用
func (ws *webServer) logoutHandler(w http.ResponseWriter, r *http.Request) {
	c, err := ws.consoleFor(w, r)
	if err == nil {
		if err := c.Session.Logout(); err != nil {
			log.Printf("登出失败: %v", err)
		}
	}
	ws.redirectWithFlash(w, r, "/login", "已退出登录", "")
}
