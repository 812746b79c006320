package web

import (
	"crypto/rand"
	"crypto/sha512"
	"io"
	"net/http"
	"os"

	"github.com/aarondl/authboss/v3"
	"github.com/aarondl/authboss/v3/defaults"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/hkdf"
)

const sessionCookieName = "infra_console_session"

// generateRandomKey 生成指定长度的随机字节切片
func generateRandomKey(length int) []byte {
	k := make([]byte, length)
	if _, err := rand.Read(k); err != nil {
		// 随机源失败时无法保证安全
		panic("failed to generate random key: " + err.Error())
	}
	return k
}

// deriveKeys 由配置的密钥派生签名与加密密钥，未配置时随机生成，重启后会话失效
func deriveKeys(secret string) (hashKey, blockKey []byte) {
	if secret == "" {
		return generateRandomKey(64), generateRandomKey(32)
	}
	return expandKey(secret, "cookie-hash", 64), expandKey(secret, "cookie-block", 32)
}

// expandKey 用 HKDF 按用途派生互相独立的密钥
func expandKey(secret, info string, length int) []byte {
	k := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha512.New, []byte(secret), nil, []byte(info)), k); err != nil {
		panic("failed to derive key: " + err.Error())
	}
	return k
}

// SetupClientState 初始化 Authboss，只使用其客户端状态管理
// 登录令牌与 Flash 消息都放在会话 cookie 中，浏览器关闭即失效
func SetupClientState(secret string, secure bool) *authboss.Authboss {
	ab := authboss.New()

	hashKey, blockKey := deriveKeys(secret)
	sessionStore := sessions.NewCookieStore(hashKey, blockKey)
	sessionStore.Options.MaxAge = 0
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = secure
	sessionStore.Options.Path = "/"
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	ab.Config.Storage.SessionState = NewSessionStorer(sessionCookieName, sessionStore)

	ab.Config.Core.Logger = defaults.NewLogger(os.Stdout)
	return ab
}
