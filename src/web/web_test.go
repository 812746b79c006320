package web

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/nhirsama/infra-console/src/backendstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	stub    *backendstub.Server
	console *httptest.Server
	client  *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	stub, err := backendstub.New(backendstub.Options{Secret: []byte("web-test")})
	require.NoError(t, err)
	stub.SeedDemoData()
	backend := httptest.NewServer(stub)

	ws, err := newWebServer(Options{
		BaseURL:       backend.URL,
		HTMLDir:       "../../html",
		SessionSecret: "web-test-secret",
	})
	require.NoError(t, err)
	front := httptest.NewServer(ws.handler)

	t.Cleanup(func() {
		front.Close()
		backend.Close()
		stub.Close()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &harness{stub: stub, console: front, client: client}
}

func (h *harness) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := h.client.Get(h.console.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (h *harness) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := h.client.PostForm(h.console.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (h *harness) login(t *testing.T, username, password string) {
	t.Helper()
	resp, _ := h.post(t, "/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode, "登录成功后应跳转")
}

func TestRequiresLogin(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.get(t, "/dashboard")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/login"))

	req, _ := http.NewRequest(http.MethodGet, h.console.URL+"/assets", nil)
	req.Header.Set("HX-Request", "true")
	hx, err := h.client.Do(req)
	require.NoError(t, err)
	hx.Body.Close()
	assert.Equal(t, http.StatusOK, hx.StatusCode)
	assert.Contains(t, hx.Header.Get("HX-Redirect"), "/login")
}

func TestLoginFailureShowsServerMessage(t *testing.T) {
	h := newHarness(t)

	resp, body := h.post(t, "/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Invalid credentials")

	resp, _ = h.get(t, "/dashboard")
	assert.Equal(t, http.StatusFound, resp.StatusCode, "登录失败不应建立会话")
}

func TestAdminSeesMutationControls(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "admin123")

	resp, body := h.get(t, "/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "资产总数")
	assert.Contains(t, body, "欢迎回来，admin")

	_, body = h.get(t, "/assets")
	assert.Contains(t, body, "新建资产")
	assert.Contains(t, body, "更新状态")
}

func TestViewerIsReadOnly(t *testing.T) {
	h := newHarness(t)
	h.login(t, "viewer", "viewer123")

	resp, body := h.get(t, "/assets")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "新建资产")
	assert.NotContains(t, body, "更新状态")

	resp, _ = h.post(t, "/predictions/trigger", url.Values{"assetId": {"BRIDGE_001"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = h.get(t, "/sensors?asset=BRIDGE_001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "/sensors/record", "只读角色不应看到录入表单")

	resp, _ = h.post(t, "/sensors/record", url.Values{
		"assetId": {"BRIDGE_001"}, "sensorId": {"T9"}, "sensorType": {"TEMPERATURE"}, "value": {"20"},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_, body = h.get(t, "/sensors?asset=BRIDGE_001")
	assert.NotContains(t, body, "已记录 T9")
}

func TestManagerRecordsReading(t *testing.T) {
	h := newHarness(t)
	h.login(t, "manager", "manager123")

	_, body := h.get(t, "/sensors?asset=BRIDGE_001")
	assert.Contains(t, body, "/sensors/record")

	resp, _ := h.post(t, "/sensors/record", url.Values{
		"assetId": {"BRIDGE_001"}, "sensorId": {"T9"}, "sensorType": {"TEMPERATURE"}, "value": {"20"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body = h.get(t, resp.Header.Get("Location"))
	assert.Contains(t, body, "已记录 T9")
}

func TestCreateAssetValidation(t *testing.T) {
	h := newHarness(t)
	h.login(t, "manager", "manager123")

	resp, body := h.post(t, "/assets", url.Values{
		"assetId": {"BRIDGE_009"}, "name": {"Test"}, "type": {"BRIDGE"},
		"latitude": {"north"}, "longitude": {"10"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "纬度必须是数字")
	assert.Contains(t, body, "BRIDGE_009", "表单应回填")

	resp, _ = h.post(t, "/assets", url.Values{
		"assetId": {"BRIDGE_009"}, "name": {"Test"}, "type": {"BRIDGE"},
		"latitude": {"31.2"}, "longitude": {"121.5"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body = h.get(t, "/assets")
	assert.Contains(t, body, "资产 BRIDGE_009 创建成功")
}

func TestRevokedTokenEndsSession(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "admin123")
	resp, _ := h.get(t, "/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	headers := h.stub.AuthHeaders()
	require.NotEmpty(t, headers)
	var token string
	for _, v := range headers {
		if strings.HasPrefix(v, "Bearer ") {
			token = strings.TrimPrefix(v, "Bearer ")
		}
	}
	require.NotEmpty(t, token)
	h.stub.Revoke(token)

	resp, _ = h.get(t, "/dashboard")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/login"))

	// 令牌已从 cookie 清除，之后的页面不会再带着它访问后端
	before := len(h.stub.AuthHeaders())
	resp, _ = h.get(t, "/assets")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	for _, v := range h.stub.AuthHeaders()[before:] {
		assert.NotEqual(t, "Bearer "+token, v)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.login(t, "operator", "operator123")

	for i := 0; i < 2; i++ {
		resp, _ := h.post(t, "/logout", nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	}
	resp, _ := h.get(t, "/predictions")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestLogoutRejectsGet(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "admin123")

	resp, _ := h.get(t, "/logout")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp, _ = h.get(t, "/dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "GET /logout 不应结束会话")
}

func TestRedirectIgnoresJSONContentType(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "admin123")

	req, err := http.NewRequest(http.MethodPost, h.console.URL+"/logout", strings.NewReader("{}"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestSafeRedirect(t *testing.T) {
	assert.Equal(t, "/assets", safeRedirect("/assets"))
	assert.Equal(t, "/dashboard", safeRedirect("//evil.example"))
	assert.Equal(t, "/dashboard", safeRedirect("https://evil.example"))
	assert.Equal(t, "/dashboard", safeRedirect(""))
}

func TestDeriveKeys(t *testing.T) {
	hashKey, blockKey := deriveKeys("web-test-secret")
	assert.Len(t, hashKey, 64)
	assert.Len(t, blockKey, 32)
	assert.NotEqual(t, hashKey[:32], blockKey, "签名与加密密钥应互相独立")

	again, _ := deriveKeys("web-test-secret")
	assert.Equal(t, hashKey, again, "同一密钥派生结果应稳定，重启后会话仍有效")

	other, _ := deriveKeys("another-secret")
	assert.NotEqual(t, hashKey, other)

	random, _ := deriveKeys("")
	assert.Len(t, random, 64)
}
