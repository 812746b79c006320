package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nhirsama/infra-console/src/backendstub"
	"github.com/nhirsama/infra-console/src/viewmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliHarness struct {
	url       string
	tokenFile string
}

func newCliHarness(t *testing.T) *cliHarness {
	t.Helper()
	stub, err := backendstub.New(backendstub.Options{Secret: []byte("cli-test")})
	require.NoError(t, err)
	stub.SeedDemoData()
	srv := httptest.NewServer(stub)
	t.Cleanup(func() {
		srv.Close()
		stub.Close()
	})
	return &cliHarness{url: srv.URL, tokenFile: filepath.Join(t.TempDir(), "token")}
}

func (h *cliHarness) run(stdin string, args ...string) (string, error) {
	var out bytes.Buffer
	full := append(args,
		"--api-url", h.url,
		"--token-store", "file",
		"--token-file", h.tokenFile,
		"--prediction-wait", "5s",
	)
	err := Execute(context.Background(), full, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newCliHarness(t)

	_, err := h.run("", "whoami")
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	out, err := h.run("", "login", "admin", "-p", "admin123")
	require.NoError(t, err)
	assert.Contains(t, out, "登录成功: admin")

	out, err = h.run("", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "admin")
	assert.Contains(t, out, "可修改")

	out, err = h.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "已退出登录")

	_, err = h.run("", "whoami")
	assert.ErrorIs(t, err, ErrNotLoggedIn, "登出后令牌应被清除")

	_, err = h.run("", "logout")
	assert.NoError(t, err, "重复登出不应报错")
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	h := newCliHarness(t)

	out, err := h.run("viewer123\n", "login", "viewer")
	require.NoError(t, err)
	assert.Contains(t, out, "登录成功: viewer")

	_, err = h.run("wrong\n", "login", "viewer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestViewerCannotMutate(t *testing.T) {
	h := newCliHarness(t)
	_, err := h.run("", "login", "viewer", "-p", "viewer123")
	require.NoError(t, err)

	_, err = h.run("", "simulate", "BRIDGE_001")
	require.Error(t, err)
	assert.Equal(t, viewmodel.MsgForbidden, err.Error())

	_, err = h.run("", "record", "--asset", "BRIDGE_001", "--sensor", "TEMP_009", "--type", "TEMPERATURE", "--value", "20")
	require.Error(t, err)
	assert.Equal(t, viewmodel.MsgForbidden, err.Error())

	out, err := h.run("", "assets")
	require.NoError(t, err)
	assert.Contains(t, out, "BRIDGE_001")
	assert.Contains(t, out, "共 4 项")
}

func TestAssetCreateReportsFieldErrors(t *testing.T) {
	h := newCliHarness(t)
	_, err := h.run("", "login", "manager", "-p", "manager123")
	require.NoError(t, err)

	_, err = h.run("", "asset-create", "--id", "ROAD_009", "--name", "环路", "--type", "ROAD", "--lat", "north", "--lon", "121")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "纬度必须是数字")

	out, err := h.run("", "asset-create", "--id", "ROAD_009", "--name", "环路", "--type", "ROAD", "--lat", "31.2", "--lon", "121.5")
	require.NoError(t, err)
	assert.Contains(t, out, "ROAD_009")
}

func TestReadingsAndPredict(t *testing.T) {
	h := newCliHarness(t)
	_, err := h.run("", "login", "operator", "-p", "operator123")
	require.NoError(t, err)

	out, err := h.run("", "readings", "BRIDGE_001", "-w", "1d")
	require.NoError(t, err)
	assert.Contains(t, out, "BRIDGE_001")

	out, err = h.run("", "predict", "ROAD_001")
	require.NoError(t, err)
	assert.Contains(t, out, "预测已完成")

	out, err = h.run("", "predictions", "ROAD_001")
	require.NoError(t, err)
	assert.Contains(t, out, "ROAD_001")
}

func TestUnknownCommandAndArgs(t *testing.T) {
	h := newCliHarness(t)

	_, err := h.run("", "reboot")
	assert.Error(t, err)

	_, err = h.run("", "asset-status", "BRIDGE_001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "用法")

	var out bytes.Buffer
	require.NoError(t, Execute(context.Background(), nil, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "high-risk")
}
