package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/nhirsama/infra-console/src/inter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	token    string
	rejected []string
}

func (f *fakeSource) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeSource) HandleUnauthorized(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, token)
}

func TestBearerInjection(t *testing.T) {
	var gotAuth, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotID = r.Header.Get(RequestIDHeader)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	src := &fakeSource{token: "abc"}
	c, err := NewClient(srv.URL+"/", src, nil)
	require.NoError(t, err)

	var out struct{ OK bool }
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/api/x", nil, nil, &out))
	assert.True(t, out.OK)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.NotEmpty(t, gotID, "每个请求都应带上追踪编号")

	t.Run("无令牌时不带 Authorization", func(t *testing.T) {
		src.token = ""
		require.NoError(t, c.Do(context.Background(), http.MethodGet, "/api/x", nil, nil, nil))
		assert.Empty(t, gotAuth)
	})

	t.Run("WithoutCredentials 不带令牌", func(t *testing.T) {
		src.token = "abc"
		require.NoError(t, c.Do(WithoutCredentials(context.Background()), http.MethodPost, "/api/auth/login", nil, map[string]string{}, nil))
		assert.Empty(t, gotAuth)
	})
}

func TestUnauthorizedReportsPresentedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthorized"}`))
	}))
	defer srv.Close()

	src := &fakeSource{token: "stale"}
	c, err := NewClient(srv.URL, src, nil)
	require.NoError(t, err)

	err = c.Do(context.Background(), http.MethodGet, "/api/infrastructure/assets", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, inter.ErrUnauthenticated))
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, []string{"stale"}, src.rejected, "应上报请求实际携带的令牌")
}

func TestResponseErrorMessages(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   error
		msg    string
	}{
		{"JSON message", http.StatusBadRequest, `{"message":"Asset ID already exists: B1"}`, inter.ErrValidation, "Asset ID already exists: B1"},
		{"纯文本", http.StatusNotFound, "not here", inter.ErrNotFound, "not here"},
		{"Spring 默认错误体", http.StatusForbidden, `{"status":403,"error":"Forbidden"}`, inter.ErrForbidden, ""},
		{"HTML 页面", http.StatusBadGateway, "<html>bad gateway</html>", inter.ErrServer, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, err := NewClient(srv.URL, nil, nil)
			require.NoError(t, err)
			err = c.Do(context.Background(), http.MethodGet, "/api/x", nil, nil, nil)

			var re *inter.ResponseError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tc.status, re.Status)
			assert.Equal(t, tc.msg, re.Message)
			assert.True(t, errors.Is(err, tc.kind))
		})
	}
}

func TestPlainTextAndEscapedPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte("Prediction triggered"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil, nil)
	require.NoError(t, err)

	var msg string
	require.NoError(t, c.Do(context.Background(), http.MethodPost, "/api/predictions/trigger/A%2FB", nil, nil, &msg))
	assert.Equal(t, "Prediction triggered", msg)
	assert.Equal(t, "/api/predictions/trigger/A%2FB", gotPath, "资产编号中的斜杠应保持转义")
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://example.com", nil, nil)
	assert.Error(t, err)

	c, err := NewClient("", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestNetworkFailureIsServerError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, nil, nil)
	require.NoError(t, err)
	err = c.Do(context.Background(), http.MethodGet, "/api/x", nil, nil, nil)
	assert.True(t, errors.Is(err, inter.ErrServer))
}
