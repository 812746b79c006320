package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nhirsama/infra-console/src/datastore"
	"github.com/nhirsama/infra-console/src/inter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	mu       sync.Mutex
	tokens   map[string]inter.TokenValidation
	loginErr error
	block    chan struct{} // 非 nil 时 ValidateToken 阻塞到关闭
	entered  chan struct{}
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{tokens: map[string]inter.TokenValidation{
		"t-admin":  {Valid: true, Username: "admin", Role: inter.RoleAdmin},
		"t-viewer": {Valid: true, Username: "viewer", Role: inter.RoleViewer},
	}}
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (inter.Session, error) {
	if f.loginErr != nil {
		return inter.Session{}, f.loginErr
	}
	if password != username+"123" {
		return inter.Session{}, &inter.LoginError{Message: "Invalid credentials", Err: inter.ErrInvalidCredentials}
	}
	token := "t-" + username
	f.mu.Lock()
	v := f.tokens[token]
	f.mu.Unlock()
	return inter.Session{Username: username, Role: v.Role, Token: token}, nil
}

func (f *fakeAuth) ValidateToken(ctx context.Context, token string) (inter.TokenValidation, error) {
	if f.block != nil {
		if f.entered != nil {
			close(f.entered)
		}
		select {
		case <-f.block:
		case <-ctx.Done():
			return inter.TokenValidation{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.tokens[token]
	if !ok {
		return inter.TokenValidation{Valid: false, Message: "Invalid token"}, nil
	}
	return v, nil
}

func newTestStore(initial string) (*Store, *datastore.MemoryTokenStore, *fakeAuth) {
	storage := datastore.NewMemoryTokenStore(initial)
	auth := newFakeAuth()
	s := NewStore(storage)
	s.BindAuth(auth)
	return s, storage, auth
}

func TestRestore(t *testing.T) {
	t.Run("没有令牌", func(t *testing.T) {
		s, _, _ := newTestStore("")
		assert.Equal(t, inter.SessionUnknown, s.State())
		state, err := s.Restore(context.Background())
		require.NoError(t, err)
		assert.Equal(t, inter.SessionAnonymous, state)
		_, ok := s.Current()
		assert.False(t, ok)
	})

	t.Run("有效令牌", func(t *testing.T) {
		s, _, _ := newTestStore("t-admin")
		state, err := s.Restore(context.Background())
		require.NoError(t, err)
		assert.Equal(t, inter.SessionAuthenticated, state)
		cur, ok := s.Current()
		require.True(t, ok)
		assert.Equal(t, "admin", cur.Username)
		assert.Equal(t, inter.RoleAdmin, s.Role(), "角色应取自后端校验结果")
		assert.Equal(t, "t-admin", s.Token())
	})

	t.Run("无效令牌被清除", func(t *testing.T) {
		s, storage, _ := newTestStore("forged")
		state, err := s.Restore(context.Background())
		require.NoError(t, err)
		assert.Equal(t, inter.SessionAnonymous, state)
		tok, _ := storage.Load()
		assert.Empty(t, tok)
	})

	t.Run("未绑定认证客户端", func(t *testing.T) {
		s := NewStore(datastore.NewMemoryTokenStore("t-admin"))
		state, err := s.Restore(context.Background())
		assert.ErrorIs(t, err, ErrNoAuth)
		assert.Equal(t, inter.SessionAnonymous, state)
	})
}

func TestLoginAndLogout(t *testing.T) {
	s, storage, _ := newTestStore("")
	var events []inter.SessionState
	s.Subscribe(func(state inter.SessionState, _ inter.Session) {
		events = append(events, state)
	})

	_, err := s.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", inter.MessageOf(err))
	assert.NotEqual(t, inter.SessionAuthenticated, s.State())

	sess, err := s.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, inter.RoleAdmin, sess.Role)
	tok, _ := storage.Load()
	assert.Equal(t, "t-admin", tok, "登录后令牌应持久化")

	require.NoError(t, s.Logout())
	require.NoError(t, s.Logout(), "重复登出不应报错")
	tok, _ = storage.Load()
	assert.Empty(t, tok)
	assert.Equal(t, []inter.SessionState{inter.SessionAuthenticated, inter.SessionAnonymous}, events,
		"重复登出不应再次通知")
}

func TestLoginSaveFailure(t *testing.T) {
	s, storage, _ := newTestStore("")
	storage.SaveErr = errors.New("disk full")

	_, err := s.Login(context.Background(), "admin", "admin123")
	require.Error(t, err)
	assert.NotEqual(t, inter.SessionAuthenticated, s.State(), "令牌未保存时不应建立会话")
}

func TestLoginWithoutReasonUsesGenericMessage(t *testing.T) {
	s, _, auth := newTestStore("")
	auth.loginErr = inter.ErrServer

	_, err := s.Login(context.Background(), "admin", "admin123")
	require.Error(t, err)
	assert.Equal(t, inter.LoginFailedMessage, inter.MessageOf(err))
}

func TestHandleUnauthorized(t *testing.T) {
	s, storage, _ := newTestStore("")
	_, err := s.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	s.HandleUnauthorized("")
	s.HandleUnauthorized("t-old")
	assert.Equal(t, inter.SessionAuthenticated, s.State(), "旧令牌迟到的 401 不应影响当前会话")

	s.HandleUnauthorized("t-admin")
	assert.Equal(t, inter.SessionAnonymous, s.State())
	assert.Empty(t, s.Token())
	tok, _ := storage.Load()
	assert.Empty(t, tok)
}

func TestRestoreResultDiscardedAfterLogin(t *testing.T) {
	s, _, auth := newTestStore("t-viewer")
	release := make(chan struct{})
	auth.block = release
	auth.entered = make(chan struct{})

	done := make(chan inter.SessionState)
	go func() {
		state, _ := s.Restore(context.Background())
		done <- state
	}()

	<-auth.entered
	assert.Equal(t, inter.SessionValidating, s.State())
	assert.Equal(t, "t-viewer", s.Token(), "校验期间应携带待校验的令牌")

	_, err := s.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	close(release)
	state := <-done
	assert.Equal(t, inter.SessionAuthenticated, state)
	assert.Equal(t, inter.RoleAdmin, s.Role(), "过期的校验结果不应覆盖新登录")
}
