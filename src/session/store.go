package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/nhirsama/infra-console/src/inter"
)

// ErrNoAuth 未绑定 AuthApi
var ErrNoAuth = errors.New("session: 未配置认证客户端")

// Store 会话状态机
// 状态: Unknown -> Validating -> Authenticated | Anonymous，Authenticated -> Anonymous
// 它是 TokenStorage 唯一的读写方，界面只通过 Current 读取用户名与角色
type Store struct {
	mu        sync.Mutex
	state     inter.SessionState
	current   inter.Session
	pending   string // Validating 期间正在校验的令牌
	epoch     uint64 // 每次状态切换递增，用于丢弃过期的异步结果
	storage   inter.TokenStorage
	auth      inter.AuthApi
	listeners []inter.SessionListener
}

// NewStore 创建会话存储，初始状态为 Unknown
func NewStore(storage inter.TokenStorage) *Store {
	return &Store{storage: storage, state: inter.SessionUnknown}
}

// BindAuth 绑定认证客户端
// 认证客户端依赖传输层，而传输层又以 Store 作为令牌来源，所以在构造之后绑定
func (s *Store) BindAuth(auth inter.AuthApi) {
	s.mu.Lock()
	s.auth = auth
	s.mu.Unlock()
}

// Subscribe 注册状态变更回调，回调在锁外执行
func (s *Store) Subscribe(fn inter.SessionListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// State 当前状态
func (s *Store) State() inter.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current 返回当前会话，未登录时 ok 为 false
func (s *Store) Current() (inter.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != inter.SessionAuthenticated {
		return inter.Session{}, false
	}
	return s.current, true
}

// Role 当前角色，未登录时为空
func (s *Store) Role() inter.Role {
	cur, _ := s.Current()
	return cur.Role
}

// Token 实现 inter.CredentialSource
// Validating 期间返回待校验的令牌，使校验请求本身可以携带它
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case inter.SessionAuthenticated:
		return s.current.Token
	case inter.SessionValidating:
		return s.pending
	}
	return ""
}

// HandleUnauthorized 实现 inter.CredentialSource
// 只有当收到 401 的请求携带的正是当前令牌时才销毁会话，旧会话迟到的 401 不影响新会话
func (s *Store) HandleUnauthorized(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	active := ""
	switch s.state {
	case inter.SessionAuthenticated:
		active = s.current.Token
	case inter.SessionValidating:
		active = s.pending
	}
	if active == "" || active != token {
		s.mu.Unlock()
		return
	}
	log.Printf("会话令牌已被后端拒绝，用户 %q 需要重新登录", s.current.Username)
	_ = s.toAnonymousLocked()
	listeners, state, cur := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, state, cur)
}

// Restore 启动时恢复会话
// 没有持久化令牌时直接进入 Anonymous；否则进入 Validating 并向后端校验
// 校验失败或令牌无效时清除持久化令牌并进入 Anonymous
func (s *Store) Restore(ctx context.Context) (inter.SessionState, error) {
	token, err := s.storage.Load()
	if err != nil {
		log.Printf("读取持久化令牌失败: %v", err)
		token = ""
	}
	token = strings.TrimSpace(token)

	s.mu.Lock()
	if token == "" {
		s.state = inter.SessionAnonymous
		s.current = inter.Session{}
		s.pending = ""
		s.epoch++
		listeners, state, cur := s.snapshotLocked()
		s.mu.Unlock()
		notify(listeners, state, cur)
		return state, nil
	}
	auth := s.auth
	s.state = inter.SessionValidating
	s.current = inter.Session{}
	s.pending = token
	s.epoch++
	epoch := s.epoch
	listeners, state, cur := s.snapshotLocked()
	s.mu.Unlock()
	notify(listeners, state, cur)

	if auth == nil {
		s.abandonValidation(epoch)
		return inter.SessionAnonymous, ErrNoAuth
	}

	result, verr := auth.ValidateToken(ctx, token)

	s.mu.Lock()
	if s.epoch != epoch {
		// 校验期间发生了登录、登出或 401，结果作废
		state := s.state
		s.mu.Unlock()
		return state, nil
	}
	if verr != nil || !result.Valid || result.Role == "" {
		if verr != nil {
			log.Printf("令牌校验失败，按未登录处理: %v", verr)
		}
		_ = s.toAnonymousLocked()
	} else {
		s.state = inter.SessionAuthenticated
		s.current = inter.Session{Username: result.Username, Role: result.Role, Token: token}
		s.pending = ""
		s.epoch++
	}
	listeners, state, cur = s.snapshotLocked()
	s.mu.Unlock()
	notify(listeners, state, cur)
	return state, nil
}

// Login 登录
// 角色只取自后端返回；令牌持久化失败时不建立会话
func (s *Store) Login(ctx context.Context, username, password string) (inter.Session, error) {
	s.mu.Lock()
	auth := s.auth
	s.mu.Unlock()
	if auth == nil {
		return inter.Session{}, ErrNoAuth
	}

	sess, err := auth.Login(ctx, username, password)
	if err != nil {
		var le *inter.LoginError
		if !errors.As(err, &le) {
			err = &inter.LoginError{Message: inter.LoginFailedMessage, Err: err}
		}
		return inter.Session{}, err
	}
	if sess.Token == "" || sess.Role == "" {
		return inter.Session{}, &inter.LoginError{Message: inter.LoginFailedMessage, Err: inter.ErrServer}
	}

	s.mu.Lock()
	if err := s.storage.Save(sess.Token); err != nil {
		s.mu.Unlock()
		return inter.Session{}, fmt.Errorf("保存登录令牌失败: %w", err)
	}
	s.state = inter.SessionAuthenticated
	s.current = sess
	s.pending = ""
	s.epoch++
	listeners, state, cur := s.snapshotLocked()
	s.mu.Unlock()
	notify(listeners, state, cur)

	log.Printf("用户 %s 登录成功，角色 %s", sess.Username, sess.Role)
	return sess, nil
}

// Logout 登出，可重复调用
func (s *Store) Logout() error {
	s.mu.Lock()
	wasAnon := s.state == inter.SessionAnonymous
	err := s.toAnonymousLocked()
	listeners, state, cur := s.snapshotLocked()
	s.mu.Unlock()

	if !wasAnon {
		notify(listeners, state, cur)
	}
	if err != nil {
		return fmt.Errorf("清除登录令牌失败: %w", err)
	}
	return nil
}

func (s *Store) abandonValidation(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	_ = s.toAnonymousLocked()
	listeners, state, cur := s.snapshotLocked()
	s.mu.Unlock()
	notify(listeners, state, cur)
}

// toAnonymousLocked 销毁会话并清除持久化令牌，调用方持有锁
func (s *Store) toAnonymousLocked() error {
	s.state = inter.SessionAnonymous
	s.current = inter.Session{}
	s.pending = ""
	s.epoch++
	if err := s.storage.Clear(); err != nil {
		log.Printf("清除持久化令牌失败: %v", err)
		return err
	}
	return nil
}

func (s *Store) snapshotLocked() ([]inter.SessionListener, inter.SessionState, inter.Session) {
	listeners := make([]inter.SessionListener, len(s.listeners))
	copy(listeners, s.listeners)
	return listeners, s.state, s.current
}

func notify(listeners []inter.SessionListener, state inter.SessionState, cur inter.Session) {
	for _, fn := range listeners {
		fn(state, cur)
	}
}
