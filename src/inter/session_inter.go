package inter

// TokenStorageKey 持久化令牌使用的固定键名
const TokenStorageKey = "authToken"

// Role 用户角色，唯一来源是后端在登录或令牌校验时返回的载荷
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleOperator Role = "OPERATOR"
	RoleViewer   Role = "VIEWER"
)

// PermissionType 用户权限类型，按等级递增
type PermissionType int

const (
	PermissionNone      PermissionType = iota // 零权限
	PermissionReadOnly                        // 只读
	PermissionReadWrite                       // 读写
	PermissionAdmin                           // 管理员
)

// SessionState 会话状态机的状态
type SessionState int

const (
	SessionUnknown       SessionState = iota // 尚未尝试恢复
	SessionValidating                        // 已读取到持久化令牌，等待后端校验
	SessionAuthenticated                     // 已登录
	SessionAnonymous                         // 未登录
)

func (s SessionState) String() string {
	switch s {
	case SessionValidating:
		return "validating"
	case SessionAuthenticated:
		return "authenticated"
	case SessionAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Session 当前登录身份
type Session struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Token    string `json:"token"`
}

// TokenValidation 令牌校验结果
type TokenValidation struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
	Role     Role   `json:"role,omitempty"`
	Message  string `json:"message,omitempty"`
}

// TokenStorage 令牌持久化接口
// 整个客户端只保存一个不透明令牌，键名为 TokenStorageKey
type TokenStorage interface {
	// Load 读取令牌，不存在时返回空字符串
	Load() (string, error)
	// Save 覆盖保存令牌
	Save(token string) error
	// Clear 删除令牌，不存在时不报错
	Clear() error
}

// CredentialSource 传输层获取令牌与上报 401 的入口，由会话存储实现
type CredentialSource interface {
	// Token 返回当前应当携带的令牌，没有时返回空字符串
	Token() string
	// HandleUnauthorized 某个请求收到 401，token 为该请求实际携带的令牌
	HandleUnauthorized(token string)
}

// SessionListener 会话状态变更回调
type SessionListener func(state SessionState, s Session)
