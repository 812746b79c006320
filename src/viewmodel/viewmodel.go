package viewmodel

import (
	"errors"

	"github.com/nhirsama/infra-console/src/access"
	"github.com/nhirsama/infra-console/src/inter"
)

// Viewer 渲染页面时的当前用户
// 每次构建页面都从会话重新读取，不缓存权限
type Viewer struct {
	Username string
	Role     inter.Role
}

// ViewerOf 从会话构建 Viewer，未登录时返回零值
func ViewerOf(s inter.Session, ok bool) Viewer {
	if !ok {
		return Viewer{}
	}
	return Viewer{Username: s.Username, Role: s.Role}
}

func (v Viewer) CanMutate() bool {
	return access.CanMutate(v.Role)
}

func (v Viewer) RoleText() string {
	return RoleText(v.Role)
}

// Outcome 一次修改操作的结果，调用方据此提示并重新拉取数据
type Outcome struct {
	OK              bool
	Message         string
	FieldErrors     map[string]string
	Unauthenticated bool
}

// MsgForbidden 无权限时的提示
const MsgForbidden = "当前角色无权执行此操作"

// OutcomeOf 将错误转换为操作结果
func OutcomeOf(err error, success string) Outcome {
	if err == nil {
		return Outcome{OK: true, Message: success}
	}
	out := Outcome{Message: inter.MessageOf(err)}
	var ve *inter.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		out.FieldErrors = map[string]string{ve.Field: ve.Message}
	}
	if inter.KindOf(err) == inter.KindUnauthenticated {
		out.Unauthenticated = true
	}
	if errors.Is(err, inter.ErrForbidden) {
		out.Message = MsgForbidden
	}
	return out
}

func forbidden() Outcome {
	return Outcome{Message: MsgForbidden}
}

// loadError 读取类请求的错误文案，未登录时为空，由会话监听器负责跳转
func loadError(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if inter.KindOf(err) == inter.KindUnauthenticated {
		return ""
	}
	if msg := inter.MessageOf(err); msg != "" {
		var re *inter.ResponseError
		if errors.As(err, &re) && re.Message != "" {
			return fallback + ": " + msg
		}
	}
	return fallback
}
