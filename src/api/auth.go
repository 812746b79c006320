package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nhirsama/infra-console/src/inter"
	"github.com/nhirsama/infra-console/src/transport"
)

type authApi struct {
	t Doer
}

// NewAuthApi 创建认证客户端
func NewAuthApi(t Doer) inter.AuthApi {
	return &authApi{t: t}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string     `json:"token"`
	Username string     `json:"username"`
	Role     inter.Role `json:"role"`
	Message  string     `json:"message"`
}

func (a *authApi) Login(ctx context.Context, username, password string) (inter.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return inter.Session{}, &inter.LoginError{
			Message: "请输入用户名和密码",
			Err:     &inter.ValidationError{Field: "username", Message: "请输入用户名和密码"},
		}
	}

	var resp loginResponse
	// 登录请求不携带旧令牌，避免登录失败的 401 误伤当前会话
	err := a.t.Do(transport.WithoutCredentials(ctx), http.MethodPost, pathLogin, nil,
		loginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		msg := inter.LoginFailedMessage
		var re *inter.ResponseError
		if errors.As(err, &re) {
			if re.Message != "" {
				msg = re.Message
			}
			switch re.Status {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
				return inter.Session{}, &inter.LoginError{Message: msg, Err: fmt.Errorf("%w: %w", inter.ErrInvalidCredentials, err)}
			}
		}
		return inter.Session{}, &inter.LoginError{Message: msg, Err: err}
	}

	if resp.Username == "" {
		resp.Username = username
	}
	return inter.Session{Username: resp.Username, Role: resp.Role, Token: resp.Token}, nil
}

func (a *authApi) ValidateToken(ctx context.Context, token string) (inter.TokenValidation, error) {
	if strings.TrimSpace(token) == "" {
		return inter.TokenValidation{Valid: false}, nil
	}

	var resp inter.TokenValidation
	err := a.t.Do(ctx, http.MethodPost, pathValidate, nil, map[string]string{"token": token}, &resp)
	if err != nil {
		var re *inter.ResponseError
		if errors.As(err, &re) {
			switch re.Status {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
				return inter.TokenValidation{Valid: false, Message: re.Message}, nil
			}
		}
		return inter.TokenValidation{}, err
	}
	return resp, nil
}
