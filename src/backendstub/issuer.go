package backendstub

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nhirsama/infra-console/src/inter"
)

const issuerName = "infra-backend-stub"

var errTokenRevoked = errors.New("token revoked")

// tokenIssuer 签发与校验 HS256 令牌，支持吊销
type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]struct{}
}

func newTokenIssuer(secret []byte, ttl time.Duration, now func() time.Time) *tokenIssuer {
	return &tokenIssuer{
		secret:  secret,
		ttl:     ttl,
		now:     now,
		revoked: make(map[string]struct{}),
	}
}

func (i *tokenIssuer) Issue(username string, role inter.Role) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"sub":  username,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(i.ttl).Unix(),
		"iss":  issuerName,
		// 同一秒内多次登录也要得到不同的令牌
		"nonce": now.UnixNano(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Parse 返回令牌中的用户名与角色
func (i *tokenIssuer) Parse(raw string) (string, inter.Role, error) {
	i.mu.Lock()
	_, revoked := i.revoked[raw]
	i.mu.Unlock()
	if revoked {
		return "", "", errTokenRevoked
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuerName), jwt.WithTimeFunc(i.now))
	if err != nil {
		return "", "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}
	sub, _ := claims.GetSubject()
	role, _ := claims["role"].(string)
	if sub == "" || role == "" {
		return "", "", errors.New("missing subject or role")
	}
	return sub, inter.Role(role), nil
}

func (i *tokenIssuer) Revoke(raw string) {
	i.mu.Lock()
	i.revoked[raw] = struct{}{}
	i.mu.Unlock()
}
