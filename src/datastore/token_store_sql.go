package datastore

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nhirsama/infra-console/src/inter"
	_ "modernc.org/sqlite"
)

// 支持的数据库驱动
const (
	DriverSqlite = "sqlite"
	DriverPgx    = "pgx"
)

// DefaultProfile 未指定配置档时使用的名称
const DefaultProfile = "default"

// TokenStoreSql 基于 database/sql 的客户端状态存储
// 每个配置档 (profile) 独立保存一个令牌，便于同一台机器上切换多个账号
type TokenStoreSql struct {
	db      *sql.DB
	driver  string
	profile string
}

// NewTokenStoreSql 打开数据库并初始化表结构
// driver 为 "sqlite" 时 dsn 是数据库文件路径，为 "pgx" 时是 PostgreSQL 连接串
func NewTokenStoreSql(driver, dsn string) (*TokenStoreSql, error) {
	var schema string
	switch driver {
	case DriverSqlite:
		schema = `
    CREATE TABLE IF NOT EXISTS client_state (
       profile    TEXT NOT NULL,
       state_key  TEXT NOT NULL,
       value      TEXT NOT NULL,
       updated_at DATETIME,
       PRIMARY KEY (profile, state_key)
    );`
	case DriverPgx:
		schema = `
    CREATE TABLE IF NOT EXISTS client_state (
       profile    TEXT NOT NULL,
       state_key  TEXT NOT NULL,
       value      TEXT NOT NULL,
       updated_at TIMESTAMPTZ,
       PRIMARY KEY (profile, state_key)
    );`
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSqlite {
		// sqlite 单写者
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	return &TokenStoreSql{db: db, driver: driver, profile: DefaultProfile}, nil
}

// WithProfile 返回共享同一连接、作用于另一个配置档的存储
func (s *TokenStoreSql) WithProfile(profile string) *TokenStoreSql {
	if profile == "" {
		profile = DefaultProfile
	}
	return &TokenStoreSql{db: s.db, driver: s.driver, profile: profile}
}

// Profile 当前配置档
func (s *TokenStoreSql) Profile() string {
	return s.profile
}

// Close 关闭数据库连接
func (s *TokenStoreSql) Close() error {
	return s.db.Close()
}

// Load 实现 inter.TokenStorage
func (s *TokenStoreSql) Load() (string, error) {
	v, err := s.Get(inter.TokenStorageKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// Save 实现 inter.TokenStorage
func (s *TokenStoreSql) Save(token string) error {
	return s.Put(inter.TokenStorageKey, token)
}

// Clear 实现 inter.TokenStorage
func (s *TokenStoreSql) Clear() error {
	return s.Delete(inter.TokenStorageKey)
}

// Get 读取任意键，不存在时返回 sql.ErrNoRows
func (s *TokenStoreSql) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(s.rebind(`SELECT value FROM client_state WHERE profile = ? AND state_key = ?`), s.profile, key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// Put 写入任意键
func (s *TokenStoreSql) Put(key, value string) error {
	_, err := s.db.Exec(s.rebind(`
		INSERT INTO client_state (profile, state_key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (profile, state_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		s.profile, key, value, time.Now().UTC())
	return err
}

// Delete 删除任意键，不存在时不报错
func (s *TokenStoreSql) Delete(key string) error {
	_, err := s.db.Exec(s.rebind(`DELETE FROM client_state WHERE profile = ? AND state_key = ?`), s.profile, key)
	return err
}

// Profiles 列出保存了令牌的配置档
func (s *TokenStoreSql) Profiles() ([]string, error) {
	rows, err := s.db.Query(s.rebind(`SELECT profile FROM client_state WHERE state_key = ? ORDER BY profile`), inter.TokenStorageKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// rebind 将 ? 占位符转换为 PostgreSQL 的 $n
func (s *TokenStoreSql) rebind(query string) string {
	if s.driver != DriverPgx {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
