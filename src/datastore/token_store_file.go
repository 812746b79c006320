package datastore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nhirsama/infra-console/src/inter"
	"github.com/sigurn/crc16"
)

var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// crcSize 文件末尾的校验码长度
const crcSize = 2

// TokenStoreFile 将令牌保存在本地文件中
// 文件内容为 JSON 载荷加 2 字节 CRC16 (Modbus, 大端)，校验失败的文件视为没有令牌
type TokenStoreFile struct {
	mu   sync.Mutex
	path string
}

type tokenFile struct {
	Key     string    `json:"key"`
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// NewTokenStoreFile 创建文件存储，目录不存在时自动创建
func NewTokenStoreFile(path string) (*TokenStoreFile, error) {
	if path == "" {
		return nil, errors.New("令牌文件路径为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("创建令牌目录失败: %w", err)
	}
	return &TokenStoreFile{path: path}, nil
}

// DefaultTokenFile 默认令牌文件位置 ~/.infra-console/token
func DefaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".infra-console", "token")
	}
	return filepath.Join(home, ".infra-console", "token")
}

func (s *TokenStoreFile) Path() string {
	return s.path
}

func (s *TokenStoreFile) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	payload, ok := verifyChecksum(raw)
	if !ok {
		log.Printf("令牌文件 %s 校验失败，已忽略", s.path)
		return "", nil
	}
	var f tokenFile
	if err := json.Unmarshal(payload, &f); err != nil || f.Key != inter.TokenStorageKey {
		log.Printf("令牌文件 %s 格式错误，已忽略", s.path)
		return "", nil
	}
	return f.Token, nil
}

func (s *TokenStoreFile) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(tokenFile{Key: inter.TokenStorageKey, Token: token, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	data := appendChecksum(payload)

	// 先写临时文件再改名，避免写一半的文件
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

func (s *TokenStoreFile) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func appendChecksum(payload []byte) []byte {
	out := make([]byte, len(payload), len(payload)+crcSize)
	copy(out, payload)
	return binary.BigEndian.AppendUint16(out, crc16.Checksum(payload, modbusTable))
}

func verifyChecksum(raw []byte) ([]byte, bool) {
	if len(raw) <= crcSize {
		return nil, false
	}
	payload := raw[:len(raw)-crcSize]
	want := binary.BigEndian.Uint16(raw[len(raw)-crcSize:])
	return payload, crc16.Checksum(payload, modbusTable) == want
}
