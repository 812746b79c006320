package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 INFRA_API_URL
const EnvPrefix = "INFRA"

// Config 运行配置，启动时加载一次
type Config struct {
	APIURL         string
	HTTPTimeout    time.Duration
	ListenAddr     string
	HTMLDir        string
	SessionSecret  string
	CookieSecure   bool
	TokenStore     string // sql | file
	StateDriver    string // sqlite | pgx
	StateDSN       string
	TokenFile      string
	Profile        string
	MqttBroker     string
	MqttClientID   string
	MqttUsername   string
	MqttPassword   string
	MqttTopic      string
	PredictionWait time.Duration
	PollInterval   time.Duration
	StubAddr       string
	StubSecret     string
	StubDelay      time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("http_timeout", "15s")
	v.SetDefault("listen_addr", ":3000")
	v.SetDefault("html_dir", "html")
	v.SetDefault("session_secret", "")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("token_store", "sql")
	v.SetDefault("state_driver", "sqlite")
	v.SetDefault("state_dsn", "./console.db")
	v.SetDefault("token_file", "")
	v.SetDefault("profile", "default")
	v.SetDefault("mqtt_broker", "")
	v.SetDefault("mqtt_client_id", "infra-console")
	v.SetDefault("mqtt_username", "")
	v.SetDefault("mqtt_password", "")
	v.SetDefault("mqtt_topic", "predictions/completed/+")
	v.SetDefault("prediction_wait", "10s")
	v.SetDefault("poll_interval", "1s")
	v.SetDefault("stub_addr", ":8080")
	v.SetDefault("stub_secret", "")
	v.SetDefault("stub_delay", "2s")
}

// RegisterFlags 注册可覆盖配置的命令行参数
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("api-url", "", "后端地址 (INFRA_API_URL)")
	fs.String("profile", "", "令牌配置档，用于切换账号")
	fs.String("token-store", "", "令牌存储方式: sql | file")
	fs.String("state-driver", "", "令牌数据库驱动: sqlite | pgx")
	fs.String("state-dsn", "", "令牌数据库路径或连接串")
	fs.String("token-file", "", "令牌文件路径 (token-store=file)")
	fs.String("listen-addr", "", "控制台监听地址")
	fs.String("mqtt-broker", "", "预测完成事件的 MQTT broker")
	fs.Duration("prediction-wait", 0, "触发预测后最长等待时间")
	fs.String("config", "", "配置文件路径")
}

// Load 读取 .env、配置文件、环境变量与命令行参数，后者优先
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("读取 .env 失败: %v", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("infra-console")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.infra-console")

	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
		}
		bindFlag(v, fs, "api_url", "api-url")
		bindFlag(v, fs, "profile", "profile")
		bindFlag(v, fs, "token_store", "token-store")
		bindFlag(v, fs, "state_driver", "state-driver")
		bindFlag(v, fs, "state_dsn", "state-dsn")
		bindFlag(v, fs, "token_file", "token-file")
		bindFlag(v, fs, "listen_addr", "listen-addr")
		bindFlag(v, fs, "mqtt_broker", "mqtt-broker")
		bindFlag(v, fs, "prediction_wait", "prediction-wait")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{
		APIURL:         strings.TrimRight(v.GetString("api_url"), "/"),
		HTTPTimeout:    v.GetDuration("http_timeout"),
		ListenAddr:     v.GetString("listen_addr"),
		HTMLDir:        v.GetString("html_dir"),
		SessionSecret:  v.GetString("session_secret"),
		CookieSecure:   v.GetBool("cookie_secure"),
		TokenStore:     strings.ToLower(v.GetString("token_store")),
		StateDriver:    strings.ToLower(v.GetString("state_driver")),
		StateDSN:       v.GetString("state_dsn"),
		TokenFile:      v.GetString("token_file"),
		Profile:        v.GetString("profile"),
		MqttBroker:     v.GetString("mqtt_broker"),
		MqttClientID:   v.GetString("mqtt_client_id"),
		MqttUsername:   v.GetString("mqtt_username"),
		MqttPassword:   v.GetString("mqtt_password"),
		MqttTopic:      v.GetString("mqtt_topic"),
		PredictionWait: v.GetDuration("prediction_wait"),
		PollInterval:   v.GetDuration("poll_interval"),
		StubAddr:       v.GetString("stub_addr"),
		StubSecret:     v.GetString("stub_secret"),
		StubDelay:      v.GetDuration("stub_delay"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	switch c.TokenStore {
	case "sql", "file":
	default:
		return fmt.Errorf("token_store 只能是 sql 或 file，当前为 %q", c.TokenStore)
	}
	switch c.StateDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("state_driver 只能是 sqlite 或 pgx，当前为 %q", c.StateDriver)
	}
	if c.APIURL == "" {
		return errors.New("api_url 不能为空")
	}
	if c.PredictionWait < 0 || c.PollInterval < 0 {
		return errors.New("prediction_wait 与 poll_interval 不能为负数")
	}
	return nil
}

// bindFlag 只有在命令行显式设置时才覆盖
func bindFlag(v *viper.Viper, fs *pflag.FlagSet, key, name string) {
	if f := fs.Lookup(name); f != nil {
		_ = v.BindPFlag(key, f)
	}
}
