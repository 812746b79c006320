package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nhirsama/infra-console/src/inter"
)

// DefaultTopic 预测完成事件的主题，最后一段为资产编号
const DefaultTopic = "predictions/completed/+"

// CompletionEvent 预测任务完成事件
type CompletionEvent struct {
	AssetID   string          `json:"assetId"`
	RiskLevel inter.RiskLevel `json:"riskLevel,omitempty"`
	At        time.Time       `json:"at"`
}

// MqttConfig MQTT 连接配置
type MqttConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

func connect(cfg MqttConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("MQTT 连接断开: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("连接 MQTT broker 失败: %w", token.Error())
	}
	log.Printf("已连接 MQTT broker: %s", cfg.Broker)
	return client, nil
}

// Listener 订阅预测完成事件并按资产编号写入队列
type Listener struct {
	client mqtt.Client
	queue  inter.MessageQueue
	topic  string
}

// NewListener 创建监听器，client 为 nil 时只能通过 HandleMessage 注入事件
func NewListener(client mqtt.Client, queue inter.MessageQueue, topic string) *Listener {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Listener{client: client, queue: queue, topic: topic}
}

// DialListener 连接 broker 并订阅
func DialListener(cfg MqttConfig, queue inter.MessageQueue) (*Listener, error) {
	client, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	l := NewListener(client, queue, cfg.Topic)
	if err := l.Subscribe(); err != nil {
		client.Disconnect(250)
		return nil, err
	}
	return l, nil
}

// Subscribe 订阅事件主题
func (l *Listener) Subscribe() error {
	token := l.client.Subscribe(l.topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		l.HandleMessage(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("订阅 %s 失败: %w", l.topic, token.Error())
	}
	log.Printf("已订阅预测完成事件: %s", l.topic)
	return nil
}

// HandleMessage 解析事件，资产编号优先取载荷，其次取主题最后一段
func (l *Listener) HandleMessage(topic string, payload []byte) {
	var ev CompletionEvent
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &ev); err != nil {
			log.Printf("无法解析预测完成事件 (%s): %v", topic, err)
		}
	}
	if ev.AssetID == "" {
		if i := strings.LastIndex(topic, "/"); i >= 0 && i < len(topic)-1 {
			ev.AssetID = topic[i+1:]
		}
	}
	if ev.AssetID == "" || ev.AssetID == "+" {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if err := l.queue.Push(ev.AssetID, ev); err != nil {
		log.Printf("预测完成事件入队失败: %v", err)
	}
}

// Close 断开连接
func (l *Listener) Close() {
	if l.client != nil {
		l.client.Disconnect(250)
	}
}

// Publisher 发布预测完成事件，开发用后端在预测生成后调用
type Publisher struct {
	client mqtt.Client
	topic  string
}

// DialPublisher 连接 broker
func DialPublisher(cfg MqttConfig) (*Publisher, error) {
	client, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{client: client, topic: topic}, nil
}

// TopicFor 将订阅主题中的通配符替换为资产编号
func TopicFor(pattern, assetID string) string {
	if strings.HasSuffix(pattern, "/+") || strings.HasSuffix(pattern, "/#") {
		return pattern[:len(pattern)-1] + assetID
	}
	return strings.TrimRight(pattern, "/") + "/" + assetID
}

// Publish 发布一个完成事件
func (p *Publisher) Publish(ev CompletionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	token := p.client.Publish(TopicFor(p.topic, ev.AssetID), 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("发布预测完成事件失败: %w", token.Error())
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
