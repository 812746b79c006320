package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/nhirsama/infra-console/src/inter"
)

type MessageQueue struct {
	queues   sync.Map
	capacity int
}

func NewMessageQueue(cap int) inter.MessageQueue {
	if cap <= 0 {
		cap = 1
	}
	return &MessageQueue{
		capacity: cap,
	}
}

func (m *MessageQueue) queue(key string) chan interface{} {
	actual, _ := m.queues.LoadOrStore(key, make(chan interface{}, m.capacity))
	return actual.(chan interface{})
}

func (m *MessageQueue) Push(key string, message interface{}) error {
	q := m.queue(key)

	select {
	case q <- message:
		return nil
	default:
		// 队列满策略：丢弃最早的一条并压入新消息
		select {
		case <-q:
		default:
		}

		select {
		case q <- message:
			return nil
		default:
			return errors.New("队列已满且无法清理")
		}
	}
}

func (m *MessageQueue) Pop(key string) (interface{}, bool) {
	actual, exists := m.queues.Load(key)
	if !exists {
		return nil, false
	}
	q := actual.(chan interface{})
	select {
	case msg := <-q:
		return msg, true
	default:
		return nil, false
	}
}

func (m *MessageQueue) Wait(ctx context.Context, key string) (interface{}, error) {
	q := m.queue(key)
	select {
	case msg := <-q:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *MessageQueue) IsEmpty(key string) bool {
	actual, exists := m.queues.Load(key)
	if !exists {
		return true
	}
	q := actual.(chan interface{})
	return len(q) == 0
}
