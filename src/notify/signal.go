package notify

import (
	"context"

	"github.com/nhirsama/infra-console/src/inter"
)

// QueueSignal 以消息队列实现 inter.CompletionSignal
type QueueSignal struct {
	queue inter.MessageQueue
}

func NewQueueSignal(queue inter.MessageQueue) *QueueSignal {
	return &QueueSignal{queue: queue}
}

// Drain 丢弃资产已积压的事件，触发新任务前调用
func (s *QueueSignal) Drain(assetID string) {
	for {
		if _, ok := s.queue.Pop(assetID); !ok {
			return
		}
	}
}

func (s *QueueSignal) Await(ctx context.Context, assetID string) error {
	_, err := s.queue.Wait(ctx, assetID)
	return err
}
