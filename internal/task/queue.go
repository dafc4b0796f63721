package task

import "context"

// Handler 处理一条出队的任务 ID，返回错误不会把任务重新入队。
type Handler func(ctx context.Context, taskID string) error

// Producer 投递待执行的内容任务。
type Producer interface {
	Publish(ctx context.Context, taskID string) error
	Close() error
}

// Consumer 以 workerCount 个协程消费任务，直到 ctx 取消。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 是 memory、redis 与 rabbitmq 三种驱动的共同接口。
type Queue interface {
	Producer
	Consumer
}

var (
	_ Queue = (*MemoryQueue)(nil)
	_ Queue = (*RedisQueue)(nil)
	_ Queue = (*RabbitMQQueue)(nil)
)
