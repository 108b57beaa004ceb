package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ── 任务队列 ──
// 每个队列对应一个 Redis list：LPUSH 入队，BRPOP 按队列顺序出队

const queuePrefix = "queue:"

// 队列名
const (
	QueueHigh    = "high"
	QueueDefault = "default"
)

// Job 队列中的任务信封
type Job struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args"`
	Queue      string          `json:"queue"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Decode 将任务参数解析到 v
func (j *Job) Decode(v interface{}) error {
	if len(j.Args) == 0 {
		return fmt.Errorf("任务 %s 缺少参数", j.Name)
	}
	return json.Unmarshal(j.Args, v)
}

// Enqueue 将任务推入指定队列，返回任务 ID
func (c *Client) Enqueue(ctx context.Context, queue, name string, args interface{}) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("序列化任务参数失败: %w", err)
	}
	job := Job{
		ID:         uuid.New().String(),
		Name:       name,
		Args:       raw,
		Queue:      queue,
		EnqueuedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("序列化任务失败: %w", err)
	}
	if err := c.rdb.LPush(ctx, queuePrefix+queue, payload).Err(); err != nil {
		return "", fmt.Errorf("任务入队失败: %w", err)
	}
	return job.ID, nil
}

// Dequeue 阻塞等待任务，按 queues 顺序优先出队
// 超时无任务时返回 (nil, nil)
func (c *Client) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*Job, error) {
	keys := make([]string, len(queues))
	for i, q := range queues {
		keys[i] = queuePrefix + q
	}

	res, err := c.rdb.BRPop(ctx, timeout, keys...).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// res = [key, value]
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("解析任务失败: %w", err)
	}
	return &job, nil
}

// QueueLength 返回队列长度
func (c *Client) QueueLength(ctx context.Context, queue string) (int64, error) {
	return c.rdb.LLen(ctx, queuePrefix+queue).Result()
}
