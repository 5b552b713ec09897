package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

func (c *Client) EnqueueArchive(ctx context.Context, payload ArchiveConversionPayload) (*asynq.TaskInfo, error) {
	task, err := NewArchiveConversionTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.TaskID(payload.Conversion.ID),
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
		asynq.Retention(time.Hour),
	)
}

func (c *Client) Close() error {
	return c.client.Close()
}
