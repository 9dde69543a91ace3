package scheduler

import (
	"context"
	"time"

	"plumbing_backend/platform/config"
	"plumbing_backend/platform/db"

	"github.com/hibiken/asynq"
)

// uniqueWindow drops duplicate manual triggers queued close together.
const uniqueWindow = 5 * time.Minute

// Client enqueues on-demand runs for the worker.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueNurtureProcess queues a drip run.
func (c *Client) EnqueueNurtureProcess(ctx context.Context, trigger string) (string, error) {
	task, err := NewNurtureProcessTask(TriggerPayload{Trigger: trigger, RequestedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task)
}

// EnqueueReviewsSync queues a review sync.
func (c *Client) EnqueueReviewsSync(ctx context.Context, trigger string) (string, error) {
	task, err := NewReviewsSyncTask(TriggerPayload{Trigger: trigger, RequestedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) (string, error) {
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(uniqueWindow))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func queueName(cfg config.SchedulerConfig) string {
	if q := cfg.GetAsynqQueueName(); q != "" {
		return q
	}
	return "default"
}

func redisClientOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	if cfg.GetRedisURL() == "" {
		return asynq.RedisClientOpt{}, db.ErrRedisNotConfigured
	}
	opt, err := db.RedisOptions(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
