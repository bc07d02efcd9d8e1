package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/fleethealth/api/pkg/logger"
)

// Client manages enqueueing background jobs using Asynq.
type Client struct {
	client *asynq.Client
	logger *logger.Logger
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) (*Client, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	client := asynq.NewClient(redisOpt)

	return &Client{
		client: client,
		logger: log.With("component", "job_client"),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueAggregateRecompute enqueues an aggregate recompute job.
func (c *Client) EnqueueAggregateRecompute(ctx context.Context, payload AggregateRecomputePayload) error {
	task, err := NewAggregateRecomputeTask(payload)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue aggregate recompute",
			"device_id", payload.DeviceID,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Debug("aggregate recompute queued",
		"task_id", info.ID,
		"device_id", payload.DeviceID,
		"queue", info.Queue,
	)
	return nil
}
