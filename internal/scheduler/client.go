package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"sfr_ops_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client schedules delayed tasks on asynq.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	now       func() time.Time
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return newClient(opt, cfg.GetAsynqQueueName()), nil
}

func newClient(opt asynq.RedisConnOpt, queue string) *Client {
	if queue == "" {
		queue = "default"
	}
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queue,
		now:       time.Now,
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return errors.Join(c.client.Close(), c.inspector.Close())
}

// ScheduleStatusTimers enqueues one status timer per future instant in at.
func (c *Client) ScheduleStatusTimers(ctx context.Context, requestID int64, at []time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}
	now := c.now()
	for _, runAt := range at {
		if !runAt.After(now) {
			continue
		}
		task, err := NewStatusTimerTask(StatusTimerPayload{RequestID: requestID})
		if err != nil {
			return err
		}
		_, err = c.client.EnqueueContext(ctx, task,
			asynq.ProcessAt(runAt),
			asynq.Queue(c.queue),
			asynq.TaskID(statusTimerTaskID(requestID, runAt)),
		)
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			return fmt.Errorf("schedule status timer: %w", err)
		}
	}
	return nil
}

// CancelStatusTimers removes the pending status timers of a request at the given instants.
func (c *Client) CancelStatusTimers(ctx context.Context, requestID int64, at []time.Time) error {
	if c == nil || c.inspector == nil {
		return nil
	}
	for _, runAt := range at {
		err := c.inspector.DeleteTask(c.queue, statusTimerTaskID(requestID, runAt))
		if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
			return fmt.Errorf("cancel status timer: %w", err)
		}
	}
	return nil
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
