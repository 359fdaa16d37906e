// Package cli holds operational helpers reachable as subcommands of the
// main binary, e.g. `apotek jobs:trigger stock:expiry_scan`.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/apotek-erp/apotek-erp/jobs"
)

// Run dispatches a CLI invocation.
func Run(ctx context.Context, redisAddr string, args []string) error {
	switch args[0] {
	case "jobs:trigger":
		if len(args) < 2 {
			return errors.New("cli: jobs:trigger requires a task name")
		}
		c, err := NewJobsCLI(redisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()
		info, err := c.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", args[1], info.ID, info.Queue)
		return nil
	case "jobs:stats":
		c, err := NewJobsCLI(redisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()
		return c.PrintStats()
	default:
		return fmt.Errorf("cli: unknown command %s", args[0])
	}
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	if err != nil {
		return nil, err
	}
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})
	return &JobsCLI{client: client, inspector: inspector}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name with default payload.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskExpiryScan:
		return c.client.EnqueueExpiryScan(ctx, 0, asynq.MaxRetry(3))
	case jobs.TaskLowStock:
		return c.client.EnqueueLowStock(ctx, asynq.MaxRetry(3))
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// PrintStats writes queue depth to stdout.
func (c *JobsCLI) PrintStats() error {
	if c == nil || c.inspector == nil {
		return errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return err
	}
	fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
		info.Queue, info.Pending, info.Active, info.Scheduled, info.Retry)
	return nil
}
