package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dagflow-io/dagflow/flow"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// Addr is the host:port of the Redis server. Defaults to localhost:6379.
	Addr string

	// Password is optional.
	Password string

	// DB selects the logical database.
	DB int

	// KeyPrefix namespaces every key, e.g. "dagflow:". Optional.
	KeyPrefix string

	// Timeout applies to dial, read, and write. Defaults to 5s.
	Timeout time.Duration
}

// RedisStore persists executions, the running set, per-workflow history,
// and per-day logs in Redis.
//
// Key layout (all under KeyPrefix):
//
//	workflow_execution:<id>   string, JSON execution, EX 1h
//	running_executions        set of execution ids
//	workflow_history:<wfID>   list, newest first, LTRIM to 100, EX 7d
//	workflow_logs:<day>       list, append order, EX 30d
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, prefix: opts.KeyPrefix}, nil
}

// Close releases the underlying connection pool.
func (r *RedisStore) Close() error { return r.client.Close() }

func (r *RedisStore) executionKey(id string) string {
	return r.prefix + "workflow_execution:" + id
}

func (r *RedisStore) runningKey() string {
	return r.prefix + "running_executions"
}

func (r *RedisStore) historyKey(workflowID string) string {
	return r.prefix + "workflow_history:" + workflowID
}

func (r *RedisStore) logKey(day string) string {
	return r.prefix + "workflow_logs:" + day
}

func (r *RedisStore) SaveExecution(ctx context.Context, exec *flow.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.executionKey(exec.ID), data, flow.ExecutionTTL).Err()
}

func (r *RedisStore) GetExecution(ctx context.Context, id string) (*flow.Execution, error) {
	data, err := r.client.Get(ctx, r.executionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, flow.ErrExecutionNotFound
	}
	if err != nil {
		return nil, err
	}
	var exec flow.Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

func (r *RedisStore) AddToRunning(ctx context.Context, id string) error {
	return r.client.SAdd(ctx, r.runningKey(), id).Err()
}

func (r *RedisStore) RemoveFromRunning(ctx context.Context, id string) error {
	return r.client.SRem(ctx, r.runningKey(), id).Err()
}

func (r *RedisStore) ListRunning(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, r.runningKey()).Result()
}

func (r *RedisStore) AppendHistory(ctx context.Context, workflowID string, exec *flow.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return err
	}
	key := r.historyKey(workflowID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, flow.HistoryLimit-1)
	pipe.Expire(ctx, key, flow.HistoryTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) ListHistory(ctx context.Context, workflowID string) ([]*flow.Execution, error) {
	items, err := r.client.LRange(ctx, r.historyKey(workflowID), 0, flow.HistoryLimit-1).Result()
	if err != nil {
		return nil, err
	}
	execs := make([]*flow.Execution, 0, len(items))
	for _, item := range items {
		var exec flow.Execution
		if err := json.Unmarshal([]byte(item), &exec); err != nil {
			return nil, err
		}
		execs = append(execs, &exec)
	}
	return execs, nil
}

func (r *RedisStore) AppendLog(ctx context.Context, day string, entry flow.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := r.logKey(day)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, flow.LogTTL)
	_, err = pipe.Exec(ctx)
	return err
}
