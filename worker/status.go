package worker

import (
	"context"
	"fmt"

	"github.com/hugolhafner/go-streams-testing/connector"
	"github.com/hugolhafner/go-streams-testing/kafka"
	"github.com/hugolhafner/go-streams-testing/logger"
	"github.com/hugolhafner/go-streams-testing/serde"
)

type TaskState string

const (
	TaskRunning TaskState = "RUNNING"
	TaskStopped TaskState = "STOPPED"
	TaskFailed  TaskState = "FAILED"
)

// TaskStatus is the last reported state of a task, as written by the
// worker running it.
type TaskStatus struct {
	Task   string    `json:"task"`
	State  TaskState `json:"state"`
	Worker string    `json:"worker"`
	Error  string    `json:"error,omitempty"`
}

type TasksResponse struct {
	Tasks []TaskStatus `json:"tasks"`
}

type taskLogBackend interface {
	kafka.Producer
	kafka.Reader
}

// taskLog keeps task configs and status transitions in the group's
// internal topics, keyed by task name. Later records replace earlier ones.
type taskLog struct {
	backend      taskLogBackend
	configsTopic string
	statusTopic  string
	worker       string
	logger       logger.Logger

	statusSerde serde.Serde[TaskStatus]
	configSerde serde.Serde[connector.TaskConfig]
}

func newTaskLog(backend taskLogBackend, cfg Config, worker string, l logger.Logger) *taskLog {
	return &taskLog{
		backend:      backend,
		configsTopic: cfg.ConfigsTopic(),
		statusTopic:  cfg.StatusTopic(),
		worker:       worker,
		logger:       l,
		statusSerde:  serde.JSON[TaskStatus](),
		configSerde:  serde.JSON[connector.TaskConfig](),
	}
}

func (l *taskLog) putConfig(ctx context.Context, task string, cfg connector.TaskConfig) error {
	value, err := l.configSerde.Serialise(l.configsTopic, cfg)
	if err != nil {
		return fmt.Errorf("encode config of %s: %w", task, err)
	}
	return l.backend.Send(ctx, l.configsTopic, []byte(task), value, nil)
}

func (l *taskLog) putStatus(ctx context.Context, task string, state TaskState, cause error) error {
	status := TaskStatus{Task: task, State: state, Worker: l.worker}
	if cause != nil {
		status.Error = cause.Error()
	}

	value, err := l.statusSerde.Serialise(l.statusTopic, status)
	if err != nil {
		return fmt.Errorf("encode status of %s: %w", task, err)
	}
	return l.backend.Send(ctx, l.statusTopic, []byte(task), value, nil)
}

// statuses replays the status topic and returns the latest status per task.
func (l *taskLog) statuses(ctx context.Context) (map[string]TaskStatus, error) {
	out := make(map[string]TaskStatus)
	err := replay(ctx, l.backend, l.statusTopic, l.statusSerde, l.logger, func(key string, s TaskStatus) {
		out[key] = s
	}, func(key string) { delete(out, key) })
	return out, err
}

// configs replays the configs topic and returns the latest config per task.
func (l *taskLog) configs(ctx context.Context) (map[string]connector.TaskConfig, error) {
	out := make(map[string]connector.TaskConfig)
	err := replay(ctx, l.backend, l.configsTopic, l.configSerde, l.logger, func(key string, c connector.TaskConfig) {
		out[key] = c
	}, func(key string) { delete(out, key) })
	return out, err
}

func replay[T any](
	ctx context.Context, r kafka.Reader, topic string, s serde.Deserialiser[T], l logger.Logger,
	put func(string, T), remove func(string),
) error {
	records, err := r.ReadToEnd(ctx, topic)
	if err != nil {
		return fmt.Errorf("read %s: %w", topic, err)
	}

	for _, rec := range records {
		key := string(rec.Key)
		if rec.Tombstone() {
			remove(key)
			continue
		}

		v, err := s.Deserialise(topic, rec.Value)
		if err != nil {
			l.Warn("Skipping undecodable record", "topic", topic, "key", key, "error", err)
			continue
		}
		put(key, v)
	}
	return nil
}
