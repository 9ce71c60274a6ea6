// Package connector defines the boundary between the worker pool and the
// source tasks it runs.
package connector

import (
	"context"

	"github.com/hugolhafner/go-streams-testing/kafka"
	"github.com/hugolhafner/go-streams-testing/logger"
	"github.com/hugolhafner/go-streams-testing/offset"
)

// TaskConfig is the string configuration handed to one task.
type TaskConfig map[string]string

// Row is one record produced by a source task, together with the source
// position it was read from.
type Row struct {
	Partition offset.PartitionKey
	Offset    offset.Record

	Topic   string
	Key     []byte
	Value   []byte
	Headers []kafka.Header
}

// TaskContext is what the worker exposes to a running task.
type TaskContext interface {
	// OffsetReader looks up offsets committed by earlier runs of the task.
	OffsetReader() offset.Reader
	Logger() logger.Logger
}

type SourceTask interface {
	// Start prepares the task, typically recovering positions through the
	// context's OffsetReader.
	Start(ctx context.Context, tc TaskContext, cfg TaskConfig) error
	// Poll returns the next rows; an empty batch means nothing is available.
	Poll(ctx context.Context) ([]Row, error)
	Stop() error
}

type SourceConnector interface {
	Start(cfg map[string]string) error
	// TaskConfigs splits the work across at most maxTasks tasks.
	TaskConfigs(maxTasks int) ([]TaskConfig, error)
	NewTask() SourceTask
	Stop() error
}

type taskContext struct {
	reader offset.Reader
	logger logger.Logger
}

func NewTaskContext(reader offset.Reader, l logger.Logger) TaskContext {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return taskContext{reader: reader, logger: l}
}

func (c taskContext) OffsetReader() offset.Reader {
	return c.reader
}

func (c taskContext) Logger() logger.Logger {
	return c.logger
}
