package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/hugolhafner/go-streams-testing/committer"
	"github.com/hugolhafner/go-streams-testing/connector"
	"github.com/hugolhafner/go-streams-testing/errorhandler"
	"github.com/hugolhafner/go-streams-testing/kafka"
	"github.com/hugolhafner/go-streams-testing/logger"
	"github.com/hugolhafner/go-streams-testing/offset"
	"github.com/hugolhafner/go-streams-testing/otel"
)

// RunTask starts task under name and runs its poll loop on this node until
// ctx is cancelled, the node is closed, or the error handler fails the
// task. Offsets of produced rows are committed under name, and pending
// offsets are committed once more on a clean stop.
func (n *Node) RunTask(ctx context.Context, name string, task connector.SourceTask, cfg connector.TaskConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n.tasksMu.Lock()
	if !n.Running() {
		n.tasksMu.Unlock()
		return ErrNotRunning
	}
	if _, ok := n.tasks[name]; ok {
		n.tasksMu.Unlock()
		return fmt.Errorf("%s: %w", name, ErrTaskExists)
	}
	n.tasks[name] = cancel
	n.tasksWG.Add(1)
	n.tasksMu.Unlock()

	defer func() {
		n.tasksMu.Lock()
		delete(n.tasks, name)
		n.tasksMu.Unlock()
		n.tasksWG.Done()
	}()

	r := &taskRunner{
		name:         name,
		task:         task,
		producer:     n.client,
		reader:       n.OffsetReader(name),
		writer:       n.OffsetWriter(name),
		committer:    committer.NewPeriodicCommitter(n.cfg.CommitterOptions...),
		handler:      n.cfg.ErrorHandler,
		tel:          n.cfg.Telemetry,
		pollInterval: n.cfg.PollInterval,
		stopTimeout:  n.cfg.ShutdownTimeout,
		logger:       n.logger.With("task", name),
		log:          n.taskLog,
		pending:      make(map[string]offset.Entry),
	}

	return r.run(ctx, cfg)
}

type taskRunner struct {
	name      string
	task      connector.SourceTask
	producer  kafka.Producer
	reader    offset.Reader
	writer    offset.Writer
	committer committer.Committer
	handler   errorhandler.Handler
	tel       *otel.Telemetry
	logger    logger.Logger
	log       *taskLog

	pollInterval time.Duration
	stopTimeout  time.Duration

	// latest offset per partition key since the last commit
	pending map[string]offset.Entry
}

func (r *taskRunner) run(ctx context.Context, cfg connector.TaskConfig) (err error) {
	defer r.committer.Close()

	if r.log != nil {
		if err := r.log.putConfig(ctx, r.name, cfg); err != nil {
			r.logger.Warn("Failed to record task config", "error", err)
		}
	}

	if err := r.task.Start(ctx, connector.NewTaskContext(r.reader, r.logger), cfg); err != nil {
		err = fmt.Errorf("start task %s: %w", r.name, err)
		r.report(ctx, TaskFailed, err)
		return err
	}
	r.logger.Info("Task started")
	r.report(ctx, TaskRunning, nil)

	defer func() {
		if stopErr := r.task.Stop(); stopErr != nil {
			err = multierr.Append(err, fmt.Errorf("stop task %s: %w", r.name, stopErr))
		}
		r.logger.Info("Task stopped", "error", err)

		if err != nil {
			r.report(ctx, TaskFailed, err)
		} else {
			r.report(ctx, TaskStopped, nil)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return r.commitOnStop(ctx)
		case <-r.committer.C():
			if err := r.commit(ctx); err != nil {
				return r.stopOr(ctx, err)
			}
			continue
		default:
		}

		rows, err := r.poll(ctx)
		if err != nil {
			return r.stopOr(ctx, err)
		}

		if len(rows) == 0 {
			select {
			case <-ctx.Done():
				return r.commitOnStop(ctx)
			case <-r.committer.C():
				if err := r.commit(ctx); err != nil {
					return r.stopOr(ctx, err)
				}
			case <-time.After(r.pollInterval):
			}
			continue
		}

		if err := r.produce(ctx, rows); err != nil {
			return r.stopOr(ctx, err)
		}
	}
}

// report writes a status transition. It still runs after ctx is cancelled,
// bounded by the stop timeout, and never fails the task.
func (r *taskRunner) report(ctx context.Context, state TaskState, cause error) {
	if r.log == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.stopTimeout)
	defer cancel()

	if err := r.log.putStatus(ctx, r.name, state, cause); err != nil {
		r.logger.Warn("Failed to record task status", "state", state, "error", err)
	}
}

// stopOr treats err as a clean stop when it was caused by cancellation.
func (r *taskRunner) stopOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return r.commitOnStop(ctx)
	}
	return err
}

func (r *taskRunner) commitOnStop(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.stopTimeout)
	defer cancel()
	return r.commit(stopCtx)
}

func (r *taskRunner) poll(ctx context.Context) ([]connector.Row, error) {
	var rows []connector.Row
	ec := errorhandler.NewErrorContext(r.name, nil).WithPhase(errorhandler.PhasePoll)

	_, err := r.attempt(
		ctx, ec, func(ctx context.Context) error {
			var err error
			rows, err = r.task.Poll(ctx)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *taskRunner) produce(ctx context.Context, rows []connector.Row) error {
	ctx, span := r.tel.Tracer.Start(
		ctx, "task.produce", trace.WithAttributes(otel.AttrTaskName.String(r.name)),
	)
	defer span.End()

	ec := errorhandler.NewErrorContext(r.name, nil).
		WithPhase(errorhandler.PhaseProduction).
		WithRows(len(rows))

	for _, row := range rows {
		headers := r.tel.InjectHeaders(ctx, row.Headers)

		skipped, err := r.attempt(
			ctx, ec.WithTopic(row.Topic), func(ctx context.Context) error {
				return r.producer.Send(ctx, row.Topic, row.Key, row.Value, headers)
			},
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		r.track(row)
		if !skipped {
			r.tel.TaskRecords.Add(
				ctx, 1, metric.WithAttributes(
					otel.AttrTaskName.String(r.name),
					otel.AttrTopic.String(row.Topic),
				),
			)
		}
	}

	r.committer.RecordProcessed(len(rows))
	return nil
}

func (r *taskRunner) track(row connector.Row) {
	if row.Partition == nil {
		return
	}

	key, err := row.Partition.Key()
	if err != nil {
		r.logger.Warn("Row partition cannot be committed", "error", err)
		return
	}
	r.pending[key] = offset.Entry{Partition: row.Partition, Offset: row.Offset}
}

// commit flushes produced rows, then writes their offsets. Offsets are only
// written once the rows they describe are acknowledged.
func (r *taskRunner) commit(ctx context.Context) error {
	if len(r.pending) == 0 {
		r.committer.Committed()
		return nil
	}

	keys := make([]string, 0, len(r.pending))
	for k := range r.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]offset.Entry, len(keys))
	for i, k := range keys {
		entries[i] = r.pending[k]
	}

	ec := errorhandler.NewErrorContext(r.name, nil).
		WithPhase(errorhandler.PhaseCommit).
		WithRows(len(entries))

	skipped, err := r.attempt(
		ctx, ec, func(ctx context.Context) error {
			if err := r.producer.Flush(ctx); err != nil {
				return err
			}
			return r.writer.Write(ctx, entries...)
		},
	)
	if err != nil || skipped {
		return err
	}

	clear(r.pending)
	r.committer.Committed()
	r.logger.Debug("Committed offsets", "partitions", len(entries))
	return nil
}

// attempt runs fn until it succeeds or the error handler gives up. skipped
// reports that the handler chose to continue past the failure.
func (r *taskRunner) attempt(
	ctx context.Context, ec errorhandler.ErrorContext, fn func(context.Context) error,
) (skipped bool, err error) {
	for {
		err := fn(ctx)
		if err == nil {
			return false, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}

		switch r.handler.Handle(ctx, ec.WithError(err)).Type() {
		case errorhandler.ActionTypeRetry:
			ec = ec.IncrementAttempt()
		case errorhandler.ActionTypeContinue:
			return true, nil
		default:
			return false, fmt.Errorf("task %s %s: %w", r.name, ec.Phase, err)
		}
	}
}
