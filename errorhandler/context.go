package errorhandler

// ErrorContext describes a failed step of a running source task.
type ErrorContext struct {
	// Task is the name the task was started under.
	Task string

	// Topic is the destination topic of the failed row, empty outside
	// production.
	Topic string

	// Rows is the size of the batch being handled when the error occurred.
	Rows int

	Error error

	// Attempt is current attempt number, 1 indexed.
	Attempt int

	Phase ErrorPhase
}

func NewErrorContext(task string, err error) ErrorContext {
	return ErrorContext{
		Task:    task,
		Error:   err,
		Attempt: 1,
	}
}

func (ec ErrorContext) WithError(err error) ErrorContext {
	ec.Error = err
	return ec
}

func (ec ErrorContext) WithAttempt(attempt int) ErrorContext {
	ec.Attempt = attempt
	return ec
}

func (ec ErrorContext) WithTopic(topic string) ErrorContext {
	ec.Topic = topic
	return ec
}

func (ec ErrorContext) WithRows(n int) ErrorContext {
	ec.Rows = n
	return ec
}

func (ec ErrorContext) WithPhase(phase ErrorPhase) ErrorContext {
	ec.Phase = phase
	return ec
}

func (ec ErrorContext) IncrementAttempt() ErrorContext {
	ec.Attempt++
	return ec
}
