package broker

import (
	"fmt"

	"github.com/hugolhafner/go-streams-testing/logger"
	"github.com/twmb/franz-go/pkg/kfake"
)

var _ kfake.Logger = (*kfakeLogger)(nil)

type kfakeLogger struct {
	l logger.Logger
}

func (k *kfakeLogger) Logf(level kfake.LogLevel, msg string, args ...any) {
	k.l.Log(mapFromKfakeLevel(level), fmt.Sprintf(msg, args...))
}

func mapFromKfakeLevel(level kfake.LogLevel) logger.LogLevel {
	switch level {
	case kfake.LogLevelDebug:
		return logger.DebugLevel
	case kfake.LogLevelInfo:
		return logger.InfoLevel
	case kfake.LogLevelWarn:
		return logger.WarnLevel
	case kfake.LogLevelError:
		return logger.ErrorLevel
	default:
		return logger.DebugLevel
	}
}
