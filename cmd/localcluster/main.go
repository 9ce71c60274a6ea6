package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hugolhafner/go-streams-testing/connector"
	"github.com/hugolhafner/go-streams-testing/harness"
	"github.com/hugolhafner/go-streams-testing/plugins/zaplogger"
)

func parsePorts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse port %q: %w", part, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func main() {
	var (
		configPath   = flag.String("config", "", "YAML harness config; flags set explicitly override it")
		coordination = flag.Int("coordination", 0, "coordination port, 0 for ephemeral")
		brokers      = flag.String("brokers", "0", "comma separated broker ports")
		workers      = flag.String("workers", "0", "comma separated worker ports")
		groupID      = flag.String("group", "", "worker group id")
		sequence     = flag.String("sequence", "", "run a sequence task producing to this topic on the first worker")
	)
	flag.Parse()

	l, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = l.Sync() }()

	if err := run(l, *configPath, *coordination, *brokers, *workers, *groupID, *sequence); err != nil {
		l.Error("localcluster failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(l *zap.Logger, configPath string, coordination int, brokers, workers, groupID, sequence string) error {
	cfg := harness.DefaultConfig()
	if configPath != "" {
		loaded, err := harness.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	var errs []error
	flag.Visit(
		func(f *flag.Flag) {
			var err error
			switch f.Name {
			case "coordination":
				cfg.Coordination = coordination
			case "brokers":
				cfg.Brokers, err = parsePorts(brokers)
			case "workers":
				cfg.Workers, err = parsePorts(workers)
			case "group":
				cfg.GroupID = groupID
			}
			if err != nil {
				errs = append(errs, err)
			}
		},
	)
	if err := multierr.Combine(errs...); err != nil {
		return err
	}
	cfg.Logger = zaplogger.New(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := harness.Start(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			l.Warn("Teardown reported errors", zap.Error(err))
		}
	}()

	fmt.Printf("coordination=%s\n", h.Coordination().ConnectionString())
	fmt.Printf("brokers=%s\n", h.Brokers().ConnectionString())
	fmt.Printf("workers=%s\n", h.Workers().ConnectionString())

	if sequence != "" {
		go func() {
			err := h.Workers().Node(0).RunTask(
				ctx, "sequence", &connector.SequenceTask{}, connector.TaskConfig{
					connector.ConfigTopic:      sequence,
					connector.ConfigPartitions: "default",
				},
			)
			if err != nil {
				l.Error("Sequence task stopped", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	l.Info("Received termination signal, shutting down...")
	return nil
}
