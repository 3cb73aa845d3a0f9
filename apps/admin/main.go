package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/tobias-barakaa/newschool-sub008/apps"
	"github.com/tobias-barakaa/newschool-sub008/apps/shared"
	"github.com/tobias-barakaa/newschool-sub008/core"
	"github.com/tobias-barakaa/newschool-sub008/core/timetable"
	logsvc "github.com/tobias-barakaa/newschool-sub008/services/logger"
)

func main() {
	conf := core.NewConfig()

	// logs go to stderr, stdout carries command output
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	cli := commandLine{
		conf:   conf,
		logger: logger,
		in:     os.Stdin,
		inFd:   int(os.Stdin.Fd()),
		out:    os.Stdout,
		openService: func(ctx context.Context) (timetable.ServiceInterface, func() error, error) {
			cache, closeFn, err := shared.OpenCache(ctx, conf)
			if err != nil {
				return nil, nil, err
			}
			svc, err := shared.NewTimetableService(ctx, conf, cache, logger, nil)
			if err != nil {
				_ = closeFn()
				return nil, nil, err
			}
			return svc, closeFn, nil
		},
	}

	err := newRootCommand(&cli).ExecuteContext(context.Background())
	logger.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if apps.IsArgumentError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
