package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	sweepOnce     sync.Once
	sweepStop     chan struct{}
	sweepInterval time.Duration
	sweepTimeout  time.Duration
	sweepBg       = context.Background()
	sweepSource   SweepSource
	sweepLog      *log.Logger
	sweepWG       sync.WaitGroup
)

// shutdownSweeper stops sweeper goroutines and clears shared state. It is intended for tests.
func shutdownSweeper() {
	if sweepStop != nil {
		close(sweepStop)
		sweepStop = nil
	}

	sweepWG.Wait()

	sweepSource = nil
	sweepLog = nil
	sweepInterval = 0
	sweepTimeout = 0
	sweepOnce = sync.Once{}
	sweepWG = sync.WaitGroup{}
}

func initSweeper(source SweepSource, log *log.Logger) {
	sweepOnce.Do(func() {
		sweepSource = source
		if log == nil {
			panic("Logger is not initialized")
		}
		sweepLog = log

		workers := envInt("SWEEP_WORKERS", 2)
		sweepInterval = envDur("SWEEP_POLL_INTERVAL", 5*time.Second)
		sweepTimeout = envDur("SWEEP_TIMEOUT", 60*time.Second)

		sweepStop = make(chan struct{})
		for i := 0; i < workers; i++ {
			sweepWG.Add(1)
			go sweepWorker(i, sweepStop)
		}
		sweepLog.Infof("label sweeper started, workers: %d, interval: %v, timeout: %v", workers, sweepInterval, sweepTimeout)
	})
}

func sweepWorker(id int, stop <-chan struct{}) {
	defer sweepWG.Done()
	timer := time.NewTimer(sweepInterval)
	defer timer.Stop()
	for {
		idle, err := sweepOnePass(id)
		if err != nil {
			sweepLog.Errorf("sweep failed, err: %v, worker: %d", err, id)
		}
		if !idle && err == nil {
			// Drain the queue before going back to sleep.
			continue
		}
		timer.Reset(sweepInterval)
		select {
		case <-stop:
			return
		case <-timer.C:
		}
	}
}

// sweepOnePass dequeues and processes at most one sweep command. It reports
// idle when the queue had nothing to hand out.
func sweepOnePass(id int) (idle bool, err error) {
	ctx, cancel := context.WithTimeout(sweepBg, sweepTimeout)
	defer cancel()

	cmd, rcpt, err := sweepSource.DequeueSweep(ctx)
	if err != nil {
		return false, err
	}
	if cmd == nil {
		return true, nil
	}

	if err := sweepSource.SweepLabel(ctx, cmd.UserID, cmd.Label); err != nil {
		// Leave the message in the queue; the visibility timeout will hand
		// it to another worker for a retry.
		sweepLog.Errorf("label sweep incomplete, err: %v, user: %s, label: %s, worker: %d", err, cmd.UserID, cmd.Label, id)
		return false, nil
	}

	if err := sweepSource.DeleteSweep(ctx, rcpt); err != nil {
		return false, err
	}
	sweepLog.Debugf("label swept, user: %s, label: %s, worker: %d", cmd.UserID, cmd.Label, id)
	return false, nil
}
