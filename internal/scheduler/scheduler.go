// Package scheduler drives several download sessions through a bounded
// worker pool and feeds their counters to a progress reporter.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/resumedl/internal/session"
)

const progressTick = 200 * time.Millisecond

// Reporter receives per-session progress. output.Manager implements it.
type Reporter interface {
	RegisterTask(name string) int
	SetMessage(id int, message string)
	SetStatus(id int, status string)
	SetProgress(id int, written, total uint64)
	Complete(id int, message string)
	ReportError(id int, err error)
}

// Run starts every session and waits for all of them. Failures do not stop
// the other workers; they are reported and returned together.
func Run(ctx context.Context, sessions []*session.Session, numWorkers int, reporter Reporter) error {
	numWorkers = max(1, min(numWorkers, len(sessions)))
	jobCh := make(chan *session.Session, len(sessions))
	for _, s := range sessions {
		jobCh <- s
	}
	close(jobCh)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobCh {
				if err := runOne(ctx, s, reporter); err != nil {
					mu.Lock()
					result = multierror.Append(result, fmt.Errorf("%s: %w", s.NameOnDisk(), err))
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return result.ErrorOrNil()
}

func runOne(ctx context.Context, s *session.Session, reporter Reporter) error {
	id := reporter.RegisterTask(s.NameOnDisk())
	if ctx.Err() != nil {
		reporter.ReportError(id, ctx.Err())
		return ctx.Err()
	}
	if !s.Running() {
		s.ToggleRunning()
	}
	reporter.SetMessage(id, fmt.Sprintf("Downloading %s", s.NameOnDisk()))
	log.Debug().Str("op", "scheduler/run").Msgf("Starting %s from %d bytes", s.NameOnDisk(), s.BytesWritten())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	ticker := time.NewTicker(progressTick)
	defer ticker.Stop()
	lastRunning := true
	for {
		select {
		case err := <-done:
			if err != nil {
				log.Error().Str("op", "scheduler/run").Err(err).Msgf("Download of %s failed", s.NameOnDisk())
				reporter.ReportError(id, err)
				return err
			}
			reporter.SetProgress(id, s.BytesWritten(), s.Descriptor.ContentLength)
			reporter.Complete(id, fmt.Sprintf("Downloaded %s", s.NameOnDisk()))
			log.Info().Str("op", "scheduler/run").Msgf("Finished %s", s.Path())
			return nil
		case <-ticker.C:
			if running := s.Running(); running != lastRunning {
				lastRunning = running
				if running {
					reporter.SetStatus(id, "pending")
				} else {
					reporter.SetStatus(id, "paused")
				}
			}
			reporter.SetProgress(id, s.BytesWritten(), s.Descriptor.ContentLength)
		}
	}
}
