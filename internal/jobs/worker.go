package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor runs one maintenance pass.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker drives a JobProcessor on a fixed interval until stopped.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start blocks, running one pass immediately and then one per interval.
// Pass errors are logged and the loop keeps going.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneChan)

	log.Printf("jobs: worker polling every %v", w.pollInterval)
	w.runOnce(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("jobs: worker exiting, context cancelled")
			return
		case <-w.stopChan:
			log.Println("jobs: worker exiting, stop requested")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("jobs: pass failed: %v", err)
	}
}

// Stop signals the loop and waits for the in-flight pass to finish.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}
