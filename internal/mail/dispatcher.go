package mail

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/identity-service/internal/metrics"
)

type job struct {
	email, fullName, code string
}

// Dispatcher runs activation deliveries on a fixed pool of workers so the
// request path never waits on SMTP or the broker.  When the queue is full a
// job is dropped and logged.
type Dispatcher struct {
	notifier Notifier
	jobs     chan job
	timeout  time.Duration
	log      *zap.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines reading from a queue of size
// queueSize.
func NewDispatcher(n Notifier, workers, queueSize int, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		notifier: n,
		jobs:     make(chan job, queueSize),
		timeout:  timeout,
		log:      log.With(zap.String("component", "mail.dispatcher")),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// DeliverOTP queues a delivery and returns immediately.
func (d *Dispatcher) DeliverOTP(email, fullName, code string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("dispatcher closed, dropping activation mail", zap.String("to", email))
		metrics.MailJobs.WithLabelValues("dropped").Inc()
		return
	}
	select {
	case d.jobs <- job{email: email, fullName: fullName, code: code}:
		metrics.MailJobs.WithLabelValues("queued").Inc()
	default:
		d.log.Warn("mail queue full, dropping activation mail", zap.String("to", email))
		metrics.MailJobs.WithLabelValues("dropped").Inc()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.notifier.SendOTP(ctx, j.email, j.fullName, j.code)
		cancel()
		if err != nil {
			d.log.Error("activation mail failed", zap.String("to", j.email), zap.Error(err))
			metrics.MailJobs.WithLabelValues("failed").Inc()
			continue
		}
		metrics.MailJobs.WithLabelValues("sent").Inc()
	}
}

// Close stops accepting jobs and waits for queued ones, or for ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
