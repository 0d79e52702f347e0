package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	ErrMailQueueFull   = errors.New("mail queue full")
	ErrMailQueueClosed = errors.New("mail queue closed")
)

type Mail struct {
	To      string
	Subject string
	Body    string // HTML
}

// Transport delivers a single message
type Transport interface {
	Deliver(m Mail) error
}

type mailJob struct {
	mail Mail
	done chan error
}

// MailQueue hands outgoing mail to a fixed pool of workers so handlers
// don't hold an SMTP connection per request
type MailQueue struct {
	jobs      chan *mailJob
	running   atomic.Int32
	workers   int
	transport Transport

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// NewMailQueue sizes the queue from mail.workers and mail.queue_size
func NewMailQueue(t Transport) *MailQueue {
	workers := max(viper.GetInt("mail.workers"), 1)
	size := max(viper.GetInt("mail.queue_size"), 0)

	zap.L().Debug("Initializing mail queue", zap.Int("workers", workers), zap.Int("queue_size", size))

	return &MailQueue{
		jobs:      make(chan *mailJob, size),
		workers:   workers,
		transport: t,
		closed:    make(chan struct{}),
	}
}

func (q *MailQueue) StartWorkerPool() {
	for range q.workers {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *MailQueue) worker() {
	defer q.wg.Done()

	for {
		select {
		case job := <-q.jobs:
			q.run(job)
		case <-q.closed:
			return
		}
	}
}

func (q *MailQueue) run(job *mailJob) {
	err := q.transport.Deliver(job.mail)

	job.done <- err
	close(job.done)

	q.running.Add(-1)

	if err != nil {
		zap.L().Error("Failed to deliver mail",
			zap.String("to", job.mail.To),
			zap.String("subject", job.mail.Subject),
			zap.Error(err))
	} else {
		zap.L().Debug("Mail delivered", zap.String("to", job.mail.To))
	}
}

// Enqueue adds a message without waiting for delivery. The returned channel
// receives the delivery result.
func (q *MailQueue) Enqueue(m Mail) (<-chan error, error) {
	select {
	case <-q.closed:
		return nil, ErrMailQueueClosed
	default:
	}

	job := &mailJob{mail: m, done: make(chan error, 1)}

	select {
	case q.jobs <- job:
		q.running.Add(1)
		zap.L().Debug("New mail enqueued", zap.Int32("enqueued", q.running.Load()), zap.String("to", m.To))
		return job.done, nil
	default:
		return nil, ErrMailQueueFull
	}
}

// Send enqueues m and waits until it was delivered or ctx is done
func (q *MailQueue) Send(ctx context.Context, m Mail) error {
	done, err := q.Enqueue(m)
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued or in-flight messages
func (q *MailQueue) Pending() int32 {
	return q.running.Load()
}

// Close stops the workers. Queued mail that no worker picked up is dropped.
func (q *MailQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
	q.wg.Wait()
}
