package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const workerQueueSize = 16

// UpdateSource is the long-polling part of the Bot API
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poller receives updates by long polling and handles them on a fixed set of
// workers. Updates from one chat always go to the same worker, so a user's
// messages are handled in the order they were sent.
type Poller struct {
	source     UpdateSource
	dispatcher *Dispatcher
	workers    int
	timeout    time.Duration
	logger     *zap.Logger
}

// NewPoller creates a new poller
func NewPoller(source UpdateSource, dispatcher *Dispatcher, workers int, timeout time.Duration, logger *zap.Logger) *Poller {
	if workers < 1 {
		workers = 1
	}
	return &Poller{
		source:     source,
		dispatcher: dispatcher,
		workers:    workers,
		timeout:    timeout,
		logger:     logger,
	}
}

// Run polls until ctx is cancelled, then handles updates still buffered by the
// library and waits for in-flight ones.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = int(p.timeout / time.Second)
	updates := p.source.GetUpdatesChan(cfg)

	// Updates already accepted finish even after shutdown begins.
	workCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	queues := make([]chan tgbotapi.Update, p.workers)
	for i := range queues {
		queue := make(chan tgbotapi.Update, workerQueueSize)
		queues[i] = queue
		g.Go(func() error {
			for update := range queue {
				p.dispatcher.Dispatch(workCtx, update)
			}
			return nil
		})
	}

	p.logger.Info("Polling Telegram for updates",
		zap.Int("workers", p.workers),
		zap.Duration("poll_timeout", p.timeout),
	)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			p.source.StopReceivingUpdates()
			p.drain(updates, queues)
			break loop
		case update, ok := <-updates:
			if !ok {
				runErr = fmt.Errorf("telegram update channel closed")
				break loop
			}
			queues[p.workerFor(update)] <- update
		}
	}

	for _, queue := range queues {
		close(queue)
	}
	if err := g.Wait(); err != nil {
		return err
	}
	p.logger.Info("Telegram polling stopped")
	return runErr
}

// drain queues the updates the library fetched before it stopped. Telegram
// has already counted them as delivered.
func (p *Poller) drain(updates tgbotapi.UpdatesChannel, queues []chan tgbotapi.Update) {
	drained := 0
	for update := range updates {
		queues[p.workerFor(update)] <- update
		drained++
	}
	if drained > 0 {
		p.logger.Info("Queued buffered updates after stop", zap.Int("count", drained))
	}
}

func (p *Poller) workerFor(update tgbotapi.Update) int {
	return int(uint64(chatKey(update)) % uint64(p.workers))
}
