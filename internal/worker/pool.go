package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/smart-todo/internal/model"
	"github.com/BuzzLyutic/smart-todo/internal/repo"
)

// Suggester produces subtasks for a todo text.
type Suggester interface {
	Suggest(ctx context.Context, task string) ([]string, error)
}

// Pool drains the suggestion job queue in the background.
type Pool struct {
	queue     repo.SuggestionQueue
	suggester Suggester
	logger    *zap.Logger
	count     int
	interval  time.Duration
	wg        sync.WaitGroup
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewPool(queue repo.SuggestionQueue, suggester Suggester, logger *zap.Logger, count int, interval time.Duration) *Pool {
	if interval <= 0 {
		interval = time.Second
	}
	return &Pool{
		queue:     queue,
		suggester: suggester,
		logger:    logger,
		count:     count,
		interval:  interval,
		stop:      make(chan struct{}),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting suggestion worker pool", zap.Int("workers", p.count))

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("Stopping suggestion worker pool...")
		close(p.stop)
		p.wg.Wait()
		p.logger.Info("Suggestion worker pool stopped")
	})
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Разбираем очередь, пока есть задания
			for {
				select {
				case <-p.stop:
					return
				case <-ctx.Done():
					return
				default:
				}

				err := p.processNext(ctx, id)
				if errors.Is(err, repo.ErrorNotFound) {
					break
				}
				if err != nil {
					p.logger.Error("worker error", zap.Int("worker", id), zap.Error(err))
					break
				}
			}
		}
	}
}

func (p *Pool) processNext(ctx context.Context, workerID int) error {
	job, err := p.queue.ClaimSuggestionJob(ctx)
	if err != nil {
		return err
	}

	p.logger.Info("Processing suggestion job",
		zap.Int("worker", workerID),
		zap.String("job_id", job.ID),
		zap.Int64("todo_id", job.TodoID),
	)

	started := time.Now()
	suggestions, err := p.suggester.Suggest(ctx, job.Text)
	if err != nil {
		p.release(job)
		return err
	}

	if err := p.queue.CompleteSuggestionJob(ctx, job, suggestions); err != nil {
		p.release(job)
		return err
	}

	p.logger.Info("Suggestion job completed",
		zap.Int("worker", workerID),
		zap.String("job_id", job.ID),
		zap.Int("suggestions", len(suggestions)),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

// release вернуть задание в очередь даже если ctx уже отменен
func (p *Pool) release(job model.SuggestionJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.queue.ReleaseSuggestionJob(ctx, job); err != nil {
		p.logger.Error("release suggestion job", zap.String("job_id", job.ID), zap.Error(err))
	}
}
