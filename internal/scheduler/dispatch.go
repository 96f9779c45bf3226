package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"staywatch/internal/clock"
	"staywatch/internal/config"
	"staywatch/internal/fetch"
	"staywatch/internal/models"
	"staywatch/internal/ratelimit"
	"staywatch/internal/store"
)

// Dispatcher drains the task queue through the rate governor. Every fetch
// goes through Admit first; the governor decides when (or whether) the
// request may leave, and the outcome feeds back into its backoff state.
//
// Failure handling follows the error taxonomy: a blocked response requeues
// the task without consuming an attempt (the host needed cooling, the task
// did nothing wrong), transport errors retry with task-local backoff until
// MaxTaskAttempts, and parse errors fail the task permanently since the
// remote payload shape changed and retrying cannot fix that.
type Dispatcher struct {
	store    store.Store
	queue    *taskQueue
	runner   *Runner
	governor *ratelimit.Governor
	cfg      *config.Config
	clk      clock.Clock

	pollInterval time.Duration
	stopChan     chan struct{}
	wg           sync.WaitGroup

	mu      sync.Mutex
	running bool
}

func NewDispatcher(st store.Store, runner *Runner, gov *ratelimit.Governor, cfg *config.Config, clk clock.Clock) *Dispatcher {
	return &Dispatcher{
		store:        st,
		queue:        newTaskQueue(),
		runner:       runner,
		governor:     gov,
		cfg:          cfg,
		clk:          clk,
		pollInterval: 15 * time.Second,
		stopChan:     make(chan struct{}),
	}
}

// Start recovers orphaned tasks and launches the worker goroutines.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		log.Println("Dispatcher: Already running")
		return
	}
	d.running = true
	d.mu.Unlock()

	if n, err := d.store.ResetProcessingTasks(); err != nil {
		log.Printf("Dispatcher: Failed to recover processing tasks: %v", err)
	} else if n > 0 {
		log.Printf("Dispatcher: Recovered %d orphaned tasks", n)
	}

	workers := d.cfg.Scheduler.MaxConcurrency
	if workers < 1 {
		workers = 1
	}
	log.Printf("Dispatcher: Started (workers=%d, poll_interval=%v)", workers, d.pollInterval)

	d.wg.Add(1)
	go d.refillLoop()
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.workLoop(i)
	}
}

// Stop signals all loops and waits for in-flight tasks to settle.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	log.Println("Dispatcher: Stopping...")
	close(d.stopChan)
	d.wg.Wait()
	log.Println("Dispatcher: Stopped")
}

// Enqueue persists a task and hands it to the in-memory queue.
func (d *Dispatcher) Enqueue(task models.FetchTask) error {
	task.Status = models.TaskStatusProcessing
	if err := d.store.SaveTask(&task); err != nil {
		return err
	}
	d.queue.Push(task)
	return nil
}

// QueueDepth reports how many tasks are waiting in memory.
func (d *Dispatcher) QueueDepth() int {
	return d.queue.Len()
}

// refillLoop pulls pending and retry-due rows from the database into the
// dispatch queue.
func (d *Dispatcher) refillLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	d.refill()
	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.refill()
		}
	}
}

func (d *Dispatcher) refill() {
	tasks, err := d.store.ReadyTasks(d.clk.Now(), 200)
	if err != nil {
		log.Printf("Dispatcher: Failed to load ready tasks: %v", err)
		return
	}
	for i := range tasks {
		task := tasks[i]
		task.Status = models.TaskStatusProcessing
		if err := d.store.SaveTask(&task); err != nil {
			log.Printf("Dispatcher: Failed to claim task %d: %v", task.ID, err)
			continue
		}
		d.queue.Push(task)
	}
}

func (d *Dispatcher) workLoop(id int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopChan:
			return
		default:
		}

		task, ok := d.queue.Pop(d.clk.Now())
		if !ok {
			select {
			case <-d.stopChan:
				return
			case <-time.After(time.Second):
			}
			continue
		}
		d.execute(&task)
	}
}

// execute runs one task through the governor and settles its outcome.
func (d *Dispatcher) execute(task *models.FetchTask) {
	decision := d.governor.Admit(task.Host)
	if !decision.Allowed {
		retry := d.clk.Now().Add(decision.Cooldown)
		log.Printf("Dispatcher: Host %s cooling, task %d requeued for %s",
			task.Host, task.ID, retry.Format(time.RFC3339))
		d.queue.PushAfter(*task, retry)
		return
	}
	if wait := decision.ProceedAt.Sub(d.clk.Now()); wait > 0 {
		d.clk.Sleep(wait)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Scheduler.GetFetchTimeout())
	err := d.runner.Run(ctx, task)
	cancel()

	outcome := fetch.GovernorOutcome(err)
	d.governor.Report(task.Host, outcome)

	switch {
	case err == nil:
		d.settleSuccess(task)
	case fetch.IsBlocked(err):
		d.settleBlocked(task, err)
	case fetch.IsParse(err):
		d.settlePermanent(task, fmt.Sprintf("payload shape changed: %v", err))
	default:
		d.settleRetryable(task, err)
	}
}

func (d *Dispatcher) settleSuccess(task *models.FetchTask) {
	now := d.clk.Now()
	task.Status = models.TaskStatusDone
	task.LastError = ""
	task.NextRetryAt = nil
	task.CompletedAt = &now
	if err := d.store.SaveTask(task); err != nil {
		log.Printf("Dispatcher: Failed to save task %d: %v", task.ID, err)
	}
	d.bumpCrawlLog(task, 1, 1, 0, 0)
}

// settleBlocked requeues without consuming an attempt. The next dispatch of
// this host waits out the governor's suspension.
func (d *Dispatcher) settleBlocked(task *models.FetchTask, cause error) {
	task.LastError = cause.Error()
	if err := d.store.SaveTask(task); err != nil {
		log.Printf("Dispatcher: Failed to save task %d: %v", task.ID, err)
	}
	retry := d.clk.Now().Add(d.cfg.Governor.GetCooldown())
	log.Printf("Dispatcher: Task %d blocked (%v), requeued for %s",
		task.ID, cause, retry.Format(time.RFC3339))
	d.queue.PushAfter(*task, retry)
	d.bumpCrawlLog(task, 1, 0, 0, 1)
}

func (d *Dispatcher) settleRetryable(task *models.FetchTask, cause error) {
	task.Attempts++
	task.LastError = cause.Error()

	if task.Attempts >= models.MaxTaskAttempts {
		log.Printf("Dispatcher: Task %d exhausted retries (%d attempts): %v",
			task.ID, task.Attempts, cause)
		d.settlePermanent(task, fmt.Sprintf("retries exhausted after %d attempts: %v", task.Attempts, cause))
		return
	}

	delay := models.NextRetryDelay(task.Attempts - 1)
	retry := d.clk.Now().Add(delay)
	task.Status = models.TaskStatusFailed
	task.NextRetryAt = &retry
	if err := d.store.SaveTask(task); err != nil {
		log.Printf("Dispatcher: Failed to save task %d: %v", task.ID, err)
	}
	log.Printf("Dispatcher: Task %d failed (attempt %d/%d), retry in %v: %v",
		task.ID, task.Attempts, models.MaxTaskAttempts, delay, cause)
	d.bumpCrawlLog(task, 1, 0, 1, 0)
}

func (d *Dispatcher) settlePermanent(task *models.FetchTask, reason string) {
	now := d.clk.Now()
	task.Status = models.TaskStatusPermanentFail
	task.LastError = reason
	task.NextRetryAt = nil
	task.CompletedAt = &now
	if err := d.store.SaveTask(task); err != nil {
		log.Printf("Dispatcher: Failed to save task %d: %v", task.ID, err)
	}
	d.bumpCrawlLog(task, 1, 0, 1, 0)
}

// bumpCrawlLog updates the owning run's counters and closes the run when
// its last task settles.
func (d *Dispatcher) bumpCrawlLog(task *models.FetchTask, total, success, failed, blocked int) {
	if task.CrawlLogID == nil {
		return
	}
	logID := *task.CrawlLogID
	if err := d.store.AddCrawlCounts(logID, total, success, failed, blocked); err != nil {
		log.Printf("Dispatcher: Failed to update crawl log %d: %v", logID, err)
		return
	}

	open, err := d.store.OpenTasksForLog(logID)
	if err != nil || open > 0 {
		return
	}
	d.closeCrawlLog(logID)
}

func (d *Dispatcher) closeCrawlLog(logID uint) {
	l, err := d.store.GetCrawlLog(logID)
	if err != nil {
		log.Printf("Dispatcher: Failed to load crawl log %d: %v", logID, err)
		return
	}
	if l.FinishedAt != nil {
		return
	}

	now := d.clk.Now()
	l.FinishedAt = &now
	switch {
	case l.FailedRequests == 0:
		l.Status = models.CrawlStatusSuccess
	case l.SuccessfulRequests > 0:
		l.Status = models.CrawlStatusPartial
	default:
		l.Status = models.CrawlStatusFailed
	}
	if err := d.store.SaveCrawlLog(l); err != nil {
		log.Printf("Dispatcher: Failed to close crawl log %d: %v", logID, err)
		return
	}
	log.Printf("Dispatcher: Crawl log %d closed: %s (total=%d ok=%d failed=%d blocked=%d)",
		logID, l.Status, l.TotalRequests, l.SuccessfulRequests, l.FailedRequests, l.BlockedRequests)
}
