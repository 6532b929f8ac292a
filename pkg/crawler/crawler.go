package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"spiderbot/pkg/config"
	"spiderbot/pkg/extract"
	"spiderbot/pkg/fetch"
	"spiderbot/pkg/frontier"
	"spiderbot/pkg/models"
	"spiderbot/pkg/parse"
	"spiderbot/pkg/scope"
	"spiderbot/pkg/store"
	"spiderbot/pkg/utils"
)

// Crawler owns the worker pool lifecycle: it seeds the frontier from the
// seed URL and from persisted state on resume, runs the configured number of
// workers until the frontier drains or a stop is requested, and exposes
// progress counters and a per-fetch event stream to the (external)
// presentation layer
type Crawler struct {
	log     *logrus.Logger
	cfg     *config.Config
	store   store.RecordStore
	fetcher fetch.PageFetcher
	limiter *fetch.Limiter
	filter  *scope.Filter
	sem     *semaphore.Weighted // Global cap on concurrent HTTP requests

	// Lifetime counters, reset only by Clear
	queued        atomic.Int64
	visited       atomic.Int64
	activeWorkers atomic.Int64

	events chan models.Event

	mu       sync.Mutex // Guards lifecycle state below
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	frontier *frontier.Frontier // Non-nil while a run exists
}

// run bundles the per-Start coordination state
type run struct {
	frontier *frontier.Frontier
	taskWG   sync.WaitGroup // One slot per URL admitted to the frontier
	workerWG sync.WaitGroup // One slot per worker goroutine

	abortedMu sync.Mutex
	aborted   []string // Dequeued but unfetched URLs (stop hit mid-throttle)
}

func (r *run) addAborted(rawURL string) {
	r.abortedMu.Lock()
	r.aborted = append(r.aborted, rawURL)
	r.abortedMu.Unlock()
}

func (r *run) takeAborted() []string {
	r.abortedMu.Lock()
	defer r.abortedMu.Unlock()
	aborted := r.aborted
	r.aborted = nil
	return aborted
}

// New validates the configuration and builds a Crawler.
// Returns utils.ErrInvalidConfiguration (wrapped) before any worker starts
// when the config is unusable
func New(cfg *config.Config, recordStore store.RecordStore, fetcher fetch.PageFetcher, logger *logrus.Logger) (*Crawler, error) {
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		logger.Warn(w)
	}
	if err != nil {
		return nil, err
	}

	return &Crawler{
		log:     logger,
		cfg:     cfg,
		store:   recordStore,
		fetcher: fetcher,
		limiter: fetch.NewLimiter(cfg.Delay, logger),
		filter:  scope.New(cfg.SeedHost(), cfg.Restricted(), cfg.DomainScope),
		sem:     semaphore.NewWeighted(int64(cfg.MaxInflight)),
		events:  make(chan models.Event, cfg.EventBufferSize),
	}, nil
}

// Events returns the per-fetch outcome stream. Sends never block the
// workers: when the consumer lags, events are dropped, not queued
func (c *Crawler) Events() <-chan models.Event {
	return c.events
}

// Progress returns the current crawl counters
func (c *Crawler) Progress() models.Progress {
	c.mu.Lock()
	f := c.frontier
	c.mu.Unlock()

	var pending int64
	if f != nil {
		pending = int64(f.Len())
	}
	return models.Progress{
		Queued:        c.queued.Load(),
		Pending:       pending,
		Visited:       c.visited.Load(),
		ActiveWorkers: c.activeWorkers.Load(),
	}
}

// Running reports whether a crawl is in progress
func (c *Crawler) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start seeds the frontier and spawns the worker pool, returning
// immediately while workers run. Prior records are loaded so a resumed
// crawl never refetches; a frontier snapshot left by an interrupted run is
// requeued so discovered-but-unfetched links are not lost
func (c *Crawler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return utils.ErrCrawlerRunning
	}

	crawlID := uuid.NewString()
	runLog := c.log.WithFields(logrus.Fields{"crawl_id": crawlID[:8], "seed": c.cfg.SeedURL})

	r := &run{frontier: frontier.New(c.log)}

	// --- Resume: seed SeenSet from prior records ---
	records, err := c.store.LoadRecords()
	if err != nil {
		return fmt.Errorf("loading prior records: %w", err)
	}
	for _, rec := range records {
		r.frontier.MarkSeen(rec.URL)
	}
	if len(records) > 0 {
		runLog.Infof("Resume: seeded %d previously visited URLs", len(records))
	}

	// --- Resume: requeue the frontier snapshot of an interrupted run ---
	pending, err := c.store.LoadPending()
	if err != nil {
		runLog.Warnf("Could not load frontier snapshot, continuing without it: %v", err)
	}
	requeued := 0
	for _, raw := range pending {
		normalized, _, parseErr := parse.ParseAndNormalize(raw)
		if parseErr != nil {
			runLog.Warnf("Skipping malformed snapshot entry '%s': %v", raw, parseErr)
			continue
		}
		if r.frontier.Offer(normalized) {
			r.taskWG.Add(1)
			c.queued.Add(1)
			requeued++
		}
	}
	if requeued > 0 {
		runLog.Infof("Resume: requeued %d pending URLs", requeued)
	}

	// --- Seed URL (no-op if already visited in a prior run) ---
	seedNormalized, _, err := parse.ParseAndNormalize(c.cfg.SeedURL)
	if err != nil {
		return fmt.Errorf("%w: seed_url '%s': %v", utils.ErrInvalidConfiguration, c.cfg.SeedURL, err)
	}
	if r.frontier.Offer(seedNormalized) {
		r.taskWG.Add(1)
		c.queued.Add(1)
	} else {
		runLog.Info("Seed URL already visited; continuing from prior discovery state")
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	done := make(chan struct{})

	// --- Workers ---
	runLog.Infof("Crawl starting with %d worker(s), delay %v", c.cfg.MaxWorkers, c.cfg.Delay)
	for i := 1; i <= c.cfg.MaxWorkers; i++ {
		r.workerWG.Add(1)
		workerLog := runLog.WithField("worker_id", i)
		go c.worker(runCtx, r, workerLog)
	}

	// --- Waiter: closes the frontier when all admitted URLs are done or
	// the run is cancelled, waking every blocked worker ---
	go func() {
		tasksDone := make(chan struct{})
		go func() {
			r.taskWG.Wait()
			close(tasksDone)
		}()
		select {
		case <-tasksDone:
			runLog.Info("Frontier drained, closing")
		case <-runCtx.Done():
			runLog.Warnf("Crawl cancelled: %v", runCtx.Err())
		}
		r.frontier.Close()
	}()

	// --- Finisher: after all workers exit, snapshot undone work ---
	go func() {
		r.workerWG.Wait()

		// Release task slots for URLs that never reached a worker so the
		// waiter's taskWG.Wait goroutine can exit
		undone := r.frontier.DrainPending()
		for range undone {
			r.taskWG.Done()
		}
		undone = append(undone, r.takeAborted()...)

		if err := c.store.SavePending(undone); err != nil {
			runLog.Errorf("Failed to persist frontier snapshot (%d URLs may be refound on next run): %v", len(undone), err)
		} else if len(undone) > 0 {
			runLog.Infof("Persisted frontier snapshot with %d pending URLs", len(undone))
		}

		progress := c.Progress()
		runLog.Infof("Crawl finished: visited=%d queued=%d pending=%d", progress.Visited, progress.Queued, len(undone))
		c.emit(models.Event{Type: models.EventStopped, Time: time.Now()})

		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		close(done)
	}()

	c.frontier = r.frontier
	c.cancel = cancelRun
	c.done = done
	c.running = true
	return nil
}

// Stop broadcasts the stop signal and blocks until every worker has
// finished recording its in-flight fetch and exited, bounded by the
// configured stop timeout. Idempotent; returns nil when nothing is running
func (c *Crawler) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-time.After(c.cfg.StopTimeout):
		return fmt.Errorf("timed out after %v waiting for workers to stop", c.cfg.StopTimeout)
	}
}

// Wait blocks until the current crawl drains or the context expires.
// Returns immediately when no crawl is running
func (c *Crawler) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear empties the persistence store and resets all discovery state and
// counters. Only valid while stopped
func (c *Crawler) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return utils.ErrCrawlerNotStopped
	}
	if err := c.store.Clear(); err != nil {
		return err
	}
	c.queued.Store(0)
	c.visited.Store(0)
	c.frontier = nil
	c.cancel = nil
	c.done = nil
	c.log.Info("Storage cleared, crawl state reset")
	return nil
}

// worker runs the loop for a single worker goroutine:
// dequeue, politeness wait, fetch, record, offer discovered links.
// It exits on the stop signal (checked before each dequeue) or when the
// frontier is closed and drained
func (c *Crawler) worker(ctx context.Context, r *run, workerLog *logrus.Entry) {
	defer r.workerWG.Done()
	workerLog.Debug("Worker starting")
	defer workerLog.Debug("Worker finished")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rawURL, ok := r.frontier.Take()
		if !ok {
			return
		}
		c.processURL(ctx, r, rawURL, workerLog)
	}
}

// processURL handles one dequeued URL end to end. Every fetch attempt
// produces exactly one record, success or failure; per-URL failures never
// terminate the worker
func (c *Crawler) processURL(ctx context.Context, r *run, rawURL string, workerLog *logrus.Entry) {
	defer r.taskWG.Done()
	c.activeWorkers.Add(1)
	defer c.activeWorkers.Add(-1)

	taskLog := workerLog.WithField("url", rawURL)

	// THROTTLE: per-worker politeness delay before the request
	if err := c.limiter.Wait(ctx); err != nil {
		r.addAborted(rawURL) // Not fetched; keep it for the snapshot
		return
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		r.addAborted(rawURL)
		return
	}

	result, fetchErr := c.fetcher.Fetch(ctx, rawURL)
	c.sem.Release(1)

	if fetchErr != nil && (errors.Is(fetchErr, context.Canceled) || ctx.Err() != nil) {
		// Stop signal interrupted the fetch: no outcome to record
		r.addAborted(rawURL)
		return
	}

	// RECORDING: one record per fetch attempt, regardless of outcome
	var status models.RecordStatus
	category := "None"
	if fetchErr != nil {
		status = models.StatusError
		category = utils.CategorizeError(fetchErr)
		taskLog.WithField("category", category).Warnf("Fetch failed: %v", fetchErr)
	} else {
		status = models.StatusFromCode(result.StatusCode)
	}

	record := models.NewCrawlRecord(rawURL, status)
	if err := c.store.Append(record); err != nil {
		// Crawl liveness outweighs single-record durability
		taskLog.Errorf("Record lost, continuing: %v", err)
	}
	c.visited.Add(1)

	// Offer discovered links from successful HTML responses
	linksQueued := 0
	if fetchErr == nil && status.IsSuccess() && len(result.Body) > 0 {
		base := result.FinalURL
		if base == nil {
			base, _ = url.Parse(rawURL)
		}
		for _, link := range extract.Links(result.Body, base, taskLog) {
			if !c.filter.AdmissibleRawURL(link) {
				continue
			}
			if r.frontier.Offer(link) {
				r.taskWG.Add(1)
				c.queued.Add(1)
				linksQueued++
			} else if ctx.Err() != nil && r.frontier.MarkSeen(link) {
				// The stop signal closed the frontier mid-fetch; keep the
				// discovery for the snapshot instead of losing it
				r.addAborted(link)
			}
		}
	}

	eventType := models.EventFetched
	if status.IsError() {
		eventType = models.EventFailed
	}
	c.emit(models.Event{
		Type:     eventType,
		URL:      rawURL,
		Status:   status,
		Category: category,
		Links:    linksQueued,
		Time:     record.Timestamp,
	})
	taskLog.WithFields(logrus.Fields{"status": status, "links_queued": linksQueued}).Info("Crawled")
}

// emit publishes an event without ever blocking a worker
func (c *Crawler) emit(event models.Event) {
	select {
	case c.events <- event:
	default:
		c.log.Debug("Event buffer full, dropping event")
	}
}
