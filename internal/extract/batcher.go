package extract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tripstitch/tripstitch/internal/gap"
	"github.com/tripstitch/tripstitch/internal/mailbox"
)

// BatcherConfig tunes the extraction fan-out.
type BatcherConfig struct {
	// BatchSize is the number of emails per extraction call. The
	// production value 8 keeps each prompt under the per-minute token
	// budget.
	BatchSize int
	// BodyBudget caps each email body's characters inside a prompt
	// (production value 800).
	BodyBudget int
	// MaxRetries bounds retry attempts per batch on transient errors.
	MaxRetries int
	// InterBatchDelay is the pause enforced after every successful
	// batch, a proactive rate-limit control (production value 1s).
	// Unlike the other fields, zero is meaningful and disables pacing;
	// only a negative value selects the default. Start from
	// DefaultBatcherConfig to get the production delay.
	InterBatchDelay time.Duration
	// Concurrency caps batches in flight at once.
	Concurrency int
	// BackoffCeiling bounds a single backoff wait.
	BackoffCeiling time.Duration
}

// DefaultBatcherConfig returns the production tuning.
func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{
		BatchSize:       8,
		BodyBudget:      800,
		MaxRetries:      3,
		InterBatchDelay: time.Second,
		Concurrency:     2,
		BackoffCeiling:  30 * time.Second,
	}
}

func (c BatcherConfig) withDefaults() BatcherConfig {
	def := DefaultBatcherConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.BodyBudget <= 0 {
		c.BodyBudget = def.BodyBudget
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.InterBatchDelay < 0 {
		c.InterBatchDelay = def.InterBatchDelay
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.BackoffCeiling <= 0 {
		c.BackoffCeiling = def.BackoffCeiling
	}
	return c
}

// batchState tracks one batch through its retry lifecycle.
type batchState int

const (
	statePending batchState = iota
	stateSent
	stateSuccess
	stateTransientFailure
	statePermanentFailure
)

// BatchFailure records a batch that exhausted its retries or hit a
// permanent error. Reported, never fatal to the run.
type BatchFailure struct {
	BatchIndex int
	Attempts   int
	Err        error
}

// Output accumulates extraction results across all batches.
type Output struct {
	Candidates     []CandidateRecord
	Malformed      []error // schema-rejected records, dropped and logged
	BatchesTotal   int
	BatchesOK      int
	FailedBatches  []BatchFailure
	PermanentError error // credential-class failure that stopped dispatch
}

// Batcher partitions filtered emails into batches and runs extraction
// over them with bounded concurrency, retry/backoff, and inter-batch
// pacing. The shared rate-limit budget is protected only by the delay
// and the concurrency cap; no other coordination is needed.
type Batcher struct {
	client Completer
	cfg    BatcherConfig

	// sleep and jitter are swappable for tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// NewBatcher wires a batcher to the extraction capability.
func NewBatcher(client Completer, cfg BatcherConfig) *Batcher {
	return &Batcher{
		client: client,
		cfg:    cfg.withDefaults(),
		sleep:  sleepCtx,
		jitter: func() time.Duration { return time.Duration(rand.Int63n(int64(time.Second))) },
	}
}

// BackoffWait returns the base wait before retry attempt n (0-based):
// 2^attempt seconds plus jitter, capped at the ceiling. Exported so
// the timing discipline is testable without the network.
func (b *Batcher) BackoffWait(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	if base > b.cfg.BackoffCeiling {
		base = b.cfg.BackoffCeiling
	}
	wait := base + b.jitter()
	if wait > b.cfg.BackoffCeiling {
		wait = b.cfg.BackoffCeiling
	}
	return wait
}

// Run extracts candidate records from every batch of docs. Batch
// dispatch order does not matter; candidates are pooled and matched
// globally afterwards. A permanent API error stops further dispatch
// but already-collected candidates are kept.
func (b *Batcher) Run(ctx context.Context, docs []mailbox.EmailDocument, gaps []gap.Gap) Output {
	out := Output{}
	if len(docs) == 0 {
		return out
	}

	batches := partition(docs, b.cfg.BatchSize)
	out.BatchesTotal = len(batches)

	var mu sync.Mutex
	sem := semaphore.NewWeighted(int64(b.cfg.Concurrency))
	g, ctx := errgroup.WithContext(ctx)

	for i, batch := range batches {
		i, batch := i, batch
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			candidates, malformed, attempts, err := b.runBatch(ctx, i, batch, gaps)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.FailedBatches = append(out.FailedBatches, BatchFailure{BatchIndex: i, Attempts: attempts, Err: err})
				var perm *PermanentAPIError
				if errors.As(err, &perm) {
					out.PermanentError = err
					return err // cancels remaining dispatch via errgroup
				}
				return nil
			}
			out.BatchesOK++
			out.Candidates = append(out.Candidates, candidates...)
			out.Malformed = append(out.Malformed, malformed...)
			return nil
		})
	}

	_ = g.Wait()
	return out
}

// runBatch drives one batch through the retry state machine:
// Pending -> Sent -> (Success | TransientFailure -> Sent | PermanentFailure).
func (b *Batcher) runBatch(ctx context.Context, index int, batch []mailbox.EmailDocument, gaps []gap.Gap) ([]CandidateRecord, []error, int, error) {
	prompt := BuildPrompt(batch, gaps, b.cfg.BodyBudget)

	state := statePending
	attempts := 0
	var lastErr error

	for state != stateSuccess && state != statePermanentFailure {
		state = stateSent
		attempts++

		content, err := b.client.Complete(ctx, prompt)
		if err == nil {
			candidates, malformed := b.collect(content, batch)
			// Fixed pause after success keeps demand under the shared
			// rate-limit budget.
			if b.cfg.InterBatchDelay > 0 {
				_ = b.sleep(ctx, b.cfg.InterBatchDelay)
			}
			return candidates, malformed, attempts, nil
		}
		lastErr = err

		var transient *TransientAPIError
		switch {
		case errors.As(err, &transient):
			if attempts > b.cfg.MaxRetries {
				return nil, nil, attempts, fmt.Errorf("batch %d: retries exhausted: %w", index, lastErr)
			}
			state = stateTransientFailure
			wait := b.BackoffWait(attempts - 1)
			if transient.RetryAfter > wait {
				wait = transient.RetryAfter
			}
			if err := b.sleep(ctx, wait); err != nil {
				return nil, nil, attempts, err
			}
		default:
			state = statePermanentFailure
		}
	}

	return nil, nil, attempts, lastErr
}

// collect parses and validates a response; malformed records are
// dropped individually, never the whole batch.
func (b *Batcher) collect(content string, batch []mailbox.EmailDocument) ([]CandidateRecord, []error) {
	raw, err := ParseCandidates(content)
	if err != nil {
		return nil, []error{err}
	}

	fallbackSource := ""
	if len(batch) > 0 {
		fallbackSource = batch[0].SourceFile
	}

	var candidates []CandidateRecord
	var malformed []error
	for _, r := range raw {
		c, err := ValidateCandidate(r, fallbackSource)
		if err != nil {
			malformed = append(malformed, err)
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, malformed
}

func partition(docs []mailbox.EmailDocument, size int) [][]mailbox.EmailDocument {
	var batches [][]mailbox.EmailDocument
	for start := 0; start < len(docs); start += size {
		end := start + size
		if end > len(docs) {
			end = len(docs)
		}
		batches = append(batches, docs[start:end])
	}
	return batches
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
