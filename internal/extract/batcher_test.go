package extract

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tripstitch/tripstitch/internal/mailbox"
)

// fakeCompleter returns scripted responses in call order.
type fakeCompleter struct {
	mu        sync.Mutex
	responses []func() (string, error)
	calls     int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		return "[]", nil
	}
	return f.responses[i]()
}

func okResponse() (string, error) {
	return `[{"departure_country":"PH","departure_city":"Manila","departure_date":"2023-02-06","arrival_country":"MY","arrival_city":"Kuala Lumpur","arrival_date":"2023-02-06","notes":"Flight","source_file":"a.eml"}]`, nil
}

func instantBatcher(client Completer, cfg BatcherConfig) *Batcher {
	b := NewBatcher(client, cfg)
	b.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	b.jitter = func() time.Duration { return 0 }
	return b
}

func emails(n int) []mailbox.EmailDocument {
	docs := make([]mailbox.EmailDocument, n)
	for i := range docs {
		docs[i] = mailbox.EmailDocument{Subject: "flight", SourceFile: "a.eml", Body: "travel"}
	}
	return docs
}

func TestRunCollectsCandidates(t *testing.T) {
	client := &fakeCompleter{responses: []func() (string, error){okResponse}}
	b := instantBatcher(client, BatcherConfig{BatchSize: 8})

	out := b.Run(context.Background(), emails(3), nil)
	if out.BatchesTotal != 1 || out.BatchesOK != 1 {
		t.Fatalf("batches = %d total %d ok", out.BatchesTotal, out.BatchesOK)
	}
	if len(out.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(out.Candidates))
	}
	if out.Candidates[0].DepartureCity != "Manila" {
		t.Errorf("candidate = %+v", out.Candidates[0])
	}
}

func TestRunRetriesTransientThenSucceeds(t *testing.T) {
	client := &fakeCompleter{responses: []func() (string, error){
		func() (string, error) { return "", &TransientAPIError{StatusCode: 429} },
		func() (string, error) { return "", &TransientAPIError{StatusCode: 503} },
		okResponse,
	}}
	b := instantBatcher(client, BatcherConfig{BatchSize: 8, MaxRetries: 3})

	out := b.Run(context.Background(), emails(2), nil)
	if out.BatchesOK != 1 {
		t.Fatalf("BatchesOK = %d, want 1; failures: %v", out.BatchesOK, out.FailedBatches)
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want 3", client.calls)
	}
}

func TestRunReportsExhaustedBatchNonFatally(t *testing.T) {
	alwaysBusy := func() (string, error) { return "", &TransientAPIError{StatusCode: 429} }
	client := &fakeCompleter{responses: []func() (string, error){
		alwaysBusy, alwaysBusy, alwaysBusy, alwaysBusy, alwaysBusy, okResponse,
	}}
	// Batch size 1 over 2 docs: first batch burns 4 attempts (1 + 3
	// retries), second batch succeeds.
	b := instantBatcher(client, BatcherConfig{BatchSize: 1, MaxRetries: 3, Concurrency: 1})

	out := b.Run(context.Background(), emails(2), nil)
	if out.BatchesTotal != 2 {
		t.Fatalf("BatchesTotal = %d, want 2", out.BatchesTotal)
	}
	if len(out.FailedBatches) != 1 {
		t.Fatalf("FailedBatches = %d, want 1", len(out.FailedBatches))
	}
	if out.FailedBatches[0].Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", out.FailedBatches[0].Attempts)
	}
	if out.BatchesOK != 1 {
		t.Errorf("BatchesOK = %d, want 1 (failure must not poison the run)", out.BatchesOK)
	}
	if out.PermanentError != nil {
		t.Errorf("transient exhaustion must not be permanent: %v", out.PermanentError)
	}
}

func TestRunStopsOnPermanentError(t *testing.T) {
	unauthorized := func() (string, error) {
		return "", &PermanentAPIError{StatusCode: 401, Message: "bad key"}
	}
	client := &fakeCompleter{responses: []func() (string, error){
		unauthorized, unauthorized, unauthorized, unauthorized,
	}}
	b := instantBatcher(client, BatcherConfig{BatchSize: 1, Concurrency: 1})

	out := b.Run(context.Background(), emails(4), nil)
	if out.PermanentError == nil {
		t.Fatal("expected PermanentError")
	}
	var perm *PermanentAPIError
	if !errors.As(out.PermanentError, &perm) {
		t.Fatalf("PermanentError type = %T", out.PermanentError)
	}
	if out.BatchesOK != 0 {
		t.Errorf("BatchesOK = %d, want 0", out.BatchesOK)
	}
}

func TestBackoffWaitIncreasesAndCaps(t *testing.T) {
	b := NewBatcher(&fakeCompleter{}, BatcherConfig{BackoffCeiling: 30 * time.Second})
	b.jitter = func() time.Duration { return 0 }

	var prev time.Duration
	for attempt := 0; attempt < 4; attempt++ {
		wait := b.BackoffWait(attempt)
		if wait <= prev {
			t.Errorf("attempt %d: wait %v not greater than %v", attempt, wait, prev)
		}
		prev = wait
	}
	if got := b.BackoffWait(0); got != time.Second {
		t.Errorf("attempt 0 wait = %v, want 1s", got)
	}
	if got := b.BackoffWait(10); got != 30*time.Second {
		t.Errorf("attempt 10 wait = %v, want ceiling 30s", got)
	}
}

func TestRunRespectsRetryAfter(t *testing.T) {
	client := &fakeCompleter{responses: []func() (string, error){
		func() (string, error) {
			return "", &TransientAPIError{StatusCode: 429, RetryAfter: 5 * time.Second}
		},
		okResponse,
	}}

	var waits []time.Duration
	b := NewBatcher(client, BatcherConfig{BatchSize: 8, MaxRetries: 3, InterBatchDelay: 0})
	b.jitter = func() time.Duration { return 0 }
	b.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	out := b.Run(context.Background(), emails(1), nil)
	if out.BatchesOK != 1 {
		t.Fatalf("BatchesOK = %d", out.BatchesOK)
	}
	if len(waits) == 0 || waits[0] != 5*time.Second {
		t.Errorf("waits = %v, want first wait 5s (Retry-After beats backoff)", waits)
	}
}

func TestRunEmptyInput(t *testing.T) {
	b := instantBatcher(&fakeCompleter{}, BatcherConfig{})
	out := b.Run(context.Background(), nil, nil)
	if out.BatchesTotal != 0 || len(out.Candidates) != 0 {
		t.Errorf("empty input produced %+v", out)
	}
}

func TestBatcherConfigDefaults(t *testing.T) {
	got := BatcherConfig{}.withDefaults()
	want := DefaultBatcherConfig()
	if got.BatchSize != want.BatchSize || got.BodyBudget != want.BodyBudget ||
		got.Concurrency != want.Concurrency || got.BackoffCeiling != want.BackoffCeiling {
		t.Errorf("withDefaults() = %+v, want defaults %+v", got, want)
	}
	if got.InterBatchDelay != 0 {
		t.Errorf("InterBatchDelay = %v, want 0 (zero disables pacing)", got.InterBatchDelay)
	}

	neg := BatcherConfig{InterBatchDelay: -1}.withDefaults()
	if neg.InterBatchDelay != want.InterBatchDelay {
		t.Errorf("negative InterBatchDelay = %v, want default %v", neg.InterBatchDelay, want.InterBatchDelay)
	}
}

func TestPartition(t *testing.T) {
	batches := partition(emails(10), 4)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	if len(batches[2]) != 2 {
		t.Errorf("last batch size = %d, want 2", len(batches[2]))
	}
}
