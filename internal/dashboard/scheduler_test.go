package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mitienda/client/internal/daterange"
	"mitienda/client/internal/domain"
	"mitienda/client/internal/port"
)

type gatedLister struct {
	mu      sync.Mutex
	calls   int
	filters []domain.TransactionFilter
	results [][]domain.Transaction
	err     error
	block   bool
	release chan struct{}
}

func newGatedLister() *gatedLister {
	return &gatedLister{release: make(chan struct{})}
}

func (l *gatedLister) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	l.mu.Lock()
	l.calls++
	l.filters = append(l.filters, filter)
	var result []domain.Transaction
	if len(l.results) > 0 {
		result = l.results[0]
		l.results = l.results[1:]
	}
	err := l.err
	block := l.block
	l.mu.Unlock()

	if block {
		<-l.release
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *gatedLister) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *gatedLister) setErr(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

func (l *gatedLister) queue(result []domain.Transaction) {
	l.mu.Lock()
	l.results = append(l.results, result)
	l.mu.Unlock()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func tx(id int64, kind domain.TransactionType, amount float64, date time.Time) domain.Transaction {
	return domain.Transaction{ID: id, Type: kind, Amount: amount, TransactionDate: date}
}

func TestStartFetchesAndAppliesTotals(t *testing.T) {
	lister := newGatedLister()
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	lister.queue([]domain.Transaction{
		tx(1, domain.TxIncome, 100.10, base),
		tx(2, domain.TxIncome, 50.15, base.Add(time.Hour)),
		tx(3, domain.TxExpense, 30.05, base.Add(2*time.Hour)),
	})

	s := NewScheduler(lister)
	applied := make(chan domain.AggregationState, 4)
	s.Subscribe(func(state domain.AggregationState) { applied <- state })

	s.Start(time.Hour, 5*time.Millisecond, Filter{})
	defer s.Stop()

	var state domain.AggregationState
	select {
	case state = <-applied:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for initial state")
	}

	if len(state.Transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(state.Transactions))
	}
	if state.Transactions[0].ID != 3 {
		t.Fatalf("expected newest-first order, got id %d first", state.Transactions[0].ID)
	}
	if state.Totals.Income != 150.25 || state.Totals.Expense != 30.05 || state.Totals.Net != 120.20 {
		t.Fatalf("unexpected totals: %+v", state.Totals)
	}
}

func TestTriggersDuringFetchCoalesceToOneFollowUp(t *testing.T) {
	lister := newGatedLister()
	lister.mu.Lock()
	lister.block = true
	lister.mu.Unlock()

	s := NewScheduler(lister)
	s.Start(time.Hour, 5*time.Millisecond, Filter{})
	defer s.Stop()

	waitFor(t, "initial fetch", func() bool { return lister.callCount() == 1 })

	// A burst of triggers while the first fetch is still in flight.
	for i := 0; i < 5; i++ {
		s.Refresh()
	}
	// Let the debounce window close and the trigger land as pending.
	time.Sleep(50 * time.Millisecond)

	lister.release <- struct{}{}
	waitFor(t, "coalesced follow-up", func() bool { return lister.callCount() == 2 })
	lister.release <- struct{}{}

	// No third fetch: the burst collapsed into exactly one follow-up.
	time.Sleep(100 * time.Millisecond)
	if got := lister.callCount(); got != 2 {
		t.Fatalf("expected exactly 2 fetches, got %d", got)
	}
}

func TestFilterChangeDiscardsInFlightResult(t *testing.T) {
	lister := newGatedLister()
	lister.mu.Lock()
	lister.block = true
	lister.mu.Unlock()
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	lister.queue([]domain.Transaction{tx(1, domain.TxIncome, 999, now)})
	lister.queue([]domain.Transaction{tx(2, domain.TxExpense, 42, now)})

	s := NewScheduler(lister)
	var mu sync.Mutex
	var seen []domain.AggregationState
	s.Subscribe(func(state domain.AggregationState) {
		mu.Lock()
		seen = append(seen, state)
		mu.Unlock()
	})

	s.Start(time.Hour, 5*time.Millisecond, Filter{})
	defer s.Stop()
	waitFor(t, "initial fetch", func() bool { return lister.callCount() == 1 })

	// Supersede the in-flight fetch, then let it finish with stale data.
	s.SetFilter(Filter{Type: domain.TxExpense, Mode: daterange.Last30Days})
	time.Sleep(50 * time.Millisecond)
	lister.release <- struct{}{}

	waitFor(t, "follow-up fetch", func() bool { return lister.callCount() == 2 })
	lister.release <- struct{}{}

	waitFor(t, "fresh state", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Fatalf("expected exactly 1 applied state, got %d", len(seen))
	}
	if seen[0].Transactions[0].ID != 2 {
		t.Fatalf("expected the post-filter result to win, got id %d", seen[0].Transactions[0].ID)
	}
	if s.State().Transactions[0].ID != 2 {
		t.Fatalf("expected scheduler state from the fresh fetch")
	}
}

func TestFetchFailurePreservesPriorState(t *testing.T) {
	lister := newGatedLister()
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	lister.queue([]domain.Transaction{tx(1, domain.TxIncome, 100, now)})

	s := NewScheduler(lister)
	applied := make(chan domain.AggregationState, 4)
	s.Subscribe(func(state domain.AggregationState) { applied <- state })
	errs := make(chan error, 4)
	s.OnError(func(err error) { errs <- err })

	s.Start(time.Hour, 5*time.Millisecond, Filter{})
	defer s.Stop()

	select {
	case <-applied:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for initial state")
	}

	lister.setErr(errors.New("backend down"))
	s.Refresh()

	select {
	case err := <-errs:
		if !errors.Is(err, port.ErrRequestFailed) {
			t.Fatalf("expected ErrRequestFailed, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for fetch error")
	}

	state := s.State()
	if len(state.Transactions) != 1 || state.Transactions[0].ID != 1 {
		t.Fatalf("expected prior state preserved, got %+v", state)
	}
}

func TestSilentTriggersSkipLoadingIndicator(t *testing.T) {
	lister := newGatedLister()
	s := NewScheduler(lister)

	var mu sync.Mutex
	var toggles []bool
	s.OnLoading(func(v bool) {
		mu.Lock()
		toggles = append(toggles, v)
		mu.Unlock()
	})

	s.Start(time.Hour, 5*time.Millisecond, Filter{})
	defer s.Stop()
	waitFor(t, "initial fetch", func() bool { return lister.callCount() == 1 })

	// The initial foreground fetch toggles the indicator on and off.
	waitFor(t, "loading toggles", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(toggles) == 2
	})

	// A background/foreground round trip performs a silent catch-up fetch.
	s.EnterBackground()
	s.EnterForeground()
	waitFor(t, "resume fetch", func() bool { return lister.callCount() == 2 })
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(toggles) != 2 {
		t.Fatalf("expected no extra loading toggles for silent fetch, got %v", toggles)
	}
}

func TestBackgroundSwallowsTriggers(t *testing.T) {
	lister := newGatedLister()
	s := NewScheduler(lister)
	s.Start(time.Hour, 5*time.Millisecond, Filter{})
	defer s.Stop()
	waitFor(t, "initial fetch", func() bool { return lister.callCount() == 1 })

	s.EnterBackground()
	s.Refresh()
	s.Refresh()
	time.Sleep(100 * time.Millisecond)

	if got := lister.callCount(); got != 1 {
		t.Fatalf("expected no fetches while backgrounded, got %d", got)
	}
}

func TestRelativeRangeResolvesFromNow(t *testing.T) {
	lister := newGatedLister()
	s := NewScheduler(lister)
	loc := time.UTC
	now := time.Date(2025, 1, 15, 14, 30, 0, 0, loc)
	s.SetClock(func() time.Time { return now })

	s.Start(time.Hour, 5*time.Millisecond, Filter{Mode: daterange.Last7Days})
	defer s.Stop()
	waitFor(t, "initial fetch", func() bool { return lister.callCount() == 1 })

	lister.mu.Lock()
	filter := lister.filters[0]
	lister.mu.Unlock()

	wantStart := time.Date(2025, 1, 9, 0, 0, 0, 0, loc)
	if !filter.Start.Equal(wantStart) {
		t.Fatalf("expected start %v, got %v", wantStart, filter.Start)
	}
	if filter.End.Day() != 15 || filter.End.Hour() != 23 || filter.End.Minute() != 59 || filter.End.Second() != 59 {
		t.Fatalf("expected end of today, got %v", filter.End)
	}
}

func TestPeriodicTimerKeepsFetching(t *testing.T) {
	lister := newGatedLister()
	s := NewScheduler(lister)
	s.Start(30*time.Millisecond, 5*time.Millisecond, Filter{})
	defer s.Stop()

	waitFor(t, "several timer fetches", func() bool { return lister.callCount() >= 3 })
}

func TestStopIsIdempotent(t *testing.T) {
	lister := newGatedLister()
	s := NewScheduler(lister)
	s.Start(time.Hour, 5*time.Millisecond, Filter{})
	waitFor(t, "initial fetch", func() bool { return lister.callCount() == 1 })

	s.Stop()
	s.Stop()
	s.Refresh()
	time.Sleep(50 * time.Millisecond)
	if got := lister.callCount(); got != 1 {
		t.Fatalf("expected no fetches after stop, got %d", got)
	}
}
