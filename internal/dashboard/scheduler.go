package dashboard

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"mitienda/client/internal/daterange"
	"mitienda/client/internal/domain"
	"mitienda/client/internal/money"
	"mitienda/client/internal/port"
)

// TransactionLister is the slice of the data port the scheduler reads from.
type TransactionLister interface {
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
}

// Filter is the dashboard's active scope: a type filter plus a date-range
// mode. Relative modes resolve their concrete range from "now" on every
// fetch; custom mode carries explicit day-normalized bounds.
type Filter struct {
	Type   domain.TransactionType
	Mode   daterange.Mode
	Custom daterange.Range
}

// Scheduler keeps a transaction list and its totals current with minimal
// redundant traffic. Fetches never overlap: triggers arriving while one is
// in flight coalesce into at most one follow-up. A generation counter
// discards results that a newer filter or fetch has superseded, so stale
// responses can never overwrite fresher state.
type Scheduler struct {
	lister       TransactionLister
	now          func() time.Time
	fetchTimeout time.Duration

	mu          sync.Mutex
	hub         *Hub
	filter      Filter
	state       domain.AggregationState
	generation  uint64
	fetching    bool
	pending     *Trigger
	active      bool
	started     bool
	subscribers []func(domain.AggregationState)
	onError     func(error)
	onLoading   func(bool)
}

func NewScheduler(lister TransactionLister) *Scheduler {
	return &Scheduler{
		lister:       lister,
		now:          time.Now,
		fetchTimeout: 15 * time.Second,
	}
}

// SetClock overrides the time source. For tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Subscribe registers a push callback invoked with every applied state.
func (s *Scheduler) Subscribe(fn func(domain.AggregationState)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// OnError registers the error sink for non-silent fetch failures. Stale
// results are discarded without touching it.
func (s *Scheduler) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// OnLoading registers the visible loading-indicator toggle. Only foreground
// fetches drive it.
func (s *Scheduler) OnLoading(fn func(bool)) {
	s.mu.Lock()
	s.onLoading = fn
	s.mu.Unlock()
}

// State returns the last applied aggregation state.
func (s *Scheduler) State() domain.AggregationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start enters Active, arms the timer with the given period and debounce
// window, and fires the initial foreground fetch.
func (s *Scheduler) Start(period, debounce time.Duration, initial Filter) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	if initial.Mode == "" {
		initial.Mode = daterange.Last7Days
	}
	s.filter = initial
	s.started = true
	s.active = true
	s.hub = NewHub(debounce, period)
	hub := s.hub
	s.mu.Unlock()

	hub.Start()
	go func() {
		for t := range hub.Ticks() {
			s.trigger(t)
		}
	}()
	hub.Fire(SourceStart)
}

// Stop cancels the timer and all trigger subscriptions. Safe to call from
// Idle or repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	hub := s.hub
	s.started = false
	s.active = false
	s.pending = nil
	s.mu.Unlock()
	if hub != nil {
		hub.Stop()
	}
}

// Hub exposes the trigger aggregator so callers can attach liveness
// sources (focus, visibility, online).
func (s *Scheduler) Hub() *Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hub
}

// SetFilter replaces the active filter and fetches immediately. A filter
// change supersedes any in-flight fetch: its result will be discarded, not
// applied over the new scope.
func (s *Scheduler) SetFilter(f Filter) {
	s.mu.Lock()
	if f.Mode == "" {
		f.Mode = s.filter.Mode
	}
	s.filter = f
	s.generation++
	hub := s.hub
	s.mu.Unlock()
	if hub != nil {
		hub.Fire(SourceFilter)
	}
}

// Refresh requests one foreground fetch.
func (s *Scheduler) Refresh() {
	s.mu.Lock()
	hub := s.hub
	s.mu.Unlock()
	if hub != nil {
		hub.Fire(SourceManual)
	}
}

// EnterForeground leaves Idle and performs one silent catch-up fetch to
// cover the time spent away.
func (s *Scheduler) EnterForeground() {
	s.mu.Lock()
	if !s.started || s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	hub := s.hub
	s.mu.Unlock()
	if hub != nil {
		hub.SetActive(true)
		hub.Notify(SourceResume)
	}
}

// EnterBackground transitions to Idle: the timer pauses and all triggers
// except a later resume are ignored.
func (s *Scheduler) EnterBackground() {
	s.mu.Lock()
	s.active = false
	s.pending = nil
	hub := s.hub
	s.mu.Unlock()
	if hub != nil {
		hub.SetActive(false)
	}
}

func (s *Scheduler) trigger(t Trigger) {
	s.mu.Lock()
	if !s.started || !s.active {
		s.mu.Unlock()
		return
	}
	if s.fetching {
		// Coalesce: a burst of triggers during one fetch yields exactly
		// one follow-up, not one per trigger.
		if s.pending == nil {
			copied := t
			s.pending = &copied
		} else if !t.Silent {
			s.pending.Silent = false
		}
		s.mu.Unlock()
		return
	}
	s.beginFetchLocked(t)
	s.mu.Unlock()
}

// beginFetchLocked transitions Active-Waiting -> Active-Fetching. Caller
// holds the lock.
func (s *Scheduler) beginFetchLocked(t Trigger) {
	s.fetching = true
	s.generation++
	gen := s.generation
	r := daterange.Resolve(s.filter.Mode, s.filter.Custom, s.now())
	filter := domain.TransactionFilter{Type: s.filter.Type, Start: r.Start, End: r.End}
	go s.runFetch(gen, filter, t.Silent)
}

func (s *Scheduler) runFetch(gen uint64, filter domain.TransactionFilter, silent bool) {
	if !silent {
		s.setLoading(true)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	list, err := s.lister.ListTransactions(ctx, filter)
	cancel()
	if !silent {
		s.setLoading(false)
	}

	s.mu.Lock()
	stale := gen != s.generation
	var applied *domain.AggregationState
	if !stale && err == nil {
		next := buildState(list)
		s.state = next
		applied = &next
	}
	s.fetching = false
	var next *Trigger
	if s.pending != nil && s.active && s.started {
		next = s.pending
		s.pending = nil
		s.beginFetchLocked(*next)
	} else {
		s.pending = nil
	}
	subs := make([]func(domain.AggregationState), len(s.subscribers))
	copy(subs, s.subscribers)
	onError := s.onError
	s.mu.Unlock()

	if stale {
		// Superseded by a newer filter or fetch; drop without surfacing.
		return
	}
	if err != nil {
		// Prior state stays untouched; the next trigger retries.
		log.Printf("[dashboard] fetch failed: %v", err)
		if onError != nil {
			onError(fmt.Errorf("%w: %v", port.ErrRequestFailed, err))
		}
		return
	}
	for _, fn := range subs {
		fn(*applied)
	}
}

func (s *Scheduler) setLoading(v bool) {
	s.mu.Lock()
	fn := s.onLoading
	s.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// buildState sorts the fetched page newest-first and derives totals. The
// list is replaced wholesale; partial pages are never merged.
func buildState(list []domain.Transaction) domain.AggregationState {
	transactions := make([]domain.Transaction, len(list))
	copy(transactions, list)
	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].TransactionDate.After(transactions[j].TransactionDate)
	})
	return domain.AggregationState{
		Transactions: transactions,
		Totals:       ComputeTotals(transactions),
	}
}

// ComputeTotals sums amounts per type and rounds each figure to 2 decimals,
// half-up on the 3rd, to keep floating-point noise out of the dashboard.
func ComputeTotals(transactions []domain.Transaction) domain.Totals {
	var income, expense []float64
	for _, t := range transactions {
		switch t.Type {
		case domain.TxIncome:
			income = append(income, t.Amount)
		case domain.TxExpense:
			expense = append(expense, t.Amount)
		}
	}
	in := money.Sum(income...)
	out := money.Sum(expense...)
	return domain.Totals{
		Income:  in,
		Expense: out,
		Net:     money.Round2(in - out),
	}
}
