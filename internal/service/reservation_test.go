package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/obadahasan/numbot/internal/model"
	"github.com/obadahasan/numbot/internal/repository"
)

// memStore mimics the repository's conditional-update semantics in memory:
// acquisition flips availability atomically and finalization only applies
// to rows that are still pending.
type memStore struct {
	mu       sync.Mutex
	numbers  map[int64]*model.Number
	requests map[int64]*model.NumberRequest
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		numbers:  make(map[int64]*model.Number),
		requests: make(map[int64]*model.NumberRequest),
	}
}

func (s *memStore) addNumber(id int64, available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numbers[id] = &model.Number{
		ID:          id,
		Value:       "+1555000",
		IsAvailable: available,
		IsActive:    true,
	}
}

func (s *memStore) GetNumber(_ context.Context, numberID int64) (*model.Number, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.numbers[numberID]
	if !ok || !n.IsActive {
		return nil, repository.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *memStore) AcquireNumber(_ context.Context, numberID, userID int64, correlationID string, now, expiresAt time.Time) (*model.NumberRequest, *model.Number, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.numbers[numberID]
	if !ok || !n.IsActive {
		return nil, nil, repository.ErrNotFound
	}
	if !n.IsAvailable {
		return nil, nil, repository.ErrConflict
	}
	n.IsAvailable = false
	s.nextID++
	req := &model.NumberRequest{
		ID:            s.nextID,
		UserID:        userID,
		NumberID:      numberID,
		CorrelationID: correlationID,
		Status:        model.StatusPending,
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
	}
	s.requests[req.ID] = req
	reqCp, numCp := *req, *n
	return &reqCp, &numCp, nil
}

func (s *memStore) FindPendingRequest(_ context.Context, userID, numberID int64) (*model.NumberRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.UserID == userID && req.NumberID == numberID && req.Status == model.StatusPending {
			cp := *req
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) GetRequest(_ context.Context, requestID int64) (*model.NumberRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *memStore) FinalizeRequest(_ context.Context, requestID int64, status model.RequestStatus, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if req.Status != model.StatusPending {
		return false, nil
	}
	req.Status = status
	if code != "" {
		req.Code = sql.NullString{String: code, Valid: true}
	}
	n := s.numbers[req.NumberID]
	if status == model.StatusSuccess {
		n.TimesUsed++
	} else {
		n.IsAvailable = true
	}
	return true, nil
}

func (s *memStore) ListExpiredPending(_ context.Context, cutoff time.Time, limit int) ([]model.NumberRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.NumberRequest
	for _, req := range s.requests {
		if req.Status == model.StatusPending && req.ExpiresAt.Before(cutoff) {
			out = append(out, *req)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) available(t *testing.T, numberID int64) bool {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numbers[numberID].IsAvailable
}

func (s *memStore) status(t *testing.T, requestID int64) model.RequestStatus {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[requestID].Status
}

// fakeOracle returns each queued response once, then keeps returning the
// last one.
type fakeOracle struct {
	mu    sync.Mutex
	queue []struct {
		code string
		err  error
	}
	last struct {
		code string
		err  error
	}
}

func (o *fakeOracle) push(code string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, struct {
		code string
		err  error
	}{code, err})
}

func (o *fakeOracle) CheckDelivery(_ context.Context, _ string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) > 0 {
		o.last = o.queue[0]
		o.queue = o.queue[1:]
	}
	return o.last.code, o.last.err
}

// fakeClock advances only when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(store ReservationStore, orc *fakeOracle, clock *fakeClock) *ReservationManager {
	m := NewReservationManager(store, orc, nil, nil)
	m.now = clock.Now
	id := 0
	m.newID = func() string {
		id++
		return "corr-" + string(rune('a'+id-1))
	}
	return m
}

func TestInitiateHoldsNumber(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(store, &fakeOracle{}, clock)

	res, err := m.Initiate(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if res.Request.Status != model.StatusPending {
		t.Fatalf("status = %s, want PENDING", res.Request.Status)
	}
	if res.Request.CorrelationID == "" {
		t.Fatal("correlation id not assigned")
	}
	want := clock.Now().Add(5 * time.Minute)
	if !res.Request.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at = %v, want %v", res.Request.ExpiresAt, want)
	}
	if store.available(t, 1) {
		t.Fatal("number still available after initiate")
	}
}

func TestInitiateMutualExclusion(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, &fakeOracle{}, clock)

	if _, err := m.Initiate(context.Background(), 100, 1); err != nil {
		t.Fatalf("first Initiate: %v", err)
	}
	_, err := m.Initiate(context.Background(), 200, 1)
	if !errors.Is(err, ErrNumberUnavailable) {
		t.Fatalf("second Initiate err = %v, want ErrNumberUnavailable", err)
	}
}

func TestInitiateUnknownNumber(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, &fakeOracle{}, clock)

	_, err := m.Initiate(context.Background(), 100, 42)
	if !errors.Is(err, ErrNumberUnavailable) {
		t.Fatalf("err = %v, want ErrNumberUnavailable", err)
	}
}

func TestPollPendingThenDelivered(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	clock := &fakeClock{now: time.Now()}
	orc := &fakeOracle{}
	m := newTestManager(store, orc, clock)

	res, err := m.Initiate(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	orc.push("", nil)
	got, err := m.Poll(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got.State != PollPending {
		t.Fatalf("state = %d, want pending", got.State)
	}

	orc.push("482913", nil)
	got, err = m.Poll(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got.State != PollCodeDelivered {
		t.Fatalf("state = %d, want delivered", got.State)
	}
	if got.Code != "482913" {
		t.Fatalf("code = %q, want 482913", got.Code)
	}
	if store.status(t, res.Request.ID) != model.StatusSuccess {
		t.Fatal("request not finalized to SUCCESS")
	}
	if store.available(t, 1) {
		t.Fatal("successful number must stay retired")
	}
}

func TestPollAfterDeliveryReportsNoActiveRequest(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	clock := &fakeClock{now: time.Now()}
	orc := &fakeOracle{}
	m := newTestManager(store, orc, clock)

	if _, err := m.Initiate(context.Background(), 100, 1); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	orc.push("111222", nil)
	if _, err := m.Poll(context.Background(), 100, 1); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	_, err := m.Poll(context.Background(), 100, 1)
	if !errors.Is(err, ErrNoActiveRequest) {
		t.Fatalf("second Poll err = %v, want ErrNoActiveRequest", err)
	}
}

func TestPollExpiryWinsOverOracle(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	clock := &fakeClock{now: time.Now()}
	orc := &fakeOracle{}
	m := newTestManager(store, orc, clock)

	res, err := m.Initiate(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	// Even with a code sitting in the oracle, a lease past its window
	// expires: the timestamp decides, not the oracle.
	orc.push("999999", nil)
	clock.Advance(6 * time.Minute)

	got, err := m.Poll(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got.State != PollExpired {
		t.Fatalf("state = %d, want expired", got.State)
	}
	if store.status(t, res.Request.ID) != model.StatusExpired {
		t.Fatal("request not finalized to EXPIRED")
	}
	if !store.available(t, 1) {
		t.Fatal("expired number must return to the pool")
	}
}

func TestPollOracleErrorStaysPending(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	clock := &fakeClock{now: time.Now()}
	orc := &fakeOracle{}
	m := newTestManager(store, orc, clock)

	res, err := m.Initiate(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	orc.push("", errors.New("upstream timeout"))
	got, err := m.Poll(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got.State != PollPending {
		t.Fatalf("state = %d, want pending on oracle failure", got.State)
	}
	if store.status(t, res.Request.ID) != model.StatusPending {
		t.Fatal("oracle failure must not finalize the request")
	}
}

func TestPollWithoutReservation(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, &fakeOracle{}, clock)

	_, err := m.Poll(context.Background(), 100, 1)
	if !errors.Is(err, ErrNoActiveRequest) {
		t.Fatalf("err = %v, want ErrNoActiveRequest", err)
	}
}

func TestCancelRestoresAvailability(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, &fakeOracle{}, clock)

	res, err := m.Initiate(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if err := m.Cancel(context.Background(), 100, 1); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if store.status(t, res.Request.ID) != model.StatusCancelled {
		t.Fatal("request not finalized to CANCELLED")
	}
	if !store.available(t, 1) {
		t.Fatal("cancelled number must return to the pool")
	}

	// A second cancel finds nothing live.
	if err := m.Cancel(context.Background(), 100, 1); !errors.Is(err, ErrNoActiveRequest) {
		t.Fatalf("second Cancel err = %v, want ErrNoActiveRequest", err)
	}
}

func TestCancelThenReacquire(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, &fakeOracle{}, clock)

	if _, err := m.Initiate(context.Background(), 100, 1); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if err := m.Cancel(context.Background(), 100, 1); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := m.Initiate(context.Background(), 200, 1); err != nil {
		t.Fatalf("re-Initiate after cancel: %v", err)
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, &fakeOracle{}, clock)

	res, err := m.Initiate(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	applied, err := store.FinalizeRequest(context.Background(), res.Request.ID, model.StatusSuccess, "123456")
	if err != nil || !applied {
		t.Fatalf("first finalize: applied=%v err=%v", applied, err)
	}

	// Racing finalizations lose the guard and must not flip the outcome.
	applied, err = store.FinalizeRequest(context.Background(), res.Request.ID, model.StatusCancelled, "")
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if applied {
		t.Fatal("second finalize must not apply")
	}
	if store.status(t, res.Request.ID) != model.StatusSuccess {
		t.Fatal("terminal status changed by a losing finalize")
	}
	if store.available(t, 1) {
		t.Fatal("losing finalize must not restore availability")
	}
}

func TestLostFinalizeRaceReportsActualOutcome(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	clock := &fakeClock{now: time.Now()}
	orc := &fakeOracle{}
	m := newTestManager(store, orc, clock)

	res, err := m.Initiate(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	// A concurrent actor finalizes to SUCCESS between our read and our
	// expiry finalize. Poll must report the delivered code, not expiry.
	if _, err := store.FinalizeRequest(context.Background(), res.Request.ID, model.StatusSuccess, "777888"); err != nil {
		t.Fatalf("concurrent finalize: %v", err)
	}

	got, err := m.finalize(context.Background(), res.Request, model.StatusExpired, "")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if got.State != PollCodeDelivered || got.Code != "777888" {
		t.Fatalf("got state=%d code=%q, want delivered 777888", got.State, got.Code)
	}
}

func TestSweepExpired(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	store.addNumber(2, true)
	store.addNumber(3, true)
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, &fakeOracle{}, clock)

	ctx := context.Background()
	r1, _ := m.Initiate(ctx, 100, 1)
	r2, _ := m.Initiate(ctx, 200, 2)

	clock.Advance(6 * time.Minute)
	// A fresh lease started after the advance must survive the sweep.
	r3, err := m.Initiate(ctx, 300, 3)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	released, err := m.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if released != 2 {
		t.Fatalf("released = %d, want 2", released)
	}
	if store.status(t, r1.Request.ID) != model.StatusExpired {
		t.Fatal("stale request 1 not expired")
	}
	if store.status(t, r2.Request.ID) != model.StatusExpired {
		t.Fatal("stale request 2 not expired")
	}
	if store.status(t, r3.Request.ID) != model.StatusPending {
		t.Fatal("fresh request must stay pending")
	}
	if !store.available(t, 1) || !store.available(t, 2) {
		t.Fatal("swept numbers must return to the pool")
	}
}

func TestConcurrentInitiateSingleWinner(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, &fakeOracle{}, clock)
	m.newID = func() string { return "corr" }

	const attempts = 16
	var wg sync.WaitGroup
	wins := make(chan int64, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			if _, err := m.Initiate(context.Background(), userID, 1); err == nil {
				wins <- userID
			}
		}(int64(1000 + i))
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("winners = %d, want exactly 1", count)
	}
}

func TestLeaseDurationFromSettings(t *testing.T) {
	store := newMemStore()
	store.addNumber(1, true)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	settings := NewSettings(staticSettings{SettingLeaseMinutes: "10"}, time.Minute)
	m := NewReservationManager(store, &fakeOracle{}, settings, nil)
	m.now = clock.Now
	m.newID = func() string { return "corr" }

	res, err := m.Initiate(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	want := clock.Now().Add(10 * time.Minute)
	if !res.Request.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at = %v, want %v", res.Request.ExpiresAt, want)
	}
}

// staticSettings is a fixed key/value SettingsReader.
type staticSettings map[string]string

func (s staticSettings) Get(_ context.Context, key string) (string, error) {
	v, ok := s[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}
