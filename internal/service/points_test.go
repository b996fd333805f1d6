package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/obadahasan/numbot/internal/model"
	"github.com/obadahasan/numbot/internal/repository"
)

type ledgerEntry struct {
	userID  int64
	change  int64
	reason  string
	related int64
}

// fakeLedger keeps balances in a map and honors requireBalance.
type fakeLedger struct {
	balances map[int64]int64
	entries  []ledgerEntry
	failOn   string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[int64]int64)}
}

func (l *fakeLedger) ApplyChange(_ context.Context, userID, change int64, reason string, relatedID int64, requireBalance bool) (bool, error) {
	if l.failOn != "" && l.failOn == reason {
		return false, errors.New("ledger unavailable")
	}
	if requireBalance && change < 0 && l.balances[userID]+change < 0 {
		return false, nil
	}
	l.balances[userID] += change
	l.entries = append(l.entries, ledgerEntry{userID, change, reason, relatedID})
	return true, nil
}

func (l *fakeLedger) History(_ context.Context, userID int64, limit int) ([]model.PointsEntry, error) {
	var out []model.PointsEntry
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := l.entries[i]
		if e.userID == userID {
			out = append(out, model.PointsEntry{UserID: e.userID, Change: e.change, Reason: e.reason})
		}
	}
	return out, nil
}

type fakeAccounts struct {
	users     map[int64]*model.User
	claimedOn map[int64]time.Time
	invites   map[int64]int
	proofs    map[int64]int
}

func newFakeAccounts(users ...*model.User) *fakeAccounts {
	f := &fakeAccounts{
		users:     make(map[int64]*model.User),
		claimedOn: make(map[int64]time.Time),
		invites:   make(map[int64]int),
		proofs:    make(map[int64]int),
	}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeAccounts) Get(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeAccounts) ClaimDailyBonus(_ context.Context, id int64, now time.Time) (bool, error) {
	last, ok := f.claimedOn[id]
	if ok && last.Year() == now.Year() && last.YearDay() == now.YearDay() {
		return false, nil
	}
	f.claimedOn[id] = now
	return true, nil
}

func (f *fakeAccounts) IncrementInvites(_ context.Context, id int64) error {
	f.invites[id]++
	return nil
}

func (f *fakeAccounts) IncrementProofs(_ context.Context, id int64) error {
	f.proofs[id]++
	return nil
}

func (f *fakeAccounts) TopByPoints(_ context.Context, _ int) ([]model.User, error) {
	return nil, nil
}

func TestClaimDailyOncePerDay(t *testing.T) {
	ledger := newFakeLedger()
	accounts := newFakeAccounts(&model.User{ID: 100})
	p := NewPoints(ledger, accounts, nil, nil)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := base
	p.now = func() time.Time { return now }

	ctx := context.Background()
	bonus, err := p.ClaimDaily(ctx, 100)
	if err != nil {
		t.Fatalf("ClaimDaily: %v", err)
	}
	if bonus != defaultDailyBonus {
		t.Fatalf("bonus = %d, want %d", bonus, defaultDailyBonus)
	}

	now = base.Add(2 * time.Hour)
	if _, err := p.ClaimDaily(ctx, 100); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("same-day claim err = %v, want ErrAlreadyClaimed", err)
	}

	now = base.AddDate(0, 0, 1)
	if _, err := p.ClaimDaily(ctx, 100); err != nil {
		t.Fatalf("next-day claim: %v", err)
	}
	if ledger.balances[100] != 2*defaultDailyBonus {
		t.Fatalf("balance = %d, want %d", ledger.balances[100], 2*defaultDailyBonus)
	}
}

func TestTransfer(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances[100] = 50
	accounts := newFakeAccounts(&model.User{ID: 100}, &model.User{ID: 200})
	p := NewPoints(ledger, accounts, nil, nil)
	ctx := context.Background()

	if err := p.Transfer(ctx, 100, 200, 30); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if ledger.balances[100] != 20 || ledger.balances[200] != 30 {
		t.Fatalf("balances = %d/%d, want 20/30", ledger.balances[100], ledger.balances[200])
	}
}

func TestTransferInsufficient(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances[100] = 10
	accounts := newFakeAccounts(&model.User{ID: 100}, &model.User{ID: 200})
	p := NewPoints(ledger, accounts, nil, nil)

	err := p.Transfer(context.Background(), 100, 200, 30)
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("err = %v, want ErrInsufficientPoints", err)
	}
	if ledger.balances[100] != 10 || ledger.balances[200] != 0 {
		t.Fatal("failed transfer must not move points")
	}
}

func TestTransferRejectsSelfAndUnknown(t *testing.T) {
	ledger := newFakeLedger()
	accounts := newFakeAccounts(&model.User{ID: 100})
	p := NewPoints(ledger, accounts, nil, nil)
	ctx := context.Background()

	if err := p.Transfer(ctx, 100, 100, 5); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("self transfer err = %v, want ErrSelfTransfer", err)
	}
	if err := p.Transfer(ctx, 100, 999, 5); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown recipient err = %v, want ErrUserNotFound", err)
	}
}

func TestTransferRejectsBannedRecipient(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances[100] = 50
	accounts := newFakeAccounts(&model.User{ID: 100}, &model.User{ID: 200, Banned: true})
	p := NewPoints(ledger, accounts, nil, nil)

	if err := p.Transfer(context.Background(), 100, 200, 5); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestTransferRefundsOnCreditFailure(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances[100] = 50
	ledger.failOn = ReasonTransferIn
	accounts := newFakeAccounts(&model.User{ID: 100}, &model.User{ID: 200})
	p := NewPoints(ledger, accounts, nil, nil)

	if err := p.Transfer(context.Background(), 100, 200, 30); err == nil {
		t.Fatal("expected credit failure to surface")
	}
	if ledger.balances[100] != 50 {
		t.Fatalf("sender balance = %d, want refund to 50", ledger.balances[100])
	}
}

func TestChargeInsufficient(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances[100] = 5
	p := NewPoints(ledger, newFakeAccounts(&model.User{ID: 100}), nil, nil)

	err := p.Charge(context.Background(), 100, 100, ReasonProPurchase, 0)
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("err = %v, want ErrInsufficientPoints", err)
	}
}

func TestRewardReferral(t *testing.T) {
	ledger := newFakeLedger()
	accounts := newFakeAccounts(&model.User{ID: 100})
	p := NewPoints(ledger, accounts, nil, nil)

	if err := p.RewardReferral(context.Background(), 100, 555); err != nil {
		t.Fatalf("RewardReferral: %v", err)
	}
	if ledger.balances[100] != defaultInvitePoints {
		t.Fatalf("balance = %d, want %d", ledger.balances[100], defaultInvitePoints)
	}
	if accounts.invites[100] != 1 {
		t.Fatalf("invites = %d, want 1", accounts.invites[100])
	}
}

func TestRewardProof(t *testing.T) {
	ledger := newFakeLedger()
	accounts := newFakeAccounts(&model.User{ID: 100})
	p := NewPoints(ledger, accounts, nil, nil)

	reward, err := p.RewardProof(context.Background(), 100)
	if err != nil {
		t.Fatalf("RewardProof: %v", err)
	}
	if reward != defaultProofPoints {
		t.Fatalf("reward = %d, want %d", reward, defaultProofPoints)
	}
	if accounts.proofs[100] != 1 {
		t.Fatalf("proofs = %d, want 1", accounts.proofs[100])
	}
}

func TestAdminAdjustCanGoNegative(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances[100] = 5
	accounts := newFakeAccounts(&model.User{ID: 100})
	p := NewPoints(ledger, accounts, nil, nil)

	if err := p.AdminAdjust(context.Background(), 1, 100, -20); err != nil {
		t.Fatalf("AdminAdjust: %v", err)
	}
	if ledger.balances[100] != -15 {
		t.Fatalf("balance = %d, want -15", ledger.balances[100])
	}
}

func TestAdminAdjustUnknownUser(t *testing.T) {
	p := NewPoints(newFakeLedger(), newFakeAccounts(), nil, nil)
	err := p.AdminAdjust(context.Background(), 1, 999, 10)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}
