package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/obadahasan/numbot/internal/model"
	"github.com/obadahasan/numbot/internal/repository"
)

type fakeProStore struct {
	codes map[string]*model.ProCode
	subs  []model.ProSubscription
}

func newFakeProStore() *fakeProStore {
	return &fakeProStore{codes: make(map[string]*model.ProCode)}
}

func (f *fakeProStore) RecordSubscription(_ context.Context, userID int64, startedAt, expiresAt time.Time, durationDays int, method string) error {
	f.subs = append(f.subs, model.ProSubscription{
		UserID:       userID,
		StartedAt:    startedAt,
		ExpiresAt:    expiresAt,
		DurationDays: durationDays,
		Method:       method,
		IsActive:     true,
	})
	return nil
}

func (f *fakeProStore) DeactivateSubscriptions(_ context.Context, userID int64) error {
	for i := range f.subs {
		if f.subs[i].UserID == userID {
			f.subs[i].IsActive = false
		}
	}
	return nil
}

func (f *fakeProStore) CreateCode(_ context.Context, code string, durationDays int, createdBy int64) error {
	f.codes[code] = &model.ProCode{Code: code, DurationDays: durationDays, CreatedBy: createdBy, IsActive: true}
	return nil
}

func (f *fakeProStore) RedeemCode(_ context.Context, code string, userID int64, now time.Time) (*model.ProCode, error) {
	pc, ok := f.codes[code]
	if !ok || !pc.IsActive || pc.UsedBy.Valid {
		return nil, repository.ErrConflict
	}
	pc.UsedBy = sql.NullInt64{Int64: userID, Valid: true}
	pc.UsedAt = sql.NullTime{Time: now, Valid: true}
	pc.IsActive = false
	return pc, nil
}

func (f *fakeProStore) ListCodes(context.Context, bool) ([]model.ProCode, error) {
	return nil, nil
}

func (f *fakeProStore) ListActiveProUsers(context.Context) ([]model.User, error) {
	return nil, nil
}

type fakeProAccounts struct {
	users map[int64]*model.User
}

func (f *fakeProAccounts) Get(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeProAccounts) SetPro(_ context.Context, id int64, isPro bool, expiry time.Time) error {
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsPro = isPro
	u.ProExpiry = sql.NullTime{Time: expiry, Valid: isPro}
	return nil
}

type fakeCharger struct {
	balance int64
	charged int64
}

func (f *fakeCharger) Charge(_ context.Context, _ int64, amount int64, _ string, _ int64) error {
	if f.balance < amount {
		return ErrInsufficientPoints
	}
	f.balance -= amount
	f.charged += amount
	return nil
}

func newProService(users ...*model.User) (*Pro, *fakeProStore, *fakeProAccounts, *fakeCharger, *fakeClock) {
	store := newFakeProStore()
	accounts := &fakeProAccounts{users: make(map[int64]*model.User)}
	for _, u := range users {
		accounts.users[u.ID] = u
	}
	charger := &fakeCharger{balance: 1000}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	p := NewPro(store, accounts, charger, nil, nil)
	p.now = clock.Now
	return p, store, accounts, charger, clock
}

func TestBuyWithPoints(t *testing.T) {
	p, store, accounts, charger, clock := newProService(&model.User{ID: 100})
	ctx := context.Background()

	expiry, err := p.BuyWithPoints(ctx, 100)
	if err != nil {
		t.Fatalf("BuyWithPoints: %v", err)
	}
	if charger.charged != defaultProCost {
		t.Fatalf("charged = %d, want %d", charger.charged, defaultProCost)
	}
	want := clock.Now().AddDate(0, 0, defaultProDays)
	if !expiry.Equal(want) {
		t.Fatalf("expiry = %v, want %v", expiry, want)
	}
	if !accounts.users[100].IsPro {
		t.Fatal("user not flagged PRO")
	}
	if len(store.subs) != 1 || store.subs[0].Method != model.ProMethodPoints {
		t.Fatalf("subscription rows = %+v", store.subs)
	}
}

func TestBuyWithPointsInsufficient(t *testing.T) {
	p, _, accounts, charger, _ := newProService(&model.User{ID: 100})
	charger.balance = 10

	_, err := p.BuyWithPoints(context.Background(), 100)
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("err = %v, want ErrInsufficientPoints", err)
	}
	if accounts.users[100].IsPro {
		t.Fatal("failed purchase must not activate PRO")
	}
}

func TestActivateExtendsFromCurrentExpiry(t *testing.T) {
	p, _, accounts, _, clock := newProService(&model.User{ID: 100})
	ctx := context.Background()

	if _, err := p.BuyWithPoints(ctx, 100); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	firstExpiry := accounts.users[100].ProExpiry.Time

	clock.Advance(24 * time.Hour)
	expiry, err := p.BuyWithPoints(ctx, 100)
	if err != nil {
		t.Fatalf("second purchase: %v", err)
	}
	want := firstExpiry.AddDate(0, 0, defaultProDays)
	if !expiry.Equal(want) {
		t.Fatalf("expiry = %v, want extension from %v", expiry, firstExpiry)
	}
}

func TestIsProLazyExpiry(t *testing.T) {
	p, store, accounts, _, clock := newProService(&model.User{ID: 100})
	ctx := context.Background()

	if _, err := p.BuyWithPoints(ctx, 100); err != nil {
		t.Fatalf("BuyWithPoints: %v", err)
	}
	ok, err := p.IsPro(ctx, 100)
	if err != nil || !ok {
		t.Fatalf("IsPro = %v, %v, want true", ok, err)
	}

	clock.Advance(time.Duration(defaultProDays+1) * 24 * time.Hour)
	ok, err = p.IsPro(ctx, 100)
	if err != nil {
		t.Fatalf("IsPro: %v", err)
	}
	if ok {
		t.Fatal("IsPro past expiry must report false")
	}
	if accounts.users[100].IsPro {
		t.Fatal("stale PRO flag not cleared")
	}
	for _, s := range store.subs {
		if s.IsActive {
			t.Fatal("subscription row still active after lazy expiry")
		}
	}
}

func TestIsProUnknownUser(t *testing.T) {
	p, _, _, _, _ := newProService()
	ok, err := p.IsPro(context.Background(), 999)
	if err != nil || ok {
		t.Fatalf("IsPro = %v, %v, want false, nil", ok, err)
	}
}

func TestRedeemCodeOnce(t *testing.T) {
	p, store, accounts, _, _ := newProService(&model.User{ID: 100}, &model.User{ID: 200})
	ctx := context.Background()
	if err := store.CreateCode(ctx, "PRO-TEST-CODE", 7, 1); err != nil {
		t.Fatalf("CreateCode: %v", err)
	}

	if _, err := p.Redeem(ctx, 100, " pro-test-code "); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if !accounts.users[100].IsPro {
		t.Fatal("redeemer not flagged PRO")
	}

	if _, err := p.Redeem(ctx, 200, "PRO-TEST-CODE"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("second redemption err = %v, want ErrCodeInvalid", err)
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	p, _, _, _, _ := newProService(&model.User{ID: 100})
	if _, err := p.Redeem(context.Background(), 100, "NOPE"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("err = %v, want ErrCodeInvalid", err)
	}
}

func TestGrantAndRevoke(t *testing.T) {
	p, _, accounts, _, _ := newProService(&model.User{ID: 100})
	ctx := context.Background()

	if _, err := p.Grant(ctx, 1, 100, 14); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if !accounts.users[100].IsPro {
		t.Fatal("granted user not flagged PRO")
	}

	if err := p.Revoke(ctx, 1, 100); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if accounts.users[100].IsPro {
		t.Fatal("revoked user still flagged PRO")
	}
}

func TestCreateCodeFormat(t *testing.T) {
	p, store, _, _, _ := newProService()
	code, err := p.CreateCode(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("CreateCode: %v", err)
	}
	if !strings.HasPrefix(code, "PRO-") {
		t.Fatalf("code %q missing prefix", code)
	}
	if len(code) != len("PRO")+proCodeGroups*(proCodeGroupLen+1) {
		t.Fatalf("code %q has unexpected length", code)
	}
	if _, ok := store.codes[code]; !ok {
		t.Fatal("code not stored")
	}
}
