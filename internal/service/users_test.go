package service

import (
	"context"
	"errors"
	"testing"

	"github.com/obadahasan/numbot/internal/model"
	"github.com/obadahasan/numbot/internal/repository"
)

type fakeDirectory struct {
	users map[int64]*model.User
}

func newFakeDirectory(users ...*model.User) *fakeDirectory {
	f := &fakeDirectory{users: make(map[int64]*model.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeDirectory) Get(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeDirectory) Upsert(_ context.Context, id int64, _, _, _ string, _ int64) (bool, error) {
	if _, ok := f.users[id]; ok {
		return false, nil
	}
	f.users[id] = &model.User{ID: id}
	return true, nil
}

func (f *fakeDirectory) SetBanned(_ context.Context, id int64, banned bool) error {
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Banned = banned
	return nil
}

func (f *fakeDirectory) ListIDs(context.Context) ([]int64, error) {
	var ids []int64
	for id := range f.users {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeReferrer struct {
	rewards [][2]int64
}

func (f *fakeReferrer) RewardReferral(_ context.Context, inviterID, newUserID int64) error {
	f.rewards = append(f.rewards, [2]int64{inviterID, newUserID})
	return nil
}

func TestRegisterRewardsReferralOnce(t *testing.T) {
	dir := newFakeDirectory(&model.User{ID: 50})
	ref := &fakeReferrer{}
	users := NewUsers(dir, nil, ref, nil)
	ctx := context.Background()

	isNew, err := users.Register(ctx, 100, "alice", "Alice", "", 50)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !isNew {
		t.Fatal("first register must report new")
	}
	if len(ref.rewards) != 1 || ref.rewards[0] != [2]int64{50, 100} {
		t.Fatalf("rewards = %v, want one 50->100", ref.rewards)
	}

	// A repeat /start with the same payload must not pay again.
	isNew, err = users.Register(ctx, 100, "alice", "Alice", "", 50)
	if err != nil {
		t.Fatalf("repeat Register: %v", err)
	}
	if isNew {
		t.Fatal("repeat register must not report new")
	}
	if len(ref.rewards) != 1 {
		t.Fatalf("rewards = %d, want still 1", len(ref.rewards))
	}
}

func TestRegisterIgnoresUnknownInviter(t *testing.T) {
	dir := newFakeDirectory()
	ref := &fakeReferrer{}
	users := NewUsers(dir, nil, ref, nil)

	if _, err := users.Register(context.Background(), 100, "", "", "", 999); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(ref.rewards) != 0 {
		t.Fatal("unknown inviter must not be rewarded")
	}
}

func TestRegisterIgnoresSelfInvite(t *testing.T) {
	dir := newFakeDirectory()
	ref := &fakeReferrer{}
	users := NewUsers(dir, nil, ref, nil)

	if _, err := users.Register(context.Background(), 100, "", "", "", 100); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(ref.rewards) != 0 {
		t.Fatal("self invite must not be rewarded")
	}
}

func TestGetRejectsBanned(t *testing.T) {
	dir := newFakeDirectory(&model.User{ID: 100, Banned: true})
	users := NewUsers(dir, nil, nil, nil)

	if _, err := users.Get(context.Background(), 100); !errors.Is(err, ErrBanned) {
		t.Fatalf("err = %v, want ErrBanned", err)
	}
	if _, err := users.Get(context.Background(), 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestBanUnban(t *testing.T) {
	dir := newFakeDirectory(&model.User{ID: 100})
	users := NewUsers(dir, nil, nil, nil)
	ctx := context.Background()

	if err := users.Ban(ctx, 1, 100); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if !dir.users[100].Banned {
		t.Fatal("user not banned")
	}
	if err := users.Unban(ctx, 1, 100); err != nil {
		t.Fatalf("Unban: %v", err)
	}
	if dir.users[100].Banned {
		t.Fatal("user still banned")
	}
	if err := users.Ban(ctx, 1, 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Ban unknown err = %v, want ErrUserNotFound", err)
	}
}

func TestParseReferral(t *testing.T) {
	cases := map[string]int64{
		"12345":  12345,
		"":       0,
		"abc":    0,
		"-5":     0,
		"0":      0,
		"99 foo": 99,
	}
	for payload, want := range cases {
		if got := ParseReferral(payload); got != want {
			t.Errorf("ParseReferral(%q) = %d, want %d", payload, got, want)
		}
	}
}

func TestReferralLink(t *testing.T) {
	got := ReferralLink("numbot", 42)
	want := "https://t.me/numbot?start=42"
	if got != want {
		t.Fatalf("link = %q, want %q", got, want)
	}
}
