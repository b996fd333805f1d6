package service

import (
	"context"
	"errors"
	"testing"

	"github.com/obadahasan/numbot/internal/model"
	"github.com/obadahasan/numbot/internal/repository"
)

type fakeNumberInventory struct {
	numbers        []model.Number
	lastIncludePro bool
	lastPage       int
	lastPattern    string
}

func (f *fakeNumberInventory) GetByID(_ context.Context, id int64) (*model.Number, error) {
	for i := range f.numbers {
		if f.numbers[i].ID == id {
			return &f.numbers[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeNumberInventory) ListAvailableByCountry(_ context.Context, _ int64, includePremium bool, page, pageSize int) ([]model.Number, error) {
	f.lastIncludePro = includePremium
	f.lastPage = page
	start := (page - 1) * pageSize
	if start >= len(f.numbers) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(f.numbers) {
		end = len(f.numbers)
	}
	return f.numbers[start:end], nil
}

func (f *fakeNumberInventory) CountAvailableByCountry(_ context.Context, _ int64, includePremium bool) (int, error) {
	f.lastIncludePro = includePremium
	return len(f.numbers), nil
}

func (f *fakeNumberInventory) SearchPremium(_ context.Context, _ int64, pattern string) ([]model.Number, error) {
	f.lastPattern = pattern
	return f.numbers, nil
}

func (f *fakeNumberInventory) Add(_ context.Context, _ int64, _, _ string, _ bool, _ string, _ int64) (int64, error) {
	return 99, nil
}

func (f *fakeNumberInventory) Deactivate(context.Context, int64) error { return nil }
func (f *fakeNumberInventory) Reactivate(context.Context, int64) error { return nil }

type fakeCountryInventory struct {
	countries []model.Country
}

func (f *fakeCountryInventory) Get(_ context.Context, id int64) (*model.Country, error) {
	for i := range f.countries {
		if f.countries[i].ID == id {
			return &f.countries[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCountryInventory) ListActiveWithCounts(context.Context, bool) ([]model.Country, error) {
	return f.countries, nil
}

func (f *fakeCountryInventory) ListAll(context.Context) ([]model.Country, error) {
	return f.countries, nil
}

func (f *fakeCountryInventory) Add(context.Context, string, string) (int64, error) { return 7, nil }
func (f *fakeCountryInventory) SetActive(context.Context, int64, bool) error       { return nil }

func someNumbers(n int) []model.Number {
	out := make([]model.Number, n)
	for i := range out {
		out[i] = model.Number{ID: int64(i + 1), Value: "+1555", IsAvailable: true, IsActive: true}
	}
	return out
}

func TestNumbersPagination(t *testing.T) {
	inv := &fakeNumberInventory{numbers: someNumbers(12)}
	cat := NewCatalog(inv, &fakeCountryInventory{}, nil)

	page, err := cat.Numbers(context.Background(), 1, false, 2)
	if err != nil {
		t.Fatalf("Numbers: %v", err)
	}
	if page.Total != 12 || page.TotalPages != 3 {
		t.Fatalf("total=%d pages=%d, want 12/3", page.Total, page.TotalPages)
	}
	if page.Page != 2 || len(page.Numbers) != NumbersPageSize {
		t.Fatalf("page=%d len=%d, want 2/%d", page.Page, len(page.Numbers), NumbersPageSize)
	}
	if page.Numbers[0].ID != 6 {
		t.Fatalf("first id on page 2 = %d, want 6", page.Numbers[0].ID)
	}
}

func TestNumbersPageClamping(t *testing.T) {
	inv := &fakeNumberInventory{numbers: someNumbers(3)}
	cat := NewCatalog(inv, &fakeCountryInventory{}, nil)

	page, err := cat.Numbers(context.Background(), 1, false, 99)
	if err != nil {
		t.Fatalf("Numbers: %v", err)
	}
	if page.Page != 1 {
		t.Fatalf("page = %d, want clamp to 1", page.Page)
	}

	page, err = cat.Numbers(context.Background(), 1, false, -4)
	if err != nil {
		t.Fatalf("Numbers: %v", err)
	}
	if page.Page != 1 {
		t.Fatalf("page = %d, want clamp to 1", page.Page)
	}
}

func TestNumbersVisibilityTier(t *testing.T) {
	inv := &fakeNumberInventory{numbers: someNumbers(1)}
	cat := NewCatalog(inv, &fakeCountryInventory{}, nil)

	if _, err := cat.Numbers(context.Background(), 1, false, 1); err != nil {
		t.Fatalf("Numbers: %v", err)
	}
	if inv.lastIncludePro {
		t.Fatal("non-PRO listing must exclude premium")
	}

	if _, err := cat.Numbers(context.Background(), 1, true, 1); err != nil {
		t.Fatalf("Numbers: %v", err)
	}
	if !inv.lastIncludePro {
		t.Fatal("PRO listing must include premium")
	}
}

func TestSearchPremiumRequiresPro(t *testing.T) {
	cat := NewCatalog(&fakeNumberInventory{}, &fakeCountryInventory{}, nil)
	_, err := cat.SearchPremium(context.Background(), 1, "777*", false)
	if !errors.Is(err, ErrNotPro) {
		t.Fatalf("err = %v, want ErrNotPro", err)
	}
}

func TestSearchPremiumPatternValidation(t *testing.T) {
	cat := NewCatalog(&fakeNumberInventory{}, &fakeCountryInventory{}, nil)
	ctx := context.Background()

	bad := []string{"", "***", "abc", "7; DROP", "123456789012345678901"}
	for _, p := range bad {
		if _, err := cat.SearchPremium(ctx, 1, p, true); !errors.Is(err, ErrBadPattern) {
			t.Errorf("pattern %q: err = %v, want ErrBadPattern", p, err)
		}
	}

	good := []string{"777", "*777*", "+1555*", "  99*  "}
	for _, p := range good {
		if _, err := cat.SearchPremium(ctx, 1, p, true); err != nil {
			t.Errorf("pattern %q: unexpected err %v", p, err)
		}
	}
}

func TestAddNumberRequiresCountry(t *testing.T) {
	cat := NewCatalog(&fakeNumberInventory{}, &fakeCountryInventory{}, nil)
	_, err := cat.AddNumber(context.Background(), 1, 42, "+1555", "telegram", false, "")
	if err == nil {
		t.Fatal("expected error for unknown country")
	}
}

func TestAddNumber(t *testing.T) {
	countries := &fakeCountryInventory{countries: []model.Country{{ID: 42, Name: "US"}}}
	cat := NewCatalog(&fakeNumberInventory{}, countries, nil)
	id, err := cat.AddNumber(context.Background(), 1, 42, "+1555", "telegram", true, "777")
	if err != nil {
		t.Fatalf("AddNumber: %v", err)
	}
	if id != 99 {
		t.Fatalf("id = %d, want 99", id)
	}
}
