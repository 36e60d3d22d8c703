package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fintalk-ai/fintalk/internal/database"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "fintalk.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	store := database.NewStore(db, nil)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing store failed: %v", err)
		}
	})
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	saved := &database.Profile{
		ChatID:            42,
		FullName:          "Asha Rao",
		Age:               31,
		Occupation:        "nurse",
		EmploymentType:    "salaried",
		Location:          "Pune",
		MonthlyIncome:     45000,
		CreditScore:       712,
		MonthlyExpenses:   20000,
		MonthlyEMI:        8000,
		AmountOutstanding: 150000,
		CreditDues:        5000,
		PreferredLanguage: "Hindi",
	}
	if err := store.SaveProfile(ctx, saved); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	got, err := store.GetProfile(ctx, 42)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetProfile returned nil after save")
	}
	if got.FullName != saved.FullName ||
		got.Age != saved.Age ||
		got.Occupation != saved.Occupation ||
		got.EmploymentType != saved.EmploymentType ||
		got.Location != saved.Location ||
		got.MonthlyIncome != saved.MonthlyIncome ||
		got.CreditScore != saved.CreditScore ||
		got.MonthlyExpenses != saved.MonthlyExpenses ||
		got.MonthlyEMI != saved.MonthlyEMI ||
		got.AmountOutstanding != saved.AmountOutstanding ||
		got.CreditDues != saved.CreditDues ||
		got.PreferredLanguage != saved.PreferredLanguage {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps were not set on save")
	}
}

func TestSQLiteStore_UpsertOverwrites(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	first := &database.Profile{ChatID: 7, MonthlyIncome: 30000, Occupation: "driver", PreferredLanguage: "English"}
	if err := store.SaveProfile(ctx, first); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	// Saving the same chat id again replaces the row; fields absent from
	// the new record are cleared.
	second := &database.Profile{ChatID: 7, MonthlyIncome: 52000, PreferredLanguage: "Tamil"}
	if err := store.SaveProfile(ctx, second); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	got, err := store.GetProfile(ctx, 7)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.MonthlyIncome != 52000 {
		t.Errorf("MonthlyIncome = %d, want 52000", got.MonthlyIncome)
	}
	if got.Occupation != "" {
		t.Errorf("Occupation = %q, want cleared by overwrite", got.Occupation)
	}
	if got.PreferredLanguage != "Tamil" {
		t.Errorf("PreferredLanguage = %q, want Tamil", got.PreferredLanguage)
	}
}

func TestSQLiteStore_IsolatesChats(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveProfile(ctx, &database.Profile{ChatID: 1, MonthlyIncome: 40000, PreferredLanguage: "English"}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	if err := store.SaveProfile(ctx, &database.Profile{ChatID: 2, MonthlyIncome: 90000, PreferredLanguage: "Bengali"}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	got, err := store.GetProfile(ctx, 1)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.MonthlyIncome != 40000 || got.PreferredLanguage != "English" {
		t.Errorf("chat 1 profile = %+v, want the record saved for chat 1", got)
	}
}

func TestSQLiteStore_MissingChat(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	got, err := store.GetProfile(context.Background(), 404)
	if err != nil {
		t.Fatalf("GetProfile error = %v, want nil for a missing chat", err)
	}
	if got != nil {
		t.Errorf("GetProfile = %+v, want nil", got)
	}
}

func TestSQLiteStore_RejectsInvalidProfile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveProfile(ctx, nil); err == nil {
		t.Error("SaveProfile accepted a nil profile")
	}
	if err := store.SaveProfile(ctx, &database.Profile{PreferredLanguage: "English"}); err == nil {
		t.Error("SaveProfile accepted a profile without a chat id")
	}
	if err := store.SaveProfile(ctx, &database.Profile{ChatID: 1}); err == nil {
		t.Error("SaveProfile accepted a profile without a preferred language")
	}
}
