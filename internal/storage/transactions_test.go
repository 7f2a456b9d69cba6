package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"carteira/internal/core"
	"carteira/internal/events"
)

func TestTransactionStore_AddCoercesAndDefaults(t *testing.T) {
	stores, _, _ := newTestStores(t)
	ctx := context.Background()
	mustCreateUser(t, stores, "u1", "Ana", "ana@example.com")
	mustCreateCategory(t, stores, "c1", "Lazer", "u1")

	added, err := stores.Transactions.AddTransaction(ctx, core.Transaction{
		Title:      "Fliperama",
		Amount:     -30, // caller sign conventions must not leak into storage
		CategoryID: "c1",
		UserID:     "u1",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.ID == "" {
		t.Error("a fresh id should have been generated")
	}
	if added.Type != core.Income {
		t.Errorf("type should default to income, got %q", added.Type)
	}
	if added.Date.IsZero() {
		t.Error("date should default to now")
	}

	got, err := stores.Transactions.GetTransactions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(got))
	}
	if got[0].Amount != 30 {
		t.Errorf("amount = %v, want the non-negative magnitude 30", got[0].Amount)
	}
}

func TestTransactionStore_UpdateRoundTrip(t *testing.T) {
	stores, _, _ := newTestStores(t)
	ctx := context.Background()
	mustCreateUser(t, stores, "u1", "Ana", "ana@example.com")
	mustCreateCategory(t, stores, "c1", "Lazer", "u1")

	added, err := stores.Transactions.AddTransaction(ctx, core.Transaction{
		Title: "Cinema", Amount: 40, Type: core.Expense, CategoryID: "c1", UserID: "u1",
	})
	if err != nil {
		t.Fatal(err)
	}

	updated := *added
	updated.Title = "X"
	if err := stores.Transactions.UpdateTransaction(ctx, updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := stores.Transactions.GetTransactions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 transaction after full-record update, got %d", len(got))
	}
	if got[0].ID != added.ID {
		t.Errorf("id changed across update: %q vs %q", got[0].ID, added.ID)
	}
	if got[0].Title != "X" {
		t.Errorf("title = %q, want X", got[0].Title)
	}
}

func TestTransactionStore_DeleteTransaction(t *testing.T) {
	stores, _, _ := newTestStores(t)
	ctx := context.Background()
	mustCreateUser(t, stores, "u1", "Ana", "ana@example.com")
	mustCreateCategory(t, stores, "c1", "Lazer", "u1")

	added, err := stores.Transactions.AddTransaction(ctx, core.Transaction{
		Title: "Cinema", Amount: 40, Type: core.Expense, CategoryID: "c1", UserID: "u1",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := stores.Transactions.DeleteTransaction(ctx, added.ID); err != nil {
		t.Fatal(err)
	}

	got, err := stores.Transactions.GetTransactions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no transactions, got %d", len(got))
	}
}

func TestTransactionStore_OrderedByDateDescending(t *testing.T) {
	stores, _, _ := newTestStores(t)
	ctx := context.Background()
	mustCreateUser(t, stores, "u1", "Ana", "ana@example.com")
	mustCreateCategory(t, stores, "c1", "Lazer", "u1")

	now := time.Now()
	for i, title := range []string{"oldest", "middle", "newest"} {
		_, err := stores.Transactions.AddTransaction(ctx, core.Transaction{
			Title:      title,
			Amount:     1,
			Type:       core.Expense,
			Date:       now.AddDate(0, 0, -10+i*5),
			CategoryID: "c1",
			UserID:     "u1",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := stores.Transactions.GetTransactions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"newest", "middle", "oldest"}
	for i, w := range want {
		if got[i].Title != w {
			t.Errorf("position %d: got %q, want %q", i, got[i].Title, w)
		}
	}
}

func TestTransactionStore_SessionFallback(t *testing.T) {
	stores, _, _ := newTestStores(t)
	ctx := context.Background()
	mustCreateUser(t, stores, "u1", "Ana", "ana@example.com")
	mustCreateCategory(t, stores, "c1", "Lazer", "u1")

	// Signed out: no acting user can be resolved.
	if _, err := stores.Transactions.GetTransactions(ctx, ""); !errors.Is(err, core.ErrNoSessionUser) {
		t.Fatalf("expected ErrNoSessionUser when signed out, got %v", err)
	}

	if err := stores.Session.SetCurrentUserID(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	added, err := stores.Transactions.AddTransaction(ctx, core.Transaction{
		Title: "Cinema", Amount: 40, Type: core.Expense, CategoryID: "c1",
	})
	if err != nil {
		t.Fatalf("add with session user: %v", err)
	}
	if added.UserID != "u1" {
		t.Errorf("acting user should come from the session, got %q", added.UserID)
	}

	got, err := stores.Transactions.GetTransactions(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("expected the session user's transaction, got %d rows", len(got))
	}
}

func TestTransactionStore_ForeignKeysEnforced(t *testing.T) {
	stores, _, _ := newTestStores(t)
	ctx := context.Background()
	mustCreateUser(t, stores, "u1", "Ana", "ana@example.com")

	_, err := stores.Transactions.AddTransaction(ctx, core.Transaction{
		Title: "Cinema", Amount: 40, Type: core.Expense, CategoryID: "ghost", UserID: "u1",
	})
	if err == nil {
		t.Fatal("expected a foreign-key violation for a dangling category")
	}
	if !IsConstraintViolation(err) {
		t.Errorf("expected IsConstraintViolation, got %v", err)
	}
}

func TestTransactionStore_DeletingUserCascades(t *testing.T) {
	stores, _, db := newTestStores(t)
	ctx := context.Background()
	mustCreateUser(t, stores, "u1", "Ana", "ana@example.com")
	mustCreateCategory(t, stores, "c1", "Lazer", "u1")

	added, err := stores.Transactions.AddTransaction(ctx, core.Transaction{
		Title: "Cinema", Amount: 40, Type: core.Expense, CategoryID: "c1", UserID: "u1",
	})
	if err != nil {
		t.Fatal(err)
	}
	// The RESTRICT guard on category_id also applies inside a cascade, so
	// the dependent entry goes first.
	if err := stores.Transactions.DeleteTransaction(ctx, added.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := db.sql.ExecContext(ctx, `DELETE FROM users WHERE id = 'u1'`); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	cats, err := stores.Categories.GetCategories(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 0 {
		t.Errorf("user removal should cascade to categories, got %d rows", len(cats))
	}
}

func TestTransactionStore_AllTransactionsIgnoresScope(t *testing.T) {
	stores, _, _ := newTestStores(t)
	ctx := context.Background()
	mustCreateUser(t, stores, "u1", "Ana", "ana@example.com")
	mustCreateUser(t, stores, "u2", "Beto", "beto@example.com")
	mustCreateCategory(t, stores, "c1", "Lazer", "u1")
	mustCreateCategory(t, stores, "c2", "Lazer", "u2")

	for _, owner := range []struct{ cat, uid string }{{"c1", "u1"}, {"c2", "u2"}} {
		_, err := stores.Transactions.AddTransaction(ctx, core.Transaction{
			Title: "x", Amount: 1, Type: core.Expense, CategoryID: owner.cat, UserID: owner.uid,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	all, err := stores.Transactions.AllTransactions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("legacy no-scope read should span users, got %d rows", len(all))
	}
}

func TestTransactionStore_PublishesChanges(t *testing.T) {
	stores, bus, _ := newTestStores(t)
	ctx := context.Background()
	mustCreateUser(t, stores, "u1", "Ana", "ana@example.com")
	mustCreateCategory(t, stores, "c1", "Lazer", "u1")
	mustCreateCategory(t, stores, "c2", "Renda", "u1")

	var notified int
	bus.Subscribe(events.TransactionsChanged, func() { notified++ })

	added, err := stores.Transactions.AddTransaction(ctx, core.Transaction{
		Title: "Cinema", Amount: 40, Type: core.Expense, CategoryID: "c1", UserID: "u1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := stores.Transactions.UpdateTransaction(ctx, *added); err != nil {
		t.Fatal(err)
	}
	if err := stores.Transactions.ReassignCategory(ctx, "c1", "c2", "u1"); err != nil {
		t.Fatal(err)
	}
	if err := stores.Transactions.DeleteTransaction(ctx, added.ID); err != nil {
		t.Fatal(err)
	}

	if notified != 4 {
		t.Errorf("expected 4 notifications (add, update, reassign, delete), got %d", notified)
	}
}

func TestTransactionStore_Summary(t *testing.T) {
	stores, _, _ := newTestStores(t)
	ctx := context.Background()
	mustCreateUser(t, stores, "u1", "Ana", "ana@example.com")
	mustCreateCategory(t, stores, "c1", "Renda", "u1")

	add := func(amount float64, typ core.TransactionType) {
		t.Helper()
		_, err := stores.Transactions.AddTransaction(ctx, core.Transaction{
			Title: "x", Amount: amount, Type: typ, CategoryID: "c1", UserID: "u1",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	add(100, core.Income)
	add(80, core.Income)
	add(40, core.Expense)

	sum, err := stores.Transactions.Summary(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Income != 180 {
		t.Errorf("income = %v, want 180", sum.Income)
	}
	if sum.Expense != 40 {
		t.Errorf("expense = %v, want 40", sum.Expense)
	}
	if sum.Balance != 140 {
		t.Errorf("balance = %v, want 140", sum.Balance)
	}
}

func TestTransactionStore_FirstRunSeeding(t *testing.T) {
	db := newTestDB(t)
	stores := NewStores(db, events.NewBus(), Options{SeedDemoData: true})
	ctx := context.Background()

	got, err := stores.Transactions.GetTransactions(ctx, DemoUserID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 seeded transactions, got %d", len(got))
	}
	for _, tr := range got {
		if tr.UserID != DemoUserID {
			t.Errorf("seeded transaction %s owned by %q, want demo user", tr.ID, tr.UserID)
		}
		if tr.CategoryID == "" {
			t.Errorf("seeded transaction %s has no category", tr.ID)
		}
		if tr.Amount < 0 {
			t.Errorf("seeded transaction %s has negative amount %v", tr.ID, tr.Amount)
		}
	}

	cats, err := stores.Categories.GetCategories(ctx, DemoUserID)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 6 {
		t.Errorf("expected 6 seeded categories, got %d", len(cats))
	}

	// Newest first: the one-day-old sale leads.
	if got[0].Title != "Vendas mensais" {
		t.Errorf("newest seeded transaction = %q, want Vendas mensais", got[0].Title)
	}
}

func TestTransactionStore_SeedingIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	stores := NewStores(db, events.NewBus(), Options{SeedDemoData: true})
	if _, err := stores.Transactions.GetTransactions(ctx, DemoUserID); err != nil {
		t.Fatal(err)
	}

	// A second store generation over the same file simulates a process
	// restart; the non-empty table must suppress reseeding.
	restarted := NewStores(db, events.NewBus(), Options{SeedDemoData: true})
	got, err := restarted.Transactions.GetTransactions(ctx, DemoUserID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Errorf("expected the original 10 rows after restart, got %d", len(got))
	}
}
