package storage

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"time"

	"carteira/internal/core"
	"carteira/internal/events"
)

type seedTransaction struct {
	title    string
	amount   float64
	typ      core.TransactionType
	daysAgo  int
	category string
	notes    string
}

// seedCategories and seedTransactions are the deterministic first-run
// sample set: six categories and ten transactions spread over the past
// twenty days, all owned by the demo user.
var seedCategories = []string{
	"Renda", "Saúde", "Alimentação", "Lazer", "Pequeno Negócio", "Viagem",
}

var seedTransactions = []seedTransaction{
	{"Salário", 4500, core.Income, 15, "Renda", "Pagamento mensal"},
	{"Aluguel (fundos)", 1200, core.Income, 4, "Renda", "Aluguel da casa dos fundos"},
	{"Despesa médica", 800, core.Expense, 20, "Saúde", "Dentista"},
	{"Supermercado", 230.50, core.Expense, 12, "Alimentação", "Compras semanais"},
	{"Pipoca e ingresso", 40, core.Expense, 7, "Lazer", "Cinema"},
	{"Fliperama", 30, core.Expense, 8, "Lazer", "Jogos"},
	{"Vendas mensais", 180, core.Income, 1, "Pequeno Negócio", "Venda da lojinha de artesanato"},
	{"Hotel", 420, core.Expense, 2, "Viagem", "Férias"},
	{"Compra de material", 130, core.Expense, 14, "Pequeno Negócio", "Material para artesanato"},
	{"Academia", 80, core.Expense, 10, "Saúde", "Pagamento mensal da academia"},
}

// seedSampleData populates an empty transactions table with the demo data
// set. A failed row is logged and skipped; seeding never aborts startup.
func (s *TransactionStore) seedSampleData(ctx context.Context) {
	var count int
	err := s.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count)
	if err != nil {
		slog.WarnContext(ctx, "Seeding check failed", "error", err)
		return
	}
	if count > 0 {
		return
	}

	// The demo user and the categories are foreign-key targets of the rows
	// about to be written.
	if err := s.users.ensure(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to ensure demo user for seeding", "error", err)
		return
	}

	categoryIDs := make(map[string]string, len(seedCategories))
	for _, name := range seedCategories {
		id := seedCategoryID(name, DemoUserID)
		c := core.Category{ID: id, Name: name, UserID: DemoUserID}
		if err := s.categories.CreateCategory(ctx, c); err != nil {
			slog.WarnContext(ctx, "Failed to seed category", "name", name, "error", err)
			continue
		}
		categoryIDs[name] = id
	}

	now := time.Now()
	seeded := 0
	for i, st := range seedTransactions {
		t := core.Transaction{
			ID:         fmt.Sprintf("seed-txn-%02d", i+1),
			Title:      st.title,
			Amount:     st.amount,
			Type:       st.typ,
			Date:       now.AddDate(0, 0, -st.daysAgo),
			CategoryID: categoryIDs[st.category],
			Notes:      st.notes,
			UserID:     DemoUserID,
		}
		if err := s.insertTransaction(ctx, t); err != nil {
			slog.WarnContext(ctx, "Failed to seed transaction", "title", st.title, "error", err)
			continue
		}
		seeded++
	}

	slog.InfoContext(ctx, "Seeded sample data",
		"categories", len(categoryIDs), "transactions", seeded)
	if seeded > 0 {
		s.bus.Publish(events.TransactionsChanged)
	}
}

// seedCategoryID derives a stable category id from the owner and the
// lower-cased name, so repeated seeding runs converge on the same rows.
func seedCategoryID(name, userID string) string {
	h := fnv.New64a()
	h.Write([]byte(userID))
	h.Write([]byte{'/'})
	h.Write([]byte(strings.ToLower(name)))
	return fmt.Sprintf("cat-%016x", h.Sum64())
}
