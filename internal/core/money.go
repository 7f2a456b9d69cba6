package core

import (
	money "github.com/Rhymond/go-money"
)

// FormatBRL renders an amount in Brazilian reais, e.g. "R$4.500,00".
func FormatBRL(v float64) string {
	return money.NewFromFloat(v, money.BRL).Display()
}

// FormatSigned renders a transaction amount with the sign implied by its
// type, the way a statement line shows it: "+ R$180,00" / "- R$80,00".
func FormatSigned(t Transaction) string {
	sign := "+"
	if t.Type == Expense {
		sign = "-"
	}
	return sign + " " + FormatBRL(t.Amount)
}
