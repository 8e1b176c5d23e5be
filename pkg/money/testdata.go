package money

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// TestDataGenerator generates realistic statement rows using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(0), // Random seed
	}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(seed),
	}
}

// StatementLine is one generated bank statement entry.
type StatementLine struct {
	Date        time.Time
	Description string
	Amount      *Money
	Category    string
	IsIncome    bool
}

// Row renders the line the way a Brazilian bank export does:
// DD/MM/YYYY date, free text, "1.234,56" amount with the sign kept.
func (l StatementLine) Row() []string {
	return []string{l.Date.Format("02/01/2006"), l.Description, l.Amount.Plain()}
}

// StatementLine generates a single random entry. Expenses are negative.
func (g *TestDataGenerator) StatementLine() StatementLine {
	end := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	date := g.faker.DateRange(end.AddDate(-1, 0, 0), end)

	if g.faker.Number(1, 10) == 1 {
		return StatementLine{
			Date:        date,
			Description: pick(g, incomeDescriptions),
			Amount:      g.RandomAmountRange(BRL, 1500, 15000),
			Category:    "Salário",
			IsIncome:    true,
		}
	}

	e := expenses[g.faker.Number(0, len(expenses)-1)]
	return StatementLine{
		Date:        date,
		Description: e.description,
		Amount:      g.RandomAmountRange(BRL, 5, 800).Negate(),
		Category:    e.category,
	}
}

// StatementLines generates count random entries.
func (g *TestDataGenerator) StatementLines(count int) []StatementLine {
	lines := make([]StatementLine, count)
	for i := range lines {
		lines[i] = g.StatementLine()
	}
	return lines
}

// RandomAmountRange generates a random Money value within a range of whole units.
func (g *TestDataGenerator) RandomAmountRange(currency string, minUnits, maxUnits float64) *Money {
	return NewFromFloat(g.faker.Float64Range(minUnits, maxUnits), currency)
}

// AssetName returns a random investment product name.
func (g *TestDataGenerator) AssetName() string {
	return pick(g, assetNames)
}

type expense struct {
	description string
	category    string
}

var expenses = []expense{
	{"COMPRA CARTAO IFOOD *RESTAURANTE", "Alimentação"},
	{"PAG SUPERMERCADO EXTRA", "Mercado"},
	{"UBER *VIAGEM", "Transporte"},
	{"POSTO SHELL", "Transporte"},
	{"NETFLIX.COM", "Assinaturas"},
	{"SPOTIFY", "Assinaturas"},
	{"DROGASIL", "Saúde"},
	{"AMAZON MARKETPLACE", "Compras"},
	{"PIX ENVIADO ALUGUEL", "Moradia"},
	{"PADARIA PAO QUENTE", "Alimentação"},
}

var incomeDescriptions = []string{
	"SALARIO EMPRESA",
	"PIX RECEBIDO",
	"RENDIMENTO POUPANCA",
}

var assetNames = []string{
	"Tesouro Selic 2029",
	"CDB Banco Inter",
	"PETR4",
	"Fundo Imobiliário HGLG11",
	"LCI Nubank",
}

func pick(g *TestDataGenerator, values []string) string {
	return values[g.faker.Number(0, len(values)-1)]
}
