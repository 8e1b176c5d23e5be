package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
)

func TestParseDate(t *testing.T) {
	now = func() time.Time { return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"day first slash", "15/03/2024", "2024-03-15", true},
		{"day first dash", "5-1-2024", "2024-01-05", true},
		{"day first dot two digit year", "15.03.24", "2024-03-15", true},
		{"iso is identity", "2024-03-15", "2024-03-15", true},
		{"iso with time", "2024-03-15T10:30:00Z", "2024-03-15", true},
		{"iso slash", "2024/3/5", "2024-03-05", true},
		{"day and month name", "15 mar", "2024-03-15", true},
		{"portuguese long form", "15 de março de 2023", "2023-03-15", true},
		{"month name with year", "02-Fev-2024", "2024-02-02", true},
		{"serial as text", "45366", "2024-03-15", true},
		{"english layout", "Mar 15, 2024", "2024-03-15", true},
		{"impossible day", "31/02/2024", "", false},
		{"month out of range", "15/13/2024", "", false},
		{"garbage", "abc", "", false},
		{"empty", "", "", false},
		{"small number is not a serial", "1234", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSerialToDate(t *testing.T) {
	got, ok := SerialToDate(45366)
	assert.True(t, ok)
	assert.Equal(t, "2024-03-15", got)

	got, ok = SerialToDate(45366.75)
	assert.True(t, ok)
	assert.Equal(t, "2024-03-15", got, "time of day is dropped")

	_, ok = SerialToDate(0)
	assert.False(t, ok)

	assert.True(t, IsSerialDate(45366))
	assert.False(t, IsSerialDate(1500.5))
}

func TestLooksLikeDate(t *testing.T) {
	assert.True(t, LooksLikeDate("01/02/2024"))
	assert.True(t, LooksLikeDate("2024-02-01"))
	assert.True(t, LooksLikeDate("01 fev"))
	assert.False(t, LooksLikeDate("Supermercado"))
	assert.False(t, LooksLikeDate("1.234,56"))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		ok       bool
	}{
		{"brazilian currency", "R$ 1.234,56", 1234.56, true},
		{"plain decimal", "1234.56", 1234.56, true},
		{"us thousands", "1,234.56", 1234.56, true},
		{"decimal comma", "45,9", 45.9, true},
		{"negative prefix", "-R$ 50,00", -50, true},
		{"negative after symbol", "R$ -50,00", -50, true},
		{"accounting parentheses", "(12,50)", -12.5, true},
		{"trailing minus", "12,50-", -12.5, true},
		{"explicit plus", "+300", 300, true},
		{"pt-BR thousands only", "1.234", 1234, true},
		{"leading zero keeps decimal", "0.125", 0.125, true},
		{"many thousand groups", "1.234.567", 1234567, true},
		{"non-breaking space", "R$ 1.000,00", 1000, true},
		{"empty", "", 0, false},
		{"text", "abc", 0, false},
		{"symbol only", "R$", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAmount(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, got, 0.0001)
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input    string
		expected model.TransactionKind
		ok       bool
	}{
		{"Receita", model.KindIncome, true},
		{"ENTRADA", model.KindIncome, true},
		{"+", model.KindIncome, true},
		{"Despesa", model.KindExpense, true},
		{"Saída", model.KindExpense, true},
		{"qualquer coisa", model.KindExpense, true},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseKind(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "valordeaquisicao", NormalizeKey("Valor de Aquisição"))
	assert.Equal(t, "diadomes", NormalizeKey(" Dia do mês "))
	assert.Equal(t, "descricao", NormalizeKey("DESCRIÇÃO"))
	assert.Equal(t, "", NormalizeKey("--"))
}
