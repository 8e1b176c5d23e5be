package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImportType_Schema(t *testing.T) {
	t.Run("required fields are part of the schema", func(t *testing.T) {
		for _, it := range []ImportType{ImportTransactions, ImportRecurring, ImportAssets} {
			for _, f := range it.RequiredFields() {
				assert.True(t, it.Accepts(f), "%s should accept %s", it, f)
			}
			assert.True(t, it.Accepts(FieldIgnore))
		}
	})

	t.Run("fields are scoped per target", func(t *testing.T) {
		assert.True(t, ImportTransactions.Accepts(FieldDate))
		assert.False(t, ImportTransactions.Accepts(FieldDayOfMonth))
		assert.False(t, ImportRecurring.Accepts(FieldDate))
		assert.True(t, ImportAssets.Accepts(FieldCurrentValue))
		assert.False(t, ImportAssets.Accepts(FieldAmount))
	})

	t.Run("returned slices are copies", func(t *testing.T) {
		fields := ImportAssets.RequiredFields()
		fields[0] = FieldIgnore
		assert.Equal(t, []Field{FieldName, FieldCurrentValue}, ImportAssets.RequiredFields())
	})

	t.Run("unknown type", func(t *testing.T) {
		assert.False(t, ImportType("contas").Valid())
		assert.Empty(t, ImportType("contas").Fields())
	})
}

func TestPreparedImportData_Eligible(t *testing.T) {
	data := PreparedImportData{Items: []PreparedImportItem{
		{ID: 0, Selected: true, Valid: true},
		{ID: 1, Selected: false, Valid: true},
		{ID: 2, Selected: true, Valid: false},
		{ID: 3, Selected: true, Valid: true},
	}}
	assert.Equal(t, 2, data.Eligible())
}

func TestPreparedImportItem_Value(t *testing.T) {
	v := 10.5
	assert.Equal(t, 10.5, (&PreparedImportItem{Valor: &v}).Value())
	assert.Equal(t, 10.5, (&PreparedImportItem{ValorAtual: &v}).Value())
	assert.Zero(t, (&PreparedImportItem{}).Value())
	assert.Equal(t, "Tesouro", (&PreparedImportItem{Nome: "Tesouro", Descricao: "x"}).Label())
}
