package wizard

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
)

var mappings = []model.ColumnMapping{
	{ColumnIndex: 0, ColumnName: "Data", Field: model.FieldDate},
	{ColumnIndex: 1, ColumnName: "Descrição", Field: model.FieldDescription},
	{ColumnIndex: 2, ColumnName: "Valor", Field: model.FieldAmount},
}

func TestWizard_HappyPath(t *testing.T) {
	w := New()
	assert.Equal(t, StateIdle, w.State())

	require.NoError(t, w.StartAnalysis())
	require.NoError(t, w.Analyzed(model.ImportTransactions, mappings))
	assert.Equal(t, StateAwaitingMapping, w.State())
	assert.Equal(t, model.ImportTransactions, w.Config().ImportType)

	require.NoError(t, w.ConfirmMapping(model.ImportTransactions, mappings))
	require.NoError(t, w.StartPreparing(w.Config().WithMode(model.ModeExpense)))
	require.NoError(t, w.Prepared())
	assert.Equal(t, StateAwaitingConfirmation, w.State())
	assert.Equal(t, model.ModeExpense, w.Config().Mode)

	require.NoError(t, w.StartImport())
	require.NoError(t, w.Completed())
	assert.True(t, w.State().Terminal())
}

func TestWizard_CorrectionReentersMapping(t *testing.T) {
	w := New()
	require.NoError(t, w.StartAnalysis())
	require.NoError(t, w.Analyzed(model.ImportTransactions, mappings))
	require.NoError(t, w.ConfirmMapping(model.ImportTransactions, mappings))
	require.NoError(t, w.StartPreparing(w.Config()))
	require.NoError(t, w.Prepared())

	require.NoError(t, w.BackToDestination())
	assert.Equal(t, StateAwaitingDestination, w.State())

	require.NoError(t, w.BackToMapping())
	assert.Equal(t, StateAwaitingMapping, w.State())

	require.NoError(t, w.ConfirmMapping(model.ImportRecurring, mappings[1:]))
	assert.Equal(t, model.ImportRecurring, w.Config().ImportType)
	assert.Len(t, w.Config().Mappings, 2)
}

func TestWizard_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(w *Wizard)
		step  func(w *Wizard) error
	}{
		{
			name:  "import before analysis",
			setup: func(*Wizard) {},
			step:  (*Wizard).StartImport,
		},
		{
			name:  "confirm mapping while idle",
			setup: func(*Wizard) {},
			step: func(w *Wizard) error {
				return w.ConfirmMapping(model.ImportTransactions, mappings)
			},
		},
		{
			name: "prepare without destination step",
			setup: func(w *Wizard) {
				_ = w.StartAnalysis()
				_ = w.Analyzed(model.ImportTransactions, mappings)
			},
			step: func(w *Wizard) error { return w.StartPreparing(w.Config()) },
		},
		{
			name: "back to mapping after completion",
			setup: func(w *Wizard) {
				_ = w.StartAnalysis()
				_ = w.Analyzed(model.ImportTransactions, mappings)
				_ = w.ConfirmMapping(model.ImportTransactions, mappings)
				_ = w.StartPreparing(w.Config())
				_ = w.Prepared()
				_ = w.StartImport()
				_ = w.Completed()
			},
			step: (*Wizard).BackToMapping,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New()
			tt.setup(w)
			before := w.State()

			err := tt.step(w)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, before, w.State())
		})
	}
}

func TestWizard_FailAndReset(t *testing.T) {
	w := New()
	require.NoError(t, w.StartAnalysis())

	boom := errors.New("arquivo corrompido")
	require.NoError(t, w.Fail(boom))
	assert.Equal(t, StateFailed, w.State())
	assert.Equal(t, boom, w.Err())

	w.Reset()
	assert.Equal(t, StateIdle, w.State())
	assert.NoError(t, w.Err())
	assert.Empty(t, w.Config().Mappings)
}

func TestConfig_WithReturnsCopies(t *testing.T) {
	base := NewConfig(model.ImportTransactions).WithMappings(mappings)
	account := uuid.New()

	derived := base.WithMode(model.ModeIncome).WithDefaultAccount(&account)
	derived.Mappings[0].Field = model.FieldIgnore

	assert.Equal(t, model.ModeAuto, base.Mode)
	assert.Nil(t, base.DefaultAccountID)
	assert.Equal(t, model.FieldDate, base.Mappings[0].Field)
	assert.Equal(t, model.FieldDate, mappings[0].Field)

	account = uuid.Nil
	require.NotNil(t, derived.DefaultAccountID)
	assert.NotEqual(t, uuid.Nil, *derived.DefaultAccountID)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateAwaitingConfirmation, StateAwaitingDestination))
	assert.True(t, CanTransition(StateImporting, StateFailed))
	assert.False(t, CanTransition(StateCompleted, StateImporting))
	assert.False(t, CanTransition(StateIdle, StateImporting))
}
