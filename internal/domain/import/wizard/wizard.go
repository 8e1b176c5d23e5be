// Package wizard tracks the steps of one import session.
package wizard

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
)

// ErrInvalidTransition is returned when an event is not allowed in the current state.
var ErrInvalidTransition = errors.New("invalid wizard transition")

// State is a step of the import wizard.
type State string

const (
	StateIdle                 State = "idle"
	StateAnalyzing            State = "analyzing"
	StateAwaitingMapping      State = "awaiting_mapping"
	StateAwaitingDestination  State = "awaiting_destination"
	StatePreparing            State = "preparing"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateImporting            State = "importing"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
)

// Terminal reports whether no further step is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

var transitions = map[State][]State{
	StateIdle:                 {StateAnalyzing},
	StateAnalyzing:            {StateAwaitingMapping, StateFailed},
	StateAwaitingMapping:      {StateAwaitingDestination},
	StateAwaitingDestination:  {StatePreparing, StateAwaitingMapping},
	StatePreparing:            {StateAwaitingConfirmation, StateAwaitingDestination, StateFailed},
	StateAwaitingConfirmation: {StateImporting, StateAwaitingMapping, StateAwaitingDestination},
	StateImporting:            {StateCompleted, StateFailed},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Config is the user's choices for an import. The With methods return
// deep copies and never touch the receiver.
type Config struct {
	ImportType        model.ImportType
	Mappings          []model.ColumnMapping
	Mode              model.TypeMode
	DefaultAccountID  *uuid.UUID
	DefaultCardID     *uuid.UUID
	DefaultCategoryID *uuid.UUID
}

// NewConfig returns a config for importType in auto mode.
func NewConfig(importType model.ImportType) Config {
	return Config{ImportType: importType, Mode: model.ModeAuto}
}

func (c Config) WithImportType(t model.ImportType) Config {
	c = c.clone()
	c.ImportType = t
	return c
}

func (c Config) WithMappings(m []model.ColumnMapping) Config {
	c = c.clone()
	c.Mappings = slices.Clone(m)
	return c
}

func (c Config) WithMode(m model.TypeMode) Config {
	c = c.clone()
	c.Mode = m
	return c
}

func (c Config) WithDefaultAccount(id *uuid.UUID) Config {
	c = c.clone()
	c.DefaultAccountID = cloneID(id)
	return c
}

func (c Config) WithDefaultCard(id *uuid.UUID) Config {
	c = c.clone()
	c.DefaultCardID = cloneID(id)
	return c
}

func (c Config) WithDefaultCategory(id *uuid.UUID) Config {
	c = c.clone()
	c.DefaultCategoryID = cloneID(id)
	return c
}

func (c Config) clone() Config {
	c.Mappings = slices.Clone(c.Mappings)
	c.DefaultAccountID = cloneID(c.DefaultAccountID)
	c.DefaultCardID = cloneID(c.DefaultCardID)
	c.DefaultCategoryID = cloneID(c.DefaultCategoryID)
	return c
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// Wizard holds the current step and configuration of one session. It is
// not safe for concurrent use; callers serialize access per session.
type Wizard struct {
	state  State
	config Config
	err    error
}

// New returns a wizard in the idle state.
func New() *Wizard {
	return &Wizard{state: StateIdle, config: NewConfig("")}
}

func (w *Wizard) State() State   { return w.state }
func (w *Wizard) Config() Config { return w.config }

// Err is the failure that moved the wizard to StateFailed.
func (w *Wizard) Err() error { return w.err }

func (w *Wizard) move(to State) error {
	if !CanTransition(w.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.state, to)
	}
	w.state = to
	return nil
}

// StartAnalysis begins analyzing an uploaded file.
func (w *Wizard) StartAnalysis() error {
	return w.move(StateAnalyzing)
}

// Analyzed records the suggested import type and mappings.
func (w *Wizard) Analyzed(importType model.ImportType, mappings []model.ColumnMapping) error {
	if err := w.move(StateAwaitingMapping); err != nil {
		return err
	}
	w.config = w.config.WithImportType(importType).WithMappings(mappings)
	return nil
}

// ConfirmMapping stores the mappings the user accepted.
func (w *Wizard) ConfirmMapping(importType model.ImportType, mappings []model.ColumnMapping) error {
	if err := w.move(StateAwaitingDestination); err != nil {
		return err
	}
	w.config = w.config.WithImportType(importType).WithMappings(mappings)
	return nil
}

// BackToMapping re-enters the mapping step to correct it.
func (w *Wizard) BackToMapping() error {
	return w.move(StateAwaitingMapping)
}

// StartPreparing applies the destination choices and begins row preparation.
func (w *Wizard) StartPreparing(cfg Config) error {
	if err := w.move(StatePreparing); err != nil {
		return err
	}
	w.config = cfg.clone()
	return nil
}

// Prepared marks rows as ready for review.
func (w *Wizard) Prepared() error {
	return w.move(StateAwaitingConfirmation)
}

// BackToDestination returns to the destination step, either after a
// preparation error or to pick another destination before importing.
func (w *Wizard) BackToDestination() error {
	return w.move(StateAwaitingDestination)
}

// StartImport begins executing the import.
func (w *Wizard) StartImport() error {
	return w.move(StateImporting)
}

// Completed marks the import as finished.
func (w *Wizard) Completed() error {
	return w.move(StateCompleted)
}

// Fail moves to StateFailed and remembers err.
func (w *Wizard) Fail(err error) error {
	if moveErr := w.move(StateFailed); moveErr != nil {
		return moveErr
	}
	w.err = err
	return nil
}

// Reset discards all state. Rows already imported are not touched.
func (w *Wizard) Reset() {
	*w = *New()
}
