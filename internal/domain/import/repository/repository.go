// Package repository provides database operations for smart import: lookup
// tables, the three destination tables and saved column mappings.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/smart-import/internal/domain/import/lookup"
	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DBTX is the subset of *pgxpool.Pool the store uses. pgxmock pools
// satisfy it in tests.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Transaction is a row of transacoes.
type Transaction struct {
	UserID      uuid.UUID
	Data        time.Time
	Descricao   string
	Valor       float64
	Tipo        model.TransactionKind
	CategoriaID *uuid.UUID
	ContaID     *uuid.UUID
	CartaoID    *uuid.UUID
	Observacoes string
}

// RecurringTransaction is a row of transacoes_fixas.
type RecurringTransaction struct {
	UserID      uuid.UUID
	Descricao   string
	Valor       float64
	Tipo        model.TransactionKind
	DiaMes      int
	CategoriaID *uuid.UUID
	ContaID     *uuid.UUID
	CartaoID    *uuid.UUID
	DataInicio  *time.Time
	DataFim     *time.Time
	Observacoes string
}

// Asset is a row of patrimonio.
type Asset struct {
	UserID         uuid.UUID
	Nome           string
	Categoria      string
	ValorAtual     float64
	ValorAquisicao *float64
	DataAquisicao  *time.Time
	Instituicao    string
	Subcategoria   string
	Observacoes    string
}

// MappingTemplate is a column mapping the user confirmed for files whose
// headers share a fingerprint.
type MappingTemplate struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Fingerprint string
	ImportType  model.ImportType
	Mappings    []model.ColumnMapping
	UseCount    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store is everything the import service persists or reads.
type Store interface {
	lookup.Source

	CreateTransaction(ctx context.Context, tx Transaction) (uuid.UUID, error)
	CreateRecurringTransaction(ctx context.Context, tx RecurringTransaction) (uuid.UUID, error)
	CreateAsset(ctx context.Context, asset Asset) (uuid.UUID, error)

	GetTemplate(ctx context.Context, userID uuid.UUID, fingerprint string) (*MappingTemplate, error)
	SaveTemplate(ctx context.Context, tpl MappingTemplate) (*MappingTemplate, error)
}
