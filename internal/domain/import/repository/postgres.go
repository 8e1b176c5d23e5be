package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/smart-import/internal/domain/import/lookup"
	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a new PostgreSQL import store
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// ListCategories returns the user's categories ordered by name
func (s *PostgresStore) ListCategories(ctx context.Context, userID uuid.UUID) ([]lookup.Category, error) {
	query := `
		SELECT id, nome, COALESCE(tipo, '')
		FROM categorias
		WHERE user_id = $1
		ORDER BY nome
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []lookup.Category
	for rows.Next() {
		var c lookup.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ListAccounts returns the user's bank accounts ordered by name
func (s *PostgresStore) ListAccounts(ctx context.Context, userID uuid.UUID) ([]lookup.Account, error) {
	rows, err := s.db.Query(ctx, `SELECT id, nome FROM contas WHERE user_id = $1 ORDER BY nome`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []lookup.Account
	for rows.Next() {
		var a lookup.Account
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ListCards returns the user's credit cards ordered by name
func (s *PostgresStore) ListCards(ctx context.Context, userID uuid.UUID) ([]lookup.Card, error) {
	rows, err := s.db.Query(ctx, `SELECT id, nome FROM cartoes WHERE user_id = $1 ORDER BY nome`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []lookup.Card
	for rows.Next() {
		var c lookup.Card
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// CreateTransaction inserts a row into transacoes
func (s *PostgresStore) CreateTransaction(ctx context.Context, tx Transaction) (uuid.UUID, error) {
	query := `
		INSERT INTO transacoes (
			user_id, data, descricao, valor, tipo, categoria_id, conta_id, cartao_id, observacoes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id uuid.UUID
	err := s.db.QueryRow(ctx, query,
		tx.UserID,
		tx.Data,
		tx.Descricao,
		tx.Valor,
		string(tx.Tipo),
		tx.CategoriaID,
		tx.ContaID,
		tx.CartaoID,
		tx.Observacoes,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return id, nil
}

// CreateRecurringTransaction inserts a row into transacoes_fixas
func (s *PostgresStore) CreateRecurringTransaction(ctx context.Context, tx RecurringTransaction) (uuid.UUID, error) {
	query := `
		INSERT INTO transacoes_fixas (
			user_id, descricao, valor, tipo, dia_mes, categoria_id, conta_id, cartao_id,
			data_inicio, data_fim, observacoes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	var id uuid.UUID
	err := s.db.QueryRow(ctx, query,
		tx.UserID,
		tx.Descricao,
		tx.Valor,
		string(tx.Tipo),
		tx.DiaMes,
		tx.CategoriaID,
		tx.ContaID,
		tx.CartaoID,
		tx.DataInicio,
		tx.DataFim,
		tx.Observacoes,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create recurring transaction: %w", err)
	}
	return id, nil
}

// CreateAsset inserts a row into patrimonio
func (s *PostgresStore) CreateAsset(ctx context.Context, asset Asset) (uuid.UUID, error) {
	query := `
		INSERT INTO patrimonio (
			user_id, nome, categoria, valor_atual, valor_aquisicao, data_aquisicao,
			instituicao, subcategoria, observacoes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id uuid.UUID
	err := s.db.QueryRow(ctx, query,
		asset.UserID,
		asset.Nome,
		asset.Categoria,
		asset.ValorAtual,
		asset.ValorAquisicao,
		asset.DataAquisicao,
		asset.Instituicao,
		asset.Subcategoria,
		asset.Observacoes,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create asset: %w", err)
	}
	return id, nil
}

// GetTemplate returns the saved mapping for a header fingerprint
func (s *PostgresStore) GetTemplate(ctx context.Context, userID uuid.UUID, fingerprint string) (*MappingTemplate, error) {
	query := `
		SELECT id, user_id, fingerprint, import_type, mappings, use_count, created_at, updated_at
		FROM mapping_templates
		WHERE user_id = $1 AND fingerprint = $2
	`

	tpl, err := scanTemplate(s.db.QueryRow(ctx, query, userID, fingerprint))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping template: %w", err)
	}
	return tpl, nil
}

// SaveTemplate creates or updates the mapping for a header fingerprint
func (s *PostgresStore) SaveTemplate(ctx context.Context, tpl MappingTemplate) (*MappingTemplate, error) {
	mappings, err := json.Marshal(tpl.Mappings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mappings: %w", err)
	}

	query := `
		INSERT INTO mapping_templates (user_id, fingerprint, import_type, mappings)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, fingerprint) DO UPDATE SET
			import_type = EXCLUDED.import_type,
			mappings = EXCLUDED.mappings,
			use_count = mapping_templates.use_count + 1,
			updated_at = now()
		RETURNING id, user_id, fingerprint, import_type, mappings, use_count, created_at, updated_at
	`

	saved, err := scanTemplate(s.db.QueryRow(ctx, query,
		tpl.UserID,
		tpl.Fingerprint,
		string(tpl.ImportType),
		mappings,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to save mapping template: %w", err)
	}
	return saved, nil
}

func scanTemplate(row pgx.Row) (*MappingTemplate, error) {
	var (
		tpl        MappingTemplate
		importType string
		mappings   []byte
	)
	if err := row.Scan(
		&tpl.ID, &tpl.UserID, &tpl.Fingerprint, &importType, &mappings,
		&tpl.UseCount, &tpl.CreatedAt, &tpl.UpdatedAt,
	); err != nil {
		return nil, err
	}
	tpl.ImportType = model.ImportType(importType)
	if err := json.Unmarshal(mappings, &tpl.Mappings); err != nil {
		return nil, fmt.Errorf("failed to decode mappings: %w", err)
	}
	return &tpl, nil
}
