// Package lookup resolves free-text category, account and card names to the
// user's records. A Context is built once per import session and is never
// refreshed while the session lives.
package lookup

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/smart-import/internal/domain/import/normalizer"
)

// maxDistance is the Levenshtein distance within which a normalized name
// still resolves. Names shorter than minFuzzyLen only resolve exactly.
const (
	maxDistance = 2
	minFuzzyLen = 4
)

// Category is a user category.
type Category struct {
	ID   uuid.UUID
	Name string
	Kind string
}

// Account is a bank account.
type Account struct {
	ID   uuid.UUID
	Name string
}

// Card is a credit card.
type Card struct {
	ID   uuid.UUID
	Name string
}

// Source loads the records a Context resolves against.
type Source interface {
	ListCategories(ctx context.Context, userID uuid.UUID) ([]Category, error)
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]Account, error)
	ListCards(ctx context.Context, userID uuid.UUID) ([]Card, error)
}

// Context holds the per-session lookup tables. It is read-only after
// construction and safe for concurrent use.
type Context struct {
	categories index
	accounts   index
	cards      index
}

// Load reads categories, accounts and cards for userID from src.
func Load(ctx context.Context, src Source, userID uuid.UUID) (*Context, error) {
	categories, err := src.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	accounts, err := src.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	cards, err := src.ListCards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	return New(categories, accounts, cards), nil
}

// New builds a Context from already loaded records.
func New(categories []Category, accounts []Account, cards []Card) *Context {
	c := &Context{
		categories: newIndex(len(categories)),
		accounts:   newIndex(len(accounts)),
		cards:      newIndex(len(cards)),
	}
	for _, cat := range categories {
		c.categories.add(cat.ID, cat.Name)
	}
	for _, acc := range accounts {
		c.accounts.add(acc.ID, acc.Name)
	}
	for _, card := range cards {
		c.cards.add(card.ID, card.Name)
	}
	return c
}

// Empty is a Context that resolves nothing.
func Empty() *Context {
	return New(nil, nil, nil)
}

// Category resolves a category name.
func (c *Context) Category(name string) (uuid.UUID, bool) {
	return c.categories.resolve(name)
}

// Account resolves an account name.
func (c *Context) Account(name string) (uuid.UUID, bool) {
	return c.accounts.resolve(name)
}

// Card resolves a card name.
func (c *Context) Card(name string) (uuid.UUID, bool) {
	return c.cards.resolve(name)
}

// Sizes reports how many categories, accounts and cards were loaded.
func (c *Context) Sizes() (categories, accounts, cards int) {
	return len(c.categories.entries), len(c.accounts.entries), len(c.cards.entries)
}

type entry struct {
	id  uuid.UUID
	key string
}

// index resolves exact names first, then normalized keys, then the closest
// normalized key within maxDistance. The first record wins on ties.
type index struct {
	exact      map[string]uuid.UUID
	normalized map[string]uuid.UUID
	entries    []entry
}

func newIndex(size int) index {
	return index{
		exact:      make(map[string]uuid.UUID, size),
		normalized: make(map[string]uuid.UUID, size),
		entries:    make([]entry, 0, size),
	}
}

func (ix *index) add(id uuid.UUID, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if _, ok := ix.exact[name]; !ok {
		ix.exact[name] = id
	}
	key := normalizer.NormalizeKey(name)
	if key == "" {
		return
	}
	if _, ok := ix.normalized[key]; !ok {
		ix.normalized[key] = id
		ix.entries = append(ix.entries, entry{id: id, key: key})
	}
}

func (ix *index) resolve(name string) (uuid.UUID, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, false
	}
	if id, ok := ix.exact[name]; ok {
		return id, true
	}

	key := normalizer.NormalizeKey(name)
	if id, ok := ix.normalized[key]; ok {
		return id, true
	}
	if len(key) < minFuzzyLen {
		return uuid.Nil, false
	}

	best, bestDist := uuid.Nil, maxDistance+1
	for _, e := range ix.entries {
		if len(e.key) < minFuzzyLen {
			continue
		}
		if d := fuzzy.LevenshteinDistance(key, e.key); d < bestDist {
			best, bestDist = e.id, d
		}
	}
	return best, bestDist <= maxDistance
}
