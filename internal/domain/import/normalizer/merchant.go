package normalizer

import (
	"regexp"
	"slices"
	"strings"
)

// merchantHint ties a merchant keyword to the category name it usually
// belongs to. Earlier entries win when several keywords match.
type merchantHint struct {
	keyword  string
	category string
}

var defaultMerchantHints = []merchantHint{
	// Delivery before the rideshare brand it contains.
	{"uber eats", "Alimentação"},
	{"ifood", "Alimentação"},
	{"rappi", "Alimentação"},
	{"restaurante", "Alimentação"},
	{"padaria", "Alimentação"},
	{"lanchonete", "Alimentação"},
	{"supermercado", "Mercado"},
	{"carrefour", "Mercado"},
	{"assai", "Mercado"},
	{"pao de acucar", "Mercado"},
	{"atacadao", "Mercado"},
	{"uber", "Transporte"},
	{"99app", "Transporte"},
	{"99 pop", "Transporte"},
	{"posto", "Transporte"},
	{"shell", "Transporte"},
	{"ipiranga", "Transporte"},
	{"estacionamento", "Transporte"},
	{"netflix", "Assinaturas"},
	{"spotify", "Assinaturas"},
	{"disney", "Assinaturas"},
	{"amazon prime", "Assinaturas"},
	{"youtube premium", "Assinaturas"},
	{"drogasil", "Saúde"},
	{"droga raia", "Saúde"},
	{"farmacia", "Saúde"},
	{"unimed", "Saúde"},
	{"amazon", "Compras"},
	{"mercado livre", "Compras"},
	{"shopee", "Compras"},
	{"magalu", "Compras"},
	{"aluguel", "Moradia"},
	{"condominio", "Moradia"},
	{"sabesp", "Moradia"},
	{"vivo", "Moradia"},
	{"salario", "Salário"},
	{"escola", "Educação"},
	{"faculdade", "Educação"},
	{"udemy", "Educação"},
}

var (
	descriptionPrefixes = []string{
		"compra cartao ", "compra no debito ", "compra ", "pix enviado ", "pix recebido ",
		"pagamento ", "pag ", "ted ", "doc ", "transferencia ",
	}
	trailingReference = regexp.MustCompile(`\s+\d{4,}$`)
	trailingDate      = regexp.MustCompile(`\s+\d{1,2}/\d{1,2}(/\d{2,4})?$`)
)

// MerchantHinter proposes a category name from a transaction description.
type MerchantHinter struct {
	hints []merchantHint
	set   *keywordSet
}

// NewMerchantHinter creates a hinter with the built-in Brazilian merchant list.
func NewMerchantHinter() *MerchantHinter {
	return newMerchantHinter(defaultMerchantHints)
}

func newMerchantHinter(hints []merchantHint) *MerchantHinter {
	keywords := make([]string, len(hints))
	for i, h := range hints {
		keywords[i] = h.keyword
	}
	return &MerchantHinter{hints: hints, set: newKeywordSet(keywords)}
}

// CategoryHint returns the category name suggested for description, if any.
func (m *MerchantHinter) CategoryHint(description string) (string, bool) {
	cleaned := CleanMerchant(description)
	if cleaned == "" {
		return "", false
	}
	matches := m.set.match(cleaned)
	if len(matches) == 0 {
		return "", false
	}
	return m.hints[slices.Min(matches)].category, true
}

// CleanMerchant folds a bank description down to its merchant part:
// payment prefixes, trailing references and trailing dates are removed.
func CleanMerchant(description string) string {
	s := CleanText(Fold(description))
	for _, prefix := range descriptionPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	s = trailingReference.ReplaceAllString(s, "")
	s = trailingDate.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
