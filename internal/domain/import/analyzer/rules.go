package analyzer

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
)

// fieldRule maps a normalized column name to a field. When types is set the
// rule only applies to columns of those detected types.
type fieldRule struct {
	pattern  *regexp.Regexp
	field    model.Field
	priority int
	types    []model.ColumnType
}

func rule(pattern string, field model.Field, priority int, types ...model.ColumnType) fieldRule {
	return fieldRule{pattern: regexp.MustCompile(pattern), field: field, priority: priority, types: types}
}

// fieldRules is evaluated in priority order; the first match wins. Rules
// with equal priority keep their declaration order.
var fieldRules = sortRules([]fieldRule{
	rule(`^dia(d[oe])?(mes|vencimento|vcto|pagamento|cobranca|debito)$`, model.FieldDayOfMonth, 90),
	rule(`^(dia|vencimento|vcto)$`, model.FieldDayOfMonth, 90, model.ColumnNumber),

	rule(`^(datainicio|datadeinicio|inicio|iniciovigencia|start|startdate)$`, model.FieldStartDate, 85),
	rule(`^(datafim|datafinal|datadefim|datatermino|fim|termino|end|enddate)$`, model.FieldEndDate, 85),
	rule(`dataaquisicao|datadeaquisicao|datacompra|datadecompra|adquiridoem|acquisitiondate|purchasedate`, model.FieldAcquisitionDate, 85),

	rule(`valoraquisicao|valordeaquisicao|valorcompra|valordecompra|custoaquisicao|precomedio|precodecompra|valorinvestido|^custo$|acquisitioncost`, model.FieldAcquisitionCost, 80),
	rule(`valoratual|saldoatual|valordemercado|valormercado|valorpresente|cotacaoatual|currentvalue|marketvalue|saldobruto`, model.FieldCurrentValue, 80),

	rule(`subcategoria|subcategory|subtipo|subclasse`, model.FieldSubcategory, 75),
	rule(`instituicao|banco|corretora|bank|institution|custodiante|emissor`, model.FieldInstitution, 75),

	rule(`^(ativo|nomedoativo|nomeativo|nome|name|asset|ticker|papel|produto|investimento)$`, model.FieldName, 70),

	rule(`^(obs|observacao|observacoes|notas?|notes|comentarios?)$`, model.FieldNotes, 60),
	rule(`cartao|card`, model.FieldCard, 55),
	rule(`^(conta|contabancaria|contacorrente|account)$`, model.FieldAccount, 55),
	rule(`^(tipo|type|natureza|tipodetransacao|tipolancamento|entradasaida|dc|cd|debitocredito)$`, model.FieldType, 50),
	rule(`categoria|category|grupo|classificacao`, model.FieldCategory, 50),

	rule(`data|date|^dt|^dia$`, model.FieldDate, 40),
	rule(`descricao|historico|description|estabelecimento|lancamento|detalhe|^item$|titulo|favorecido|beneficiario|merchant|memo`, model.FieldDescription, 35),
	rule(`valor|amount|preco|price|montante|quantia|^total$|value|vlr|debito|credito|importe`, model.FieldAmount, 30),
})

func sortRules(rules []fieldRule) []fieldRule {
	slices.SortStableFunc(rules, func(a, b fieldRule) int {
		return cmp.Compare(b.priority, a.priority)
	})
	return rules
}

// canonicalKeywords are the words whose presence in a column name confirms
// the suggested field.
var canonicalKeywords = map[model.Field]string{
	model.FieldDate:            "data",
	model.FieldDescription:     "descricao",
	model.FieldAmount:          "valor",
	model.FieldCategory:        "categoria",
	model.FieldType:            "tipo",
	model.FieldAccount:         "conta",
	model.FieldCard:            "cartao",
	model.FieldNotes:           "observac",
	model.FieldDayOfMonth:      "dia",
	model.FieldStartDate:       "inicio",
	model.FieldEndDate:         "fim",
	model.FieldName:            "nome",
	model.FieldCurrentValue:    "valoratual",
	model.FieldAcquisitionCost: "aquisicao",
	model.FieldAcquisitionDate: "aquisicao",
	model.FieldInstitution:     "instituicao",
	model.FieldSubcategory:     "subcategoria",
}

// expectedTypes lists the detected types compatible with each field.
var expectedTypes = map[model.Field][]model.ColumnType{
	model.FieldDate:            {model.ColumnDate},
	model.FieldStartDate:       {model.ColumnDate},
	model.FieldEndDate:         {model.ColumnDate},
	model.FieldAcquisitionDate: {model.ColumnDate},
	model.FieldAmount:          {model.ColumnNumber},
	model.FieldCurrentValue:    {model.ColumnNumber},
	model.FieldAcquisitionCost: {model.ColumnNumber},
	model.FieldDayOfMonth:      {model.ColumnNumber},
	model.FieldDescription:     {model.ColumnText},
	model.FieldName:            {model.ColumnText, model.ColumnCategory},
	model.FieldNotes:           {model.ColumnText},
	model.FieldCategory:        {model.ColumnCategory, model.ColumnText},
	model.FieldSubcategory:     {model.ColumnCategory, model.ColumnText},
	model.FieldType:            {model.ColumnCategory, model.ColumnText},
	model.FieldAccount:         {model.ColumnCategory, model.ColumnText},
	model.FieldCard:            {model.ColumnCategory, model.ColumnText},
	model.FieldInstitution:     {model.ColumnCategory, model.ColumnText},
}

// longTextThreshold is the average length above which an unnamed text
// column is taken as a description.
const longTextThreshold = 15

// SuggestFieldForColumn picks a field from the normalized column name,
// falling back to the detected type.
func SuggestFieldForColumn(normalizedName string, detected model.ColumnType, avgLen float64) model.Field {
	for _, r := range fieldRules {
		if len(r.types) > 0 && !slices.Contains(r.types, detected) {
			continue
		}
		if r.pattern.MatchString(normalizedName) {
			return r.field
		}
	}

	switch detected {
	case model.ColumnDate:
		return model.FieldDate
	case model.ColumnNumber:
		return model.FieldAmount
	case model.ColumnCategory:
		return model.FieldCategory
	case model.ColumnText:
		if avgLen > longTextThreshold {
			return model.FieldDescription
		}
	}
	return model.FieldIgnore
}

// ScoreConfidence rates a suggestion: 0.5 base, +0.3 when the name holds
// the field's canonical keyword, +0.2 when the detected type fits, capped
// at 0.95.
func ScoreConfidence(normalizedName string, field model.Field, detected model.ColumnType) float64 {
	score := 0.5
	if kw, ok := canonicalKeywords[field]; ok && strings.Contains(normalizedName, kw) {
		score += 0.3
	}
	if slices.Contains(expectedTypes[field], detected) {
		score += 0.2
	}
	return min(score, 0.95)
}
