package vision

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Document is the structured reading of one image.
type Document struct {
	Success     bool         `json:"success"`
	Data        DocumentData `json:"data"`
	Confianca   float64      `json:"confianca"`
	Observacoes Notes        `json:"observacoes"`
}

// DocumentData holds the extracted content.
type DocumentData struct {
	TipoDocumento  string        `json:"tipo_documento"`
	DadosExtraidos ExtractedData `json:"dados_extraidos"`
}

// ExtractedData lists the transactions found in the document.
type ExtractedData struct {
	Transacoes []Transaction `json:"transacoes"`
}

// Transaction is one line read from the image.
type Transaction struct {
	Data              string `json:"data"`
	Descricao         string `json:"descricao"`
	Valor             Amount `json:"valor"`
	Tipo              string `json:"tipo"`
	CategoriaSugerida string `json:"categoria_sugerida"`
}

// Transactions returns the extracted transactions, nil-safe.
func (d *Document) Transactions() []Transaction {
	if d == nil {
		return nil
	}
	return d.Data.DadosExtraidos.Transacoes
}

// Notes accepts either a list of strings or a single string.
type Notes []string

func (n *Notes) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*n = list
		return nil
	}
	var single string
	if err := json.Unmarshal(b, &single); err != nil {
		return err
	}
	if single = strings.TrimSpace(single); single != "" {
		*n = Notes{single}
	}
	return nil
}

// Amount accepts a JSON number or a numeric string such as "12.50".
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*a = Amount(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}
