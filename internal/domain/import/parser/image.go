package parser

import (
	"context"
	"strconv"

	"github.com/FACorreiaa/smart-import/internal/domain/import/filetype"
)

// ImageHeaders are the columns synthesized from a document reading.
var ImageHeaders = []string{"Data", "Descrição", "Valor", "Tipo", "Categoria"}

func (e *Extractor) parseImage(ctx context.Context, src Source) (*Table, error) {
	if e.vision == nil {
		return nil, fail(ErrVisionUnavailable, nil)
	}

	mimeType := src.MIMEType
	if mimeType == "" {
		mimeType = filetype.MIMEType(src.Name, src.Data)
	}

	doc, err := e.vision.ReadDocument(ctx, src.Data, mimeType)
	if err != nil {
		return nil, fail(ErrVisionFailed, err, "não foi possível analisar a imagem")
	}

	if doc == nil {
		return nil, fail(ErrNoTransactions, nil, "nenhuma transação identificada na imagem")
	}

	observations := []string(doc.Observacoes)
	txs := doc.Transactions()
	if !doc.Success || len(txs) == 0 {
		if len(observations) == 0 {
			observations = []string{"nenhuma transação identificada na imagem"}
		}
		return nil, fail(ErrNoTransactions, nil, observations...)
	}

	rows := make([][]Cell, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []Cell{
			TextCell(tx.Data),
			TextCell(tx.Descricao),
			TextCell(strconv.FormatFloat(float64(tx.Valor), 'f', -1, 64)),
			TextCell(tx.Tipo),
			TextCell(tx.CategoriaSugerida),
		})
	}

	confidence := doc.Confianca
	if doc.Data.TipoDocumento != "" {
		observations = append(observations, "documento identificado: "+doc.Data.TipoDocumento)
	}
	return &Table{
		Headers:      append([]string(nil), ImageHeaders...),
		Rows:         rows,
		Confidence:   &confidence,
		Observations: observations,
	}, nil
}
