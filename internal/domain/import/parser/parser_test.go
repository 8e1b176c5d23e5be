package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
	"github.com/FACorreiaa/smart-import/internal/vision"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeReader struct {
	doc *vision.Document
	err error
}

func (f *fakeReader) ReadDocument(_ context.Context, _ []byte, _ string) (*vision.Document, error) {
	return f.doc, f.err
}

func TestExtractor_CSV(t *testing.T) {
	t.Run("parses semicolon csv with metadata lines", func(t *testing.T) {
		csv := "Extrato Conta Corrente\n\nData;Descrição;Valor\n15/03/2024;Supermercado;-120,50\n\n16/03/2024;Salário;5.000,00\n"

		table, err := NewExtractor(testLogger()).Extract(context.Background(), Source{
			Name: "extrato.csv", Kind: model.KindCSV, Data: []byte(csv),
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"Data", "Descrição", "Valor"}, table.Headers)
		assert.Equal(t, 1, table.HeaderRow, "blank lines are not records")
		require.Len(t, table.Rows, 2)
		assert.Equal(t, "-120,50", table.Rows[0][2].Text)
		assert.False(t, table.Rows[0][2].Numeric)
	})

	t.Run("names blank headers and pads rows", func(t *testing.T) {
		csv := "Data,,Valor\n01/01/2024,Mercado,10,extra\n"

		table, err := NewExtractor(testLogger()).Extract(context.Background(), Source{
			Name: "x.csv", Kind: model.KindCSV, Data: []byte(csv),
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"Data", "Coluna 2", "Valor", "Coluna 4"}, table.Headers)
		assert.Len(t, table.Rows[0], 4)
		assert.Equal(t, "extra", table.Cell(0, 3).Text)
		assert.True(t, table.Cell(5, 0).IsEmpty())
	})

	t.Run("header only file has no data", func(t *testing.T) {
		_, err := NewExtractor(testLogger()).Extract(context.Background(), Source{
			Name: "x.csv", Kind: model.KindCSV, Data: []byte("Data;Valor\n"),
		})
		assert.ErrorIs(t, err, ErrNoData)

		var extErr *ExtractionError
		require.True(t, errors.As(err, &extErr))
		assert.NotEmpty(t, extErr.Observations)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := NewExtractor(testLogger()).Extract(context.Background(), Source{
			Name: "x.csv", Kind: model.KindCSV,
		})
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("unsupported kind", func(t *testing.T) {
		_, err := NewExtractor(testLogger()).Extract(context.Background(), Source{
			Name: "x.doc", Kind: "doc", Data: []byte("x"),
		})
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})
}

func TestExtractor_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	// Short sheet that must lose to the longer one.
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Resumo", "Total"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"x", 1}))

	_, err := f.NewSheet("Lançamentos")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Lançamentos", "A1", &[]any{"Minha planilha"}))
	require.NoError(t, f.SetSheetRow("Lançamentos", "A2", &[]any{"Data", "Descrição", "Valor"}))
	require.NoError(t, f.SetSheetRow("Lançamentos", "A3", &[]any{45366, "Mercado", 120.5}))
	require.NoError(t, f.SetSheetRow("Lançamentos", "A4", &[]any{45367, "Farmácia", 33}))
	require.NoError(t, f.SetSheetRow("Lançamentos", "A5", &[]any{45368, "Padaria", 12.25}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := NewExtractor(testLogger()).Extract(context.Background(), Source{
		Name: "planilha.xlsx", Kind: model.KindXLSX, Data: buf.Bytes(),
	})
	require.NoError(t, err)

	assert.Equal(t, "Lançamentos", table.Sheet)
	assert.Equal(t, 1, table.HeaderRow)
	assert.Equal(t, []string{"Data", "Descrição", "Valor"}, table.Headers)
	require.Len(t, table.Rows, 3)

	assert.True(t, table.Rows[0][0].Numeric)
	assert.Equal(t, float64(45366), table.Rows[0][0].Number)
	assert.False(t, table.Rows[0][1].Numeric)
	assert.Equal(t, "Mercado", table.Rows[0][1].Text)
	assert.InDelta(t, 120.5, table.Rows[0][2].Number, 0.0001)
}

func TestExtractor_BrokenWorkbooks(t *testing.T) {
	for _, kind := range []model.FileKind{model.KindXLSX, model.KindXLS, model.KindPDF} {
		t.Run(string(kind), func(t *testing.T) {
			_, err := NewExtractor(testLogger()).Extract(context.Background(), Source{
				Name: "broken", Kind: kind, Data: []byte("not a real file"),
			})
			assert.ErrorIs(t, err, ErrNoData)
		})
	}
}

func TestPDFText(t *testing.T) {
	t.Run("glyphs are grouped by baseline and ordered by x", func(t *testing.T) {
		glyphs := []pdf.Text{
			{X: 200, Y: 680, W: 6, FontSize: 10, S: "9"},
			{X: 50, Y: 680.2, W: 6, FontSize: 10, S: "0"},
			{X: 56, Y: 680.2, W: 6, FontSize: 10, S: "1"},
			{X: 50, Y: 700, W: 6, FontSize: 10, S: "D"},
			{X: 56, Y: 700, W: 3, FontSize: 10, S: " "},
			{X: 59, Y: 700, W: 6, FontSize: 10, S: "V"},
			{X: 80, Y: 720, W: 6, FontSize: 10, S: " "},
			{X: 62, Y: 680, FontSize: 10, S: "\n"},
		}
		assert.Equal(t, []string{"D V", "01\t9"}, pageLines(glyphs))
	})

	t.Run("narrow gaps become word spaces", func(t *testing.T) {
		glyphs := []pdf.Text{
			{X: 10, W: 5, FontSize: 10, S: "a"},
			{X: 18, W: 5, FontSize: 10, S: "b"},
		}
		assert.Equal(t, "a b", joinGlyphs(glyphs))
	})

	t.Run("tab wins over pipe and spaces", func(t *testing.T) {
		split := pdfSplitter([]string{"a\tb", "c|d"})
		assert.Equal(t, []string{"a", "b  c"}, split("a\tb  c"))
	})

	t.Run("pipe wins over spaces", func(t *testing.T) {
		split := pdfSplitter([]string{"a | b", "c  d"})
		assert.Equal(t, []string{"a ", " b  c"}, split("a | b  c"))
	})

	t.Run("runs of spaces", func(t *testing.T) {
		split := pdfSplitter([]string{"Data  Valor"})
		assert.Equal(t, []string{"01/01", "Mercado Central", "10,00"}, split("01/01   Mercado Central  10,00"))
	})
}

// textPDF wraps a content stream in a single page document using an
// unembedded Helvetica without a widths table.
func textPDF(content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

func TestExtractor_PDF(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "lines placed with Td",
			content: "BT /F1 11 Tf 50 700 Td (Data) Tj 120 0 Td (Descricao) Tj 180 0 Td (Valor) Tj " +
				"-300 -20 Td (15/03/2024) Tj 120 0 Td (Mercado) Tj 180 0 Td (100,00) Tj " +
				"-300 -20 Td (16/03/2024) Tj 120 0 Td (Uber) Tj 180 0 Td (20,00) Tj ET",
		},
		{
			name: "lines placed with Tm",
			content: "BT /F1 11 Tf 1 0 0 1 50 700 Tm (Data) Tj 1 0 0 1 170 700 Tm (Descricao) Tj 1 0 0 1 350 700 Tm (Valor) Tj " +
				"1 0 0 1 50 680 Tm (15/03/2024) Tj 1 0 0 1 170 680 Tm (Mercado) Tj 1 0 0 1 350 680 Tm (100,00) Tj " +
				"1 0 0 1 50 660 Tm (16/03/2024) Tj 1 0 0 1 170 660 Tm (Uber) Tj 1 0 0 1 350 660 Tm (20,00) Tj ET",
		},
		{
			name: "one text block per line",
			content: "BT /F1 11 Tf 50 700 Td (Data    Descricao    Valor) Tj ET\n" +
				"BT /F1 11 Tf 50 680 Td (15/03/2024    Mercado    100,00) Tj ET\n" +
				"BT /F1 11 Tf 50 660 Td (16/03/2024    Uber    20,00) Tj ET",
		},
		{
			name: "leading with T*",
			content: "BT /F1 11 Tf 14 TL 50 700 Td (Data    Descricao    Valor) Tj " +
				"T* (15/03/2024    Mercado    100,00) Tj T* (16/03/2024    Uber    20,00) Tj ET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewExtractor(testLogger()).Extract(context.Background(), Source{
				Name: "extrato.pdf", Kind: model.KindPDF, Data: textPDF(tt.content),
			})
			require.NoError(t, err)

			assert.Equal(t, []string{"Data", "Descricao", "Valor"}, table.Headers)
			require.Len(t, table.Rows, 2)
			assert.Equal(t, "Mercado", table.Rows[0][1].Text)
			assert.Equal(t, "20,00", table.Rows[1][2].Text)
		})
	}

	t.Run("single line is treated as scanned", func(t *testing.T) {
		_, err := NewExtractor(testLogger()).Extract(context.Background(), Source{
			Name: "capa.pdf", Kind: model.KindPDF, Data: textPDF("BT /F1 11 Tf 50 700 Td (Extrato) Tj ET"),
		})

		var extraction *ExtractionError
		require.ErrorAs(t, err, &extraction)
		assert.ErrorIs(t, err, ErrScannedPDF)
		assert.Contains(t, extraction.Observations, scannedObservation)
	})
}

func TestExtractor_PDFFixtures(t *testing.T) {
	t.Run("text layer with glyph widths", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join("testdata", "extrato.pdf"))
		require.NoError(t, err)

		table, err := NewExtractor(testLogger()).Extract(context.Background(), Source{
			Name: "extrato.pdf", Kind: model.KindPDF, Data: data,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"Data", "Descricao", "Valor"}, table.Headers)
		require.Len(t, table.Rows, 2)
		assert.Equal(t, "Mercado Central", table.Rows[0][1].Text)
		assert.Equal(t, "-100,00", table.Rows[0][2].Text)
		assert.Equal(t, "16/03/2024", table.Rows[1][0].Text)
	})

	t.Run("page without text", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join("testdata", "digitalizado.pdf"))
		require.NoError(t, err)

		_, err = NewExtractor(testLogger()).Extract(context.Background(), Source{
			Name: "digitalizado.pdf", Kind: model.KindPDF, Data: data,
		})

		var extraction *ExtractionError
		require.ErrorAs(t, err, &extraction)
		assert.ErrorIs(t, err, ErrScannedPDF)
		assert.Equal(t, []string{scannedObservation}, extraction.Observations)
	})
}

func TestExtractor_Image(t *testing.T) {
	t.Run("synthesizes five columns", func(t *testing.T) {
		reader := &fakeReader{doc: &vision.Document{
			Success:   true,
			Confianca: 0.9,
			Data: vision.DocumentData{
				TipoDocumento: "fatura",
				DadosExtraidos: vision.ExtractedData{Transacoes: []vision.Transaction{
					{Data: "01/02/2024", Descricao: "Uber", Valor: 23.9, Tipo: "despesa", CategoriaSugerida: "Transporte"},
					{Data: "02/02/2024", Descricao: "Pix recebido", Valor: 100, Tipo: "receita"},
				}},
			},
			Observacoes: vision.Notes{"boa qualidade"},
		}}

		table, err := NewExtractor(testLogger()).WithDocumentReader(reader).Extract(context.Background(), Source{
			Name: "fatura.png", Kind: model.KindImage, Data: []byte{0x89, 'P', 'N', 'G'},
		})

		require.NoError(t, err)
		assert.Equal(t, ImageHeaders, table.Headers)
		require.Len(t, table.Rows, 2)
		assert.Equal(t, "23.9", table.Rows[0][2].Text)
		assert.Equal(t, "Transporte", table.Rows[0][4].Text)
		require.NotNil(t, table.Confidence)
		assert.InDelta(t, 0.9, *table.Confidence, 0.0001)
		assert.Contains(t, table.Observations, "boa qualidade")
	})

	t.Run("no transactions is a distinct failure", func(t *testing.T) {
		reader := &fakeReader{doc: &vision.Document{Success: true, Observacoes: vision.Notes{"imagem ilegível"}}}

		_, err := NewExtractor(testLogger()).WithDocumentReader(reader).Extract(context.Background(), Source{
			Name: "foto.jpg", Kind: model.KindImage, Data: []byte{1},
		})

		assert.ErrorIs(t, err, ErrNoTransactions)
		var extErr *ExtractionError
		require.True(t, errors.As(err, &extErr))
		assert.Equal(t, []string{"imagem ilegível"}, extErr.Observations)
	})

	t.Run("vision errors are wrapped", func(t *testing.T) {
		reader := &fakeReader{err: errors.New("timeout")}

		_, err := NewExtractor(testLogger()).WithDocumentReader(reader).Extract(context.Background(), Source{
			Name: "foto.jpg", Kind: model.KindImage, Data: []byte{1},
		})

		assert.ErrorIs(t, err, ErrVisionFailed)
		assert.Contains(t, err.Error(), "timeout")
	})

	t.Run("no reader configured", func(t *testing.T) {
		_, err := NewExtractor(testLogger()).Extract(context.Background(), Source{
			Name: "foto.jpg", Kind: model.KindImage, Data: []byte{1},
		})
		assert.ErrorIs(t, err, ErrVisionUnavailable)
	})
}
