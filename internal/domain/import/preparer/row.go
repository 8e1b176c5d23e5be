package preparer

import (
	"math"
	"strconv"
	"strings"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
	"github.com/FACorreiaa/smart-import/internal/domain/import/normalizer"
	"github.com/FACorreiaa/smart-import/internal/domain/import/parser"
)

// rowReader reads mapped cells of one row and records coercion failures
// on the item.
type rowReader struct {
	table *parser.Table
	row   int
	cols  map[model.Field]int
	item  *model.PreparedImportItem
}

func (r *rowReader) fail(msg string) {
	r.item.ValidationErrors = append(r.item.ValidationErrors, msg)
}

func (r *rowReader) cell(f model.Field) (parser.Cell, bool) {
	col, ok := r.cols[f]
	if !ok {
		return parser.Cell{}, false
	}
	c := r.table.Cell(r.row, col)
	return c, !c.IsEmpty()
}

func (r *rowReader) text(f model.Field) string {
	c, ok := r.cell(f)
	if !ok {
		return ""
	}
	return normalizer.CleanText(c.Text)
}

// date returns the ISO date of f, or "" when absent or invalid.
func (r *rowReader) date(f model.Field) string {
	c, ok := r.cell(f)
	if !ok {
		return ""
	}
	if d, ok := cellDate(c); ok {
		return d
	}
	r.fail(MsgInvalidDate)
	return ""
}

func cellDate(c parser.Cell) (string, bool) {
	if c.Numeric {
		if !normalizer.IsSerialDate(c.Number) {
			return "", false
		}
		return normalizer.SerialToDate(c.Number)
	}
	return normalizer.ParseDate(c.Text)
}

// amount returns the signed amount of f, or nil when absent or invalid.
func (r *rowReader) amount(f model.Field) *float64 {
	c, ok := r.cell(f)
	if !ok {
		return nil
	}
	if c.Numeric {
		v := c.Number
		return &v
	}
	if v, ok := normalizer.ParseAmount(c.Text); ok {
		return &v
	}
	r.fail(MsgInvalidAmount)
	return nil
}

// dayOfMonth accepts 1 to 31 or takes the day of a date value.
func (r *rowReader) dayOfMonth(f model.Field) *int {
	c, ok := r.cell(f)
	if !ok {
		return nil
	}

	if day, ok := parseDay(c); ok {
		return &day
	}
	r.fail(MsgInvalidDay)
	return nil
}

func parseDay(c parser.Cell) (int, bool) {
	if c.Numeric && c.Number == math.Trunc(c.Number) && c.Number >= 1 && c.Number <= 31 {
		return int(c.Number), true
	}
	if !c.Numeric {
		if n, err := strconv.Atoi(strings.TrimSpace(c.Text)); err == nil {
			return n, n >= 1 && n <= 31
		}
	}
	if d, ok := cellDate(c); ok {
		day, err := strconv.Atoi(d[len(d)-2:])
		return day, err == nil
	}
	return 0, false
}
