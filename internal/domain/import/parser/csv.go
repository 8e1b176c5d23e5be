package parser

import (
	"errors"

	"github.com/FACorreiaa/smart-import/internal/domain/import/sniffer"
)

func parseCSV(data []byte) (*Table, error) {
	records, _, err := sniffer.ReadRecords(data)
	if err != nil {
		if errors.Is(err, sniffer.ErrEmptyFile) {
			return nil, fail(ErrEmptyFile, err)
		}
		return nil, fail(ErrNoData, err)
	}
	return buildTable("", textRows(records))
}
