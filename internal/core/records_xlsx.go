package core

import (
	"bytes"

	"github.com/xuri/excelize/v2"
)

// readWorkbook reads the first worksheet of an .xlsx workbook. The first
// non-blank row is the header.
func readWorkbook(data []byte) ([]string, [][]string, error) {
	if len(data) == 0 {
		return nil, nil, inputError("read xlsx", ErrEmptyInput, nil)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, inputError("read xlsx", ErrInvalidTabular, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, inputError("read xlsx", ErrEmptyInput, nil)
	}

	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, inputError("read xlsx", ErrInvalidTabular, err)
	}

	var (
		headers []string
		rows    [][]string
	)
	for _, row := range all {
		if isBlankRow(row) {
			continue
		}
		if headers == nil {
			headers = row
			continue
		}
		rows = append(rows, row)
	}
	if headers == nil {
		return nil, nil, inputError("read xlsx", ErrEmptyInput, nil)
	}
	return headers, rows, nil
}
