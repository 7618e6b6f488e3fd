package core

// records.go turns raw tabular bytes into normalized recipient records.
//
// Column headers are loose in practice ("Full Name", "STUDENT NAME", "Name "),
// so every header is canonicalized and the recipient name is resolved through
// an ordered alias table rather than per-field branching. Other fields are
// resolved lazily through the same table when something asks for them.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FieldName is the canonical key of the recipient's display name.
const FieldName = "name"

// Optional canonical keys.
const (
	FieldCourse        = "course"
	FieldDate          = "date"
	FieldGrade         = "grade"
	FieldOrganization  = "organization"
	FieldCertificateID = "certificate_id"
)

// fieldAlias lists the accepted headers for one canonical key, highest
// priority first. Aliases are already in canonical form.
type fieldAlias struct {
	key     string
	aliases []string
}

// fieldAliases is checked in order. The name entry drives parse-time
// resolution; the others are consulted by Record.Field.
var fieldAliases = []fieldAlias{
	{FieldName, []string{
		"name", "full_name", "fullname",
		"student_name", "studentname",
		"participant_name", "participantname",
		"recipient_name", "recipientname",
		"person_name", "personname",
	}},
	{FieldCourse, []string{"course", "course_name", "event", "event_name", "program", "training", "workshop"}},
	{FieldDate, []string{"date", "event_date", "completion_date", "issue_date", "issued_on", "awarded_on"}},
	{FieldGrade, []string{"grade", "score", "result", "marks"}},
	{FieldOrganization, []string{"organization", "organisation", "org", "company", "institution", "school", "issuer"}},
	{FieldCertificateID, []string{"certificate_id", "cert_id", "certificate_no", "certificate_number", "credential_id", "id", "serial"}},
}

// aliasesFor returns the alias list for a canonical key, or nil.
func aliasesFor(key string) []string {
	for _, fa := range fieldAliases {
		if fa.key == key {
			return fa.aliases
		}
	}
	return nil
}

// Record is one normalized data row.
type Record struct {
	// Index is the 0-based position of the row among data rows.
	Index int
	// Fields maps canonical keys to trimmed values.
	Fields map[string]string
	// Keys lists canonical keys in column order.
	Keys []string
}

// Name returns the resolved display name.
func (r Record) Name() (string, bool) {
	v, ok := r.Fields[FieldName]
	return v, ok && v != ""
}

// Valid reports whether the record has a resolved name.
func (r Record) Valid() bool {
	_, ok := r.Name()
	return ok
}

// Field resolves a canonical key through its alias list. Unknown keys are
// looked up verbatim after canonicalization.
func (r Record) Field(key string) string {
	key = CanonicalKey(key)
	aliases := aliasesFor(key)
	if aliases == nil {
		return r.Fields[key]
	}
	for _, a := range aliases {
		if v := r.Fields[a]; v != "" {
			return v
		}
	}
	return ""
}

// CanonicalKey normalizes a column header: trimmed, lowercased, and with
// internal whitespace runs replaced by a single underscore.
func CanonicalKey(header string) string {
	fields := strings.FieldsFunc(strings.ToLower(header), unicode.IsSpace)
	return strings.Join(fields, "_")
}

// TabularFormat identifies the encoding of the uploaded recipient data.
type TabularFormat string

const (
	FormatCSV  TabularFormat = "csv"
	FormatXLSX TabularFormat = "xlsx"
)

var zipMagic = []byte("PK\x03\x04")

// DetectFormat picks a tabular format from the file name, falling back to
// content sniffing. Anything that is not a workbook is treated as delimited
// text.
func DetectFormat(filename string, data []byte) TabularFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv", ".tsv", ".txt":
		return FormatCSV
	}
	if bytes.HasPrefix(data, zipMagic) {
		return FormatXLSX
	}
	return FormatCSV
}

// ParseOptions bounds parsing.
type ParseOptions struct {
	// MaxRows rejects inputs with more data rows. Zero means no limit.
	MaxRows int
}

// ParseRecords parses delimited text with a header row.
func ParseRecords(data []byte) ([]Record, error) {
	return ParseRecordsFormat(data, FormatCSV, ParseOptions{})
}

// ParseRecordsFormat parses data in the given format. It fails only when the
// input cannot be read as a table at all or holds no data rows; rows without
// a resolvable name are returned with Valid() == false.
func ParseRecordsFormat(data []byte, format TabularFormat, opts ParseOptions) ([]Record, error) {
	var (
		headers []string
		rows    [][]string
		err     error
	)
	switch format {
	case FormatXLSX:
		headers, rows, err = readWorkbook(data)
	default:
		headers, rows, err = readDelimited(data)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, inputError("parse records", ErrNoDataRows, nil)
	}
	if opts.MaxRows > 0 && len(rows) > opts.MaxRows {
		return nil, inputError("parse records", ErrTooManyRows,
			fmt.Errorf("%d rows (max %d)", len(rows), opts.MaxRows))
	}

	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = CanonicalKey(h)
	}

	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = normalizeRow(i, keys, row)
	}
	return records, nil
}

// normalizeRow builds a Record from canonical keys and raw cells and resolves
// its name.
func normalizeRow(index int, keys []string, row []string) Record {
	rec := Record{
		Index:  index,
		Fields: make(map[string]string, len(keys)),
		Keys:   make([]string, 0, len(keys)),
	}
	for i, k := range keys {
		if k == "" {
			continue
		}
		v := ""
		if i < len(row) {
			v = strings.TrimSpace(row[i])
		}
		if _, seen := rec.Fields[k]; !seen {
			rec.Keys = append(rec.Keys, k)
		}
		rec.Fields[k] = v
	}
	resolveName(&rec)
	return rec
}

// resolveName sets Fields["name"] to the winning alias value, or removes it
// when nothing resolves.
func resolveName(rec *Record) {
	for _, a := range aliasesFor(FieldName) {
		if v := rec.Fields[a]; v != "" {
			rec.Fields[FieldName] = v
			return
		}
	}
	for _, k := range rec.Keys {
		if strings.Contains(k, FieldName) && rec.Fields[k] != "" {
			rec.Fields[FieldName] = rec.Fields[k]
			return
		}
	}
	delete(rec.Fields, FieldName)
}

var utf8BOM = []byte("\xef\xbb\xbf")

// readDelimited decodes UTF-8 delimited text into a header and data rows.
func readDelimited(data []byte) ([]string, [][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, inputError("read csv", ErrEmptyInput, nil)
	}
	if !utf8.Valid(data) {
		return nil, nil, inputError("read csv", ErrInvalidEncoding, nil)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	headers, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, inputError("read csv", ErrEmptyInput, nil)
		}
		return nil, nil, inputError("read csv", ErrInvalidTabular, err)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, inputError("read csv", ErrInvalidTabular, err)
		}
		if isBlankRow(row) {
			continue
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

// candidateDelimiters in tie-break order.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// sniffDelimiter picks the most frequent candidate on the header line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
