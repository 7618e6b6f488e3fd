package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Name", "name"},
		{"  Full Name ", "full_name"},
		{"STUDENT\tNAME", "student_name"},
		{"Course   Name", "course_name"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CanonicalKey(tt.in); got != tt.want {
			t.Errorf("CanonicalKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseRecords_NameResolution(t *testing.T) {
	tests := []struct {
		name     string
		csv      string
		wantName string
		wantOK   bool
	}{
		{"plain name", "Name,Event\nAda,Expo\n", "Ada", true},
		{"full name header with padding", "  Full Name ,Event\nAda Lovelace,Expo\n", "Ada Lovelace", true},
		{"alias priority beats column order", "Student Name,Name\nFirst,Second\n", "Second", true},
		{"empty alias falls through", "Name,Full Name\n,Grace\n", "Grace", true},
		{"contains name fallback", "Attendee Name,Event\nLinus,Expo\n", "Linus", true},
		{"no name column", "Email,Event\na@b.c,Expo\n", "", false},
		{"whitespace only name", "Name,Event\n   ,Expo\n", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := ParseRecords([]byte(tt.csv))
			require.NoError(t, err)
			require.Len(t, recs, 1)

			got, ok := recs[0].Name()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, got)
			if !tt.wantOK {
				_, present := recs[0].Fields[FieldName]
				assert.False(t, present, "unresolved record must not carry a name key")
			}
		})
	}
}

func TestParseRecords_Normalization(t *testing.T) {
	data := "\xef\xbb\xbfName,Event Name,Date\n  Ada  , Expo \nBob\n\n,,\nCy,Fair,2024-01-02,extra\n"
	recs, err := ParseRecords([]byte(data))
	require.NoError(t, err)
	require.Len(t, recs, 3, "blank lines are skipped")

	assert.Equal(t, 0, recs[0].Index)
	assert.Equal(t, "Ada", recs[0].Fields["name"])
	assert.Equal(t, "Expo", recs[0].Fields["event_name"])
	assert.Equal(t, []string{"name", "event_name", "date"}, recs[0].Keys)

	assert.Equal(t, "", recs[1].Fields["date"], "missing cells become empty")
	assert.Equal(t, "Fair", recs[2].Field(FieldCourse), "event_name is a course alias")
	assert.Equal(t, "2024-01-02", recs[2].Field("Date"))
	assert.Equal(t, 2, recs[2].Index)
}

func TestParseRecords_DuplicateHeaderLastWins(t *testing.T) {
	recs, err := ParseRecords([]byte("Name,name\nFirst,Second\n"))
	require.NoError(t, err)
	got, _ := recs[0].Name()
	assert.Equal(t, "Second", got)
	assert.Equal(t, []string{"name"}, recs[0].Keys)
}

func TestParseRecords_Delimiters(t *testing.T) {
	for _, data := range []string{
		"Name;Event\nAda;Expo\n",
		"Name\tEvent\nAda\tExpo\n",
		"Name|Event\nAda|Expo\n",
		"Name,Event\r\nAda,Expo\r\n",
	} {
		recs, err := ParseRecords([]byte(data))
		require.NoError(t, err, data)
		assert.Equal(t, "Expo", recs[0].Fields["event"], data)
	}
}

func TestParseRecords_Fatal(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		sentinel error
	}{
		{"empty", "", ErrEmptyInput},
		{"whitespace", " \n\n", ErrEmptyInput},
		{"headers only", "Name,Event,Date\n", ErrNoDataRows},
		{"headers and blank rows", "Name,Event\n\n,\n", ErrNoDataRows},
		{"invalid utf8", "Name\n\xff\xfe\n", ErrInvalidEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecords([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, KindInputFormat, KindOf(err))
		})
	}
}

func TestParseRecords_InvalidRowsAreReturned(t *testing.T) {
	recs, err := ParseRecords([]byte("Name,Email\n,a@example.com\n,b@example.com\n"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.False(t, r.Valid())
	}
}

func TestParseRecordsFormat_MaxRows(t *testing.T) {
	_, err := ParseRecordsFormat([]byte("Name\nA\nB\nC\n"), FormatCSV, ParseOptions{MaxRows: 2})
	assert.ErrorIs(t, err, ErrTooManyRows)

	recs, err := ParseRecordsFormat([]byte("Name\nA\nB\n"), FormatCSV, ParseOptions{MaxRows: 2})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestParseRecordsFormat_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Full Name", "Course"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Ada Lovelace", "Analytical Engines"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"Grace Hopper", "Compilers"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	data := buf.Bytes()
	require.Equal(t, FormatXLSX, DetectFormat("people.bin", data))

	recs, err := ParseRecordsFormat(data, FormatXLSX, ParseOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	name, _ := recs[1].Name()
	assert.Equal(t, "Grace Hopper", name)
	assert.Equal(t, "Compilers", recs[1].Field(FieldCourse))
}

func TestParseRecordsFormat_BadWorkbook(t *testing.T) {
	_, err := ParseRecordsFormat([]byte("PK\x03\x04garbage"), FormatXLSX, ParseOptions{})
	assert.ErrorIs(t, err, ErrInvalidTabular)
	assert.Equal(t, KindInputFormat, KindOf(err))
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatXLSX, DetectFormat("a.XLSX", nil))
	assert.Equal(t, FormatCSV, DetectFormat("a.csv", []byte("PK\x03\x04")))
	assert.Equal(t, FormatCSV, DetectFormat("", []byte("Name\n")))
}
