package ingest

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRowReader_EmptyInput(t *testing.T) {
	_, err := NewRowReader(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestRowReader_HeadersAndRows(t *testing.T) {
	input := "Date, Amount ,Type\n" +
		"2024-03-05,100,expense\n" +
		"\n" + // blank line, skipped by the decoder
		"2024-03-06,200,income\n"

	rr, err := NewRowReader(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Amount", "Type"}, rr.Headers())

	row, err := rr.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, row.Number)
	assert.Equal(t, "100", row.Get("Amount"))

	row, err = rr.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, row.Number)
	assert.Equal(t, "income", row.Get("Type"))

	_, err = rr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRow_GetIsCaseInsensitive(t *testing.T) {
	rr, err := NewRowReader(strings.NewReader("Date,Amount\n2024-03-05,100\n"))
	require.NoError(t, err)

	row, err := rr.Next()
	require.NoError(t, err)

	assert.Equal(t, "2024-03-05", row.Get("date"))
	assert.Equal(t, "2024-03-05", row.Get("DATE"))
	assert.Equal(t, "2024-03-05", row.Get(" Date "))
	assert.Equal(t, "100", row.Get("amount"))
	assert.Equal(t, "", row.Get("missing"))
}

func TestRow_RaggedRowReadsEmpty(t *testing.T) {
	rr, err := NewRowReader(strings.NewReader("a,b,c\n1,2\n"))
	require.NoError(t, err)

	row, err := rr.Next()
	require.NoError(t, err)

	assert.Equal(t, "2", row.Get("b"))
	assert.Equal(t, "", row.Get("c"))
}

func TestRow_ValuesTrimsAndQuotes(t *testing.T) {
	input := "name,note\n" +
		`" Alice ","said ""hi"""` + "\n"

	rr, err := NewRowReader(strings.NewReader(input))
	require.NoError(t, err)

	row, err := rr.Next()
	require.NoError(t, err)

	vals := row.Values(rr.Headers())
	assert.Equal(t, "Alice", vals["name"])
	assert.Equal(t, `said "hi"`, vals["note"])
}

func TestRowReader_BOMAndCRLF(t *testing.T) {
	input := "\xEF\xBB\xBFDate,Amount\r\n2024-03-05,100\r\n"

	rr, err := NewRowReader(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Amount"}, rr.Headers())

	row, err := rr.Next()
	require.NoError(t, err)
	assert.Equal(t, "100", row.Get("Amount"))
}
