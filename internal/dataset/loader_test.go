package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var longText = strings.Repeat("x", MinTextLength+1)

func csvOf(rows ...string) string {
	return strings.Join(append([]string{"company,cik,date,text"}, rows...), "\n")
}

func TestLoad_LengthAndCompanyFilters(t *testing.T) {
	data := csvOf(
		"MICROSOFT CORP,789019,2020-07-30,"+longText,
		"SHORT CO,1,2020-01-01,"+strings.Repeat("y", MinTextLength),
		",2,2020-01-01,"+longText,
		"Apple Inc,320193,2020-10-30,"+longText,
	)
	filings, err := Load(strings.NewReader(data), Options{})
	require.NoError(t, err)
	require.Len(t, filings, 2)
	assert.Equal(t, "MICROSOFT CORP", filings[0].Company)
	assert.Equal(t, "789019", filings[0].CIK)
	assert.Equal(t, "2020-07-30", filings[0].Date)

	filings, err = Load(strings.NewReader(data), Options{FilterCompany: "microsoft"})
	require.NoError(t, err)
	require.Len(t, filings, 1)
	assert.Equal(t, "MICROSOFT CORP", filings[0].Company)
}

func TestLoad_JoinsItemColumns(t *testing.T) {
	data := "company,cik,date,item_1,item_1A\n" +
		"ACME,9,2019-02-01," + longText + ",risk factors"
	filings, err := Load(strings.NewReader(data), Options{})
	require.NoError(t, err)
	require.Len(t, filings, 1)
	assert.Equal(t, longText+" \n\n risk factors", filings[0].Text)
}

func TestLoad_EmptyAfterFiltering(t *testing.T) {
	data := csvOf("MICROSOFT CORP,789019,2020-07-30," + longText)
	_, err := Load(strings.NewReader(data), Options{FilterCompany: "Tesla"})
	require.ErrorIs(t, err, ErrEmptyDataset)
}

func TestLoad_MissingCompanyColumn(t *testing.T) {
	_, err := Load(strings.NewReader("cik,text\n1,"+longText), Options{})
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestSample_Deterministic(t *testing.T) {
	var rows []string
	for i := 0; i < 30; i++ {
		rows = append(rows, fmt.Sprintf("CO %02d,%d,2020-01-01,%s", i, i, longText))
	}
	data := csvOf(rows...)

	first, err := Load(strings.NewReader(data), Options{Sample: 5})
	require.NoError(t, err)
	second, err := Load(strings.NewReader(data), Options{Sample: 5})
	require.NoError(t, err)

	require.Len(t, first, 5)
	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].Company, first[i].Company)
	}
}

func TestSample_LargerThanInput(t *testing.T) {
	data := csvOf("A,1,d,"+longText, "B,2,d,"+longText)
	filings, err := Load(strings.NewReader(data), Options{Sample: 10})
	require.NoError(t, err)
	assert.Len(t, filings, 2)
}

func TestLoadFile_AndChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filings.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvOf("MICROSOFT CORP,789019,2020-07-30,"+longText)), 0o600))

	filings, err := LoadFile(path, Options{})
	require.NoError(t, err)
	chunks := Chunks(filings)
	require.Len(t, chunks, 1)
	assert.Equal(t, "[Filing: MICROSOFT CORP - 2020-07-30]", chunks[0].Tag())
}
