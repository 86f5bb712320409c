package index

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depsentry/depsentry/internal/vulndb"
)

type staticSource struct {
	products []vulndb.Product
	err      error
}

func (s staticSource) Products(context.Context) ([]vulndb.Product, error) { return s.products, s.err }

func openIndex(t *testing.T) *Index {
	t.Helper()
	ix := New(8)
	require.NoError(t, ix.Open(context.Background(), staticSource{products: []vulndb.Product{
		{CPE: "cpe:/a:apache:struts:2.1.8", Vendor: "apache", Product: "struts", Version: "2.1.8"},
		{CPE: "cpe:/a:apache:commons-fileupload:1.3", Vendor: "apache", Product: "commons-fileupload", Version: "1.3"},
		{CPE: "cpe:/a:fasterxml:jackson-databind:2.9.0", Vendor: "fasterxml", Product: "jackson-databind", Version: "2.9.0"},
	}}))
	return ix
}

func TestEscapeQuery(t *testing.T) {
	text := `test encoding + - & | ! ( ) { } [ ] ^ " ~ * ? : \`
	want := `test encoding \+ \- \& \| \! \( \) \{ \} \[ \] \^ \" \~ \* \? \: \\`
	assert.Equal(t, want, EscapeQuery(text))
	assert.Equal(t, "", EscapeQuery(""))
	assert.Equal(t, "plain", EscapeQuery("plain"))
}

func TestAppendEscapedQuery(t *testing.T) {
	var b strings.Builder
	AppendEscapedQuery(&b, `test encoding + - & | ! ( ) { } [ ] ^ " ~ * ? : \`)
	assert.Equal(t, `test encoding \+ \- \& \| \! \( \) \{ \} \[ \] \^ \" \~ \* \? \: \\`, b.String())

	var empty strings.Builder
	AppendEscapedQuery(&empty, "")
	assert.Equal(t, 0, empty.Len())

	assert.NotPanics(t, func() { AppendEscapedQuery(nil, "x") })
}

func TestSearch_FieldsAndScores(t *testing.T) {
	ix := openIndex(t)
	defer ix.Close()
	assert.Equal(t, 3, ix.NumDocs())

	hits, err := ix.Search("vendor:apache product:struts", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "cpe:/a:apache:struts:2.1.8", hits[0].Product.CPE)
	assert.Equal(t, 1.0, hits[0].Score)
	assert.Equal(t, 0.5, hits[1].Score)

	hits, err = ix.Search("product:"+EscapeQuery("jackson-databind"), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "fasterxml", hits[0].Product.Vendor)

	hits, err = ix.Search("fileupload", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hits, err = ix.Search("apache", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearch_UnescapedSpecialsSeparateTerms(t *testing.T) {
	ix := openIndex(t)
	defer ix.Close()
	hits, err := ix.Search("jackson-databind", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1.0, hits[0].Score)

	hits, err = ix.Search("(struts)", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestSearch_CachedResultsAreCopies(t *testing.T) {
	ix := openIndex(t)
	defer ix.Close()
	first, err := ix.Search("apache", 0)
	require.NoError(t, err)
	first[0].Score = 42
	second, err := ix.Search("apache", 0)
	require.NoError(t, err)
	assert.NotEqual(t, 42.0, second[0].Score)
}

func TestIndex_OpenErrorsAndClose(t *testing.T) {
	ix := New(0)
	err := ix.Open(context.Background(), staticSource{err: errors.New("boom")})
	var ixErr *IndexError
	require.True(t, errors.As(err, &ixErr))
	assert.False(t, ix.IsOpen())

	_, err = ix.Search("x", 1)
	assert.True(t, errors.Is(err, ErrClosed))

	ix = openIndex(t)
	require.NoError(t, ix.Close())
	require.NoError(t, ix.Close())
	assert.Equal(t, 0, ix.NumDocs())
}
