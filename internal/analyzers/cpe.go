package analyzers

import (
	"context"
	"strings"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/index"
	"github.com/depsentry/depsentry/internal/types"
)

const (
	// maxQueryValues bounds the vendor and product candidates tried.
	maxQueryValues = 3
	// maxIdentifiers bounds the identifiers one query may add.
	maxIdentifiers = 10
)

// CPE searches the index with the vendor and product evidence of each
// dependency. Products whose version matches the version evidence become
// CPE identifiers; products listed without a version are added with low
// confidence.
type CPE struct {
	base
}

func NewCPE(env analyzer.Env) (analyzer.Analyzer, error) {
	return &CPE{base: newBase("cpe", analyzer.IdentifierAnalysis, env)}, nil
}

func (c *CPE) Parallel() bool { return true }

func (c *CPE) Analyze(_ context.Context, dep *types.Dependency, eng analyzer.Engine) error {
	products := first(dep.EvidenceValues(types.EvidenceProduct, types.ConfidenceLow), maxQueryValues)
	if len(products) == 0 {
		return nil
	}
	ix := eng.Index()
	if ix == nil {
		return c.fail(dep, errNoIndex)
	}
	vendors := first(dep.EvidenceValues(types.EvidenceVendor, types.ConfidenceMedium), maxQueryValues)
	versions := map[string]bool{}
	for _, v := range dep.EvidenceValues(types.EvidenceVersion, types.ConfidenceLow) {
		versions[v] = true
	}

	for _, q := range buildQueries(vendors, products) {
		// Every version of a product ties at score 1, so the cap is applied
		// to the matches and not to the raw hits.
		hits, err := ix.Search(q, 0)
		if err != nil {
			return c.fail(dep, err)
		}
		added := 0
		for _, h := range hits {
			if h.Score < 1 || added == maxIdentifiers {
				break
			}
			p := h.Product
			switch {
			case p.Version != "" && versions[strings.ToLower(p.Version)]:
				dep.AddIdentifier(types.Identifier{Type: "cpe", Value: p.CPE, URL: cpeURL(p.CPE), Confidence: types.ConfidenceHighest})
			case p.Version == "":
				dep.AddIdentifier(types.Identifier{Type: "cpe", Value: p.CPE, URL: cpeURL(p.CPE), Confidence: types.ConfidenceLow})
			default:
				continue
			}
			added++
		}
	}
	return nil
}

// buildQueries pairs every product with every vendor, and falls back to
// product-only queries when there is no vendor evidence.
func buildQueries(vendors, products []string) []string {
	var out []string
	var b strings.Builder
	for _, p := range products {
		if len(vendors) == 0 {
			b.Reset()
			b.WriteString(index.FieldProduct + ":")
			index.AppendEscapedQuery(&b, p)
			out = append(out, b.String())
			continue
		}
		for _, v := range vendors {
			b.Reset()
			b.WriteString(index.FieldVendor + ":")
			index.AppendEscapedQuery(&b, v)
			b.WriteString(" " + index.FieldProduct + ":")
			index.AppendEscapedQuery(&b, p)
			out = append(out, b.String())
		}
	}
	return out
}

func first(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func cpeURL(cpe string) string {
	return "https://nvd.nist.gov/products/cpe/search/results?keyword=" + strings.ReplaceAll(cpe, ":", "%3A")
}
