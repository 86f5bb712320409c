// Package index is an in-memory search index over the product dictionary
// of the vulnerability database. Products are indexed by vendor, product,
// version and CPE; queries are scored by the share of terms they match.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/depsentry/depsentry/internal/vulndb"
)

// Searchable fields.
const (
	FieldVendor  = "vendor"
	FieldProduct = "product"
	FieldVersion = "version"
	FieldCPE     = "cpe"
)

// DefaultCacheSize bounds the query result cache when none is configured.
const DefaultCacheSize = 512

// ErrClosed is returned by searches against an index that is not open.
var ErrClosed = errors.New("index is not open")

// IndexError reports a failed index operation.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string { return fmt.Sprintf("index %s: %v", e.Op, e.Err) }

func (e *IndexError) Unwrap() error { return e.Err }

// Hit is a scored search result.
type Hit struct {
	Product vulndb.Product
	Score   float64
}

// Searcher is the read-only view of an open index handed to analyzers.
type Searcher interface {
	NumDocs() int
	Search(query string, max int) ([]Hit, error)
}

// ProductSource supplies the documents to index.
type ProductSource interface {
	Products(ctx context.Context) ([]vulndb.Product, error)
}

// Index is safe for concurrent searches once open.
type Index struct {
	cacheSize int

	mu       sync.RWMutex
	open     bool
	docs     []vulndb.Product
	postings map[uint64][]int
	cache    *lru.Cache[string, []Hit]
}

// New returns a closed index whose query cache holds cacheSize entries.
func New(cacheSize int) *Index {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Index{cacheSize: cacheSize}
}

func key(field, tok string) uint64 {
	return xxhash.Sum64String(field + "\x00" + tok)
}

// Open builds the index from src. Opening an open index rebuilds it.
func (ix *Index) Open(ctx context.Context, src ProductSource) error {
	if src == nil {
		return &IndexError{Op: "open", Err: errors.New("no product source")}
	}
	products, err := src.Products(ctx)
	if err != nil {
		return &IndexError{Op: "open", Err: err}
	}
	cache, err := lru.New[string, []Hit](ix.cacheSize)
	if err != nil {
		return &IndexError{Op: "open", Err: err}
	}

	postings := make(map[uint64][]int, len(products)*4)
	add := func(field, value string, doc int) {
		for _, tok := range tokens(value) {
			k := key(field, tok)
			list := postings[k]
			if n := len(list); n > 0 && list[n-1] == doc {
				continue
			}
			postings[k] = append(list, doc)
		}
	}
	docs := make([]vulndb.Product, len(products))
	copy(docs, products)
	for i, p := range docs {
		add(FieldVendor, p.Vendor, i)
		add(FieldProduct, p.Product, i)
		add(FieldVersion, p.Version, i)
		add(FieldCPE, p.CPE, i)
	}

	ix.mu.Lock()
	ix.docs = docs
	ix.postings = postings
	ix.cache = cache
	ix.open = true
	ix.mu.Unlock()
	return nil
}

// IsOpen reports whether the index is open.
func (ix *Index) IsOpen() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.open
}

// NumDocs returns the number of indexed products, 0 when closed.
func (ix *Index) NumDocs() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Search returns at most max hits for query, best first. A max of zero or
// less returns every hit.
func (ix *Index) Search(query string, max int) ([]Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.open {
		return nil, &IndexError{Op: "search", Err: ErrClosed}
	}
	ck := strconv.Itoa(max) + "\x00" + query
	if hits, ok := ix.cache.Get(ck); ok {
		return append([]Hit(nil), hits...), nil
	}

	terms := parseQuery(query)
	if len(terms) == 0 {
		return nil, nil
	}
	matched := map[int]int{}
	for _, t := range terms {
		seen := map[int]bool{}
		var lists [][]int
		if t.field == "" {
			lists = [][]int{ix.postings[key(FieldVendor, t.text)], ix.postings[key(FieldProduct, t.text)]}
		} else {
			lists = [][]int{ix.postings[key(t.field, t.text)]}
		}
		for _, list := range lists {
			for _, doc := range list {
				if !seen[doc] {
					seen[doc] = true
					matched[doc]++
				}
			}
		}
	}

	hits := make([]Hit, 0, len(matched))
	for doc, n := range matched {
		hits = append(hits, Hit{Product: ix.docs[doc], Score: float64(n) / float64(len(terms))})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Product.CPE < hits[j].Product.CPE
	})
	if max > 0 && len(hits) > max {
		hits = hits[:max]
	}
	ix.cache.Add(ck, hits)
	return append([]Hit(nil), hits...), nil
}

// Close drops the indexed documents. It is safe to call more than once.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.cache != nil {
		ix.cache.Purge()
	}
	ix.open = false
	ix.docs = nil
	ix.postings = nil
	return nil
}
