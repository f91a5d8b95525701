package search

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
)

// Document is one indexed message, in the shape both the lexical index and
// the embedders operate on.
type Document struct {
	MessageID  int64  `json:"message_id"`
	ProjectID  int64  `json:"project_id"`
	ThreadID   string `json:"thread_id"`
	Sender     string `json:"sender"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Importance string `json:"importance"`
	CreatedTs  uint64 `json:"created_ts"`
}

// indexedFields is the field list whose ComputeSchemaHash identifies this
// index's schema. The bleve index itself uses bleve's default mapping,
// which indexes every Document field.
var indexedFields = []string{"subject", "body", "sender", "thread_id", "importance"}

// Index wraps a bleve full-text index with the project's message schema.
type Index struct {
	bleveIdx bleve.Index
	schema   SchemaHash
}

// OpenMemIndex builds an in-memory index — suitable for tests and for a
// single-node deployment that rebuilds its index from the store on
// startup rather than persisting it.
func OpenMemIndex() (*Index, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("search: building in-memory index: %w", err)
	}
	return &Index{bleveIdx: idx, schema: ComputeSchemaHash(indexedFields)}, nil
}

// OpenIndex opens (or creates) a durable index rooted at path.
func OpenIndex(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &Index{bleveIdx: idx, schema: ComputeSchemaHash(indexedFields)}, nil
	}
	mapping := bleve.NewIndexMapping()
	idx, err = bleve.New(path, mapping)
	if err != nil {
		return nil, fmt.Errorf("search: building index at %s: %w", path, err)
	}
	return &Index{bleveIdx: idx, schema: ComputeSchemaHash(indexedFields)}, nil
}

// Schema returns this index's schema hash, for compatibility checks against
// a persisted IndexCheckpoint.
func (i *Index) Schema() SchemaHash { return i.schema }

// Close releases the underlying bleve index.
func (i *Index) Close() error { return i.bleveIdx.Close() }

func docID(messageID int64) string { return strconv.FormatInt(messageID, 10) }

// IndexMessage adds or replaces doc in the index.
func (i *Index) IndexMessage(doc Document) error {
	if err := i.bleveIdx.Index(docID(doc.MessageID), doc); err != nil {
		return fmt.Errorf("search: indexing message %d: %w", doc.MessageID, err)
	}
	return nil
}

// lexicalHit is one match from the bleve query phase, before filtering and
// (optionally) quality-tier refinement.
type lexicalHit struct {
	MessageID int64
	Score     float64
}

// queryLexical runs query as a bleve query string (terms without a field
// prefix search every indexed field) and returns the top k matches by
// bleve score, highest first.
func (i *Index) queryLexical(query string, k int) ([]lexicalHit, error) {
	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	result, err := i.bleveIdx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: lexical query: %w", err)
	}
	hits := make([]lexicalHit, 0, len(result.Hits))
	for _, h := range result.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, lexicalHit{MessageID: id, Score: h.Score})
	}
	return hits, nil
}
