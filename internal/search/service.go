package search

import (
	"context"
	"sort"
	"sync"
)

// TwoTierAvailability reports which tiers actually served a given query.
type TwoTierAvailability int

const (
	// Full: both the lexical fast phase and the embedding-based final
	// phase ran.
	Full TwoTierAvailability = iota
	// FastOnly: no quality embedder configured; only the lexical phase ran.
	FastOnly
	// QualityOnly: the lexical phase found nothing but a quality-tier
	// vector match still exists (reserved for a future pure-vector
	// fallback path; the current query pipeline always attempts lexical
	// first, so this value is defined but not yet emitted).
	QualityOnly
	// None: no tier produced a match.
	None
)

func (a TwoTierAvailability) String() string {
	switch a {
	case Full:
		return "Full"
	case FastOnly:
		return "FastOnly"
	case QualityOnly:
		return "QualityOnly"
	default:
		return "None"
	}
}

// SearchPhase is one stage of a two-tier query result: "fast" (lexical
// only) or "final" (quality-refined), emitted in that order.
type SearchPhase struct {
	Phase   string
	Results []Document
}

// Service ties the lexical index and the fast/quality embedders together
// behind the query protocol spec §4.6 describes: always run the fast
// lexical phase; if a quality embedder is configured, refine into a
// second "final" phase blending lexical and embedding similarity.
type Service struct {
	idx     *Index
	fast    Embedder
	quality Embedder // nil when not configured

	blendAlpha       float64 // weight on lexical score vs embedding similarity
	refinementWeight float64 // weight on quality-tier score vs fast-tier score within the blend

	mu   sync.RWMutex
	docs map[int64]Document
}

// NewService builds a Service. quality may be nil (FastOnly mode).
func NewService(idx *Index, fast, quality Embedder) *Service {
	return &Service{
		idx: idx, fast: fast, quality: quality,
		blendAlpha: 0.6, refinementWeight: 0.5,
		docs: make(map[int64]Document),
	}
}

// SetBlendWeights overrides the default 0.6/0.5 fast/quality blend
// weights (spec §9: operational parameters, not a correctness contract).
func (s *Service) SetBlendWeights(blendAlpha, refinementWeight float64) {
	s.blendAlpha, s.refinementWeight = blendAlpha, refinementWeight
}

// IndexMessage adds doc to both the lexical index and the service's
// in-memory hydration cache.
func (s *Service) IndexMessage(doc Document) error {
	if err := s.idx.IndexMessage(doc); err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[doc.MessageID] = doc
	s.mu.Unlock()
	return nil
}

// Search runs query against the index, applying filter, and returns every
// phase that ran plus the resulting availability.
func (s *Service) Search(ctx context.Context, query string, filter SearchFilter, k int) (TwoTierAvailability, []SearchPhase, error) {
	if k <= 0 || k > 200 {
		k = 20
	}
	hits, err := s.idx.queryLexical(query, k*4)
	if err != nil {
		return None, nil, err
	}

	s.mu.RLock()
	fastResults := make([]Document, 0, len(hits))
	for _, h := range hits {
		doc, ok := s.docs[h.MessageID]
		if !ok || !filter.Matches(doc) {
			continue
		}
		fastResults = append(fastResults, doc)
	}
	s.mu.RUnlock()

	if len(fastResults) > k {
		fastResults = fastResults[:k]
	}
	if len(fastResults) == 0 {
		return None, nil, nil
	}

	phases := []SearchPhase{{Phase: "fast", Results: fastResults}}
	if s.quality == nil {
		return FastOnly, phases, nil
	}

	refined, err := s.refine(ctx, query, fastResults)
	if err != nil {
		// Quality tier failed at query time (e.g. transient API error):
		// degrade to the fast phase only rather than failing the search.
		return FastOnly, phases, nil
	}
	phases = append(phases, SearchPhase{Phase: "final", Results: refined})
	return Full, phases, nil
}

func (s *Service) refine(ctx context.Context, query string, candidates []Document) ([]Document, error) {
	queryVec, err := s.quality.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	type scored struct {
		doc   Document
		score float32
	}
	out := make([]scored, 0, len(candidates))
	for i, doc := range candidates {
		docVec, err := s.quality.Embed(ctx, doc.Subject+" "+doc.Body)
		if err != nil {
			return nil, err
		}
		lexRank := 1.0 - float64(i)/float64(len(candidates))
		sim := float64(CosineSimilarity(queryVec, docVec))
		blended := s.blendAlpha*lexRank + (1-s.blendAlpha)*s.refinementWeight*sim
		out = append(out, scored{doc: doc, score: float32(blended)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	refined := make([]Document, len(out))
	for i, o := range out {
		refined[i] = o.doc
	}
	return refined, nil
}
