// Package vectorizer implements TF-IDF vectorization over a stable,
// append-only vocabulary.
//
// Term ids are assigned on first appearance and never reassigned or
// reused. A full rebuild recomputes document frequencies for the whole
// corpus in one Fit call; incremental indexing extends the vocabulary by
// appending new terms only. Vectors are sparse (non-zero weights keyed by
// term id) and L2-normalized.
package vectorizer

import (
	"encoding/json"
	"fmt"
	"math"
)

// SparseVector maps term id to non-zero TF-IDF weight.
type SparseVector map[int]float64

// IsEmpty reports whether the vector has no non-zero components.
func (v SparseVector) IsEmpty() bool {
	return len(v) == 0
}

// Norm returns the L2 norm of the vector.
func (v SparseVector) Norm() float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Dot returns the dot product of two sparse vectors. Iterates the smaller
// vector so query-against-document stays cheap.
func (v SparseVector) Dot(other SparseVector) float64 {
	a, b := v, other
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for id, w := range a {
		if ow, ok := b[id]; ok {
			sum += w * ow
		}
	}
	return sum
}

// Vocabulary holds the term→id mapping, per-term document frequencies,
// and the total document count. Serialization is deterministic: for the
// same fit history, Encode produces byte-identical output.
type Vocabulary struct {
	// Terms maps a term to its stable integer id.
	Terms map[string]int `json:"terms"`
	// DF is the number of fitted documents each term appeared in.
	DF map[string]int `json:"df"`
	// Docs is the total number of fitted documents (N).
	Docs int `json:"docs"`
}

// NewVocabulary returns an empty vocabulary.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{
		Terms: make(map[string]int),
		DF:    make(map[string]int),
	}
}

// Size returns the number of known terms.
func (v *Vocabulary) Size() int {
	return len(v.Terms)
}

// Fit extends the vocabulary with the given token lists. Unseen terms get
// the next sequential id in order of first appearance; df is incremented
// once per document a term appears in; Docs grows by the number of
// documents. Fit is the only mutating operation.
func (v *Vocabulary) Fit(documents [][]string) {
	for _, tokens := range documents {
		seen := make(map[string]struct{}, len(tokens))
		for _, term := range tokens {
			if _, ok := v.Terms[term]; !ok {
				v.Terms[term] = len(v.Terms)
			}
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				v.DF[term]++
			}
		}
		v.Docs++
	}
}

// IDF returns the smoothed inverse document frequency for a term:
// ln((N+1)/(df+1)) + 1. Smoothing keeps weights positive for ubiquitous
// terms and defined for unseen ones.
func (v *Vocabulary) IDF(term string) float64 {
	df := v.DF[term]
	return math.Log(float64(v.Docs+1)/float64(df+1)) + 1
}

// Transform produces the L2-normalized sparse TF-IDF vector for a token
// list under the current vocabulary. Terms not in the vocabulary are
// dropped. An empty or all-unknown token list yields an empty vector,
// which is legal and matches nothing. Transform never mutates state.
func (v *Vocabulary) Transform(tokens []string) SparseVector {
	tf := make(map[string]int, len(tokens))
	for _, term := range tokens {
		if _, ok := v.Terms[term]; ok {
			tf[term]++
		}
	}
	if len(tf) == 0 {
		return SparseVector{}
	}

	vec := make(SparseVector, len(tf))
	for term, count := range tf {
		vec[v.Terms[term]] = float64(count) * v.IDF(term)
	}

	norm := vec.Norm()
	if norm > 0 {
		for id := range vec {
			vec[id] /= norm
		}
	}
	return vec
}

// TermsByID returns the reverse id→term mapping.
func (v *Vocabulary) TermsByID() map[int]string {
	byID := make(map[int]string, len(v.Terms))
	for term, id := range v.Terms {
		byID[id] = term
	}
	return byID
}

// Encode serializes the vocabulary. Output bytes are identical for
// identical vocabulary state (JSON object keys are sorted).
func (v *Vocabulary) Encode() ([]byte, error) {
	return json.Marshal(v)
}

// DecodeVocabulary deserializes a vocabulary snapshot and validates its
// internal consistency. Any malformation is an error; callers must treat
// it as a corrupt index, never operate on a partial vocabulary.
func DecodeVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode vocabulary: %w", err)
	}
	if v.Terms == nil {
		v.Terms = make(map[string]int)
	}
	if v.DF == nil {
		v.DF = make(map[string]int)
	}

	seen := make(map[int]struct{}, len(v.Terms))
	for term, id := range v.Terms {
		if id < 0 || id >= len(v.Terms) {
			return nil, fmt.Errorf("vocabulary term %q has out-of-range id %d", term, id)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("vocabulary id %d assigned to multiple terms", id)
		}
		seen[id] = struct{}{}
	}
	for term := range v.DF {
		if _, ok := v.Terms[term]; !ok {
			return nil, fmt.Errorf("document frequency recorded for unknown term %q", term)
		}
	}
	if v.Docs < 0 {
		return nil, fmt.Errorf("vocabulary has negative document count %d", v.Docs)
	}
	return &v, nil
}
