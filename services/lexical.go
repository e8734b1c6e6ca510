package services

import (
	"math"
	"regexp"
	"strings"
)

// Lexical scoring for the hybrid engine: a unicode word tokenizer with an
// English stop-word filter feeding a BM25 scorer built per query over the
// node's candidate chunks.

// tokenRegex matches word runs in any script; \p{L}\p{N} beats \w for
// non-ASCII documents.
var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {}, "it": {},
	"its": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "to": {}, "was": {},
	"were": {}, "will": {}, "with": {},
}

// Tokenize lowercases text and splits it into stop-word-filtered word tokens.
func Tokenize(text string) []string {
	words := tokenRegex.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// BM25 parameters; the usual defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// bm25Scorer scores tokenized documents against a query using Okapi BM25.
// Built once per query over the candidate set, so the index is tiny and
// throwaway.
type bm25Scorer struct {
	termFreqs []map[string]int
	docLens   []int
	docFreq   map[string]int
	avgLen    float64
}

func newBM25(docs [][]string) *bm25Scorer {
	s := &bm25Scorer{
		termFreqs: make([]map[string]int, len(docs)),
		docLens:   make([]int, len(docs)),
		docFreq:   make(map[string]int),
	}

	total := 0
	for i, tokens := range docs {
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		s.termFreqs[i] = tf
		s.docLens[i] = len(tokens)
		total += len(tokens)
		for t := range tf {
			s.docFreq[t]++
		}
	}
	if len(docs) > 0 {
		s.avgLen = float64(total) / float64(len(docs))
	}
	return s
}

// Score returns the BM25 score of document i for the query tokens. Documents
// sharing no terms with the query score zero.
func (s *bm25Scorer) Score(query []string, i int) float64 {
	if i < 0 || i >= len(s.termFreqs) || s.avgLen == 0 {
		return 0
	}

	n := float64(len(s.termFreqs))
	docLen := float64(s.docLens[i])
	score := 0.0

	for _, term := range query {
		tf := float64(s.termFreqs[i][term])
		if tf == 0 {
			continue
		}
		df := float64(s.docFreq[term])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		score += idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*docLen/s.avgLen))
	}
	return score
}
