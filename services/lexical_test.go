package services

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"the and a of", nil},
		{"Go 1.24 release notes", []string{"go", "1", "24", "release", "notes"}},
		{"Déjà vu über alles", []string{"déjà", "vu", "über", "alles"}},
		{"", nil},
	}
	for _, tc := range cases {
		got := Tokenize(tc.in)
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestBM25RanksTermMatches(t *testing.T) {
	docs := [][]string{
		Tokenize("mongodb stores documents in collections"),
		Tokenize("redis is an in-memory cache"),
		Tokenize("mongodb transactions require replica sets, mongodb sessions drive them"),
	}
	bm25 := newBM25(docs)
	query := Tokenize("mongodb transactions")

	scores := make([]float64, len(docs))
	for i := range docs {
		scores[i] = bm25.Score(query, i)
	}

	if scores[1] != 0 {
		t.Errorf("unrelated doc scored %f, want 0", scores[1])
	}
	if scores[2] <= scores[0] {
		t.Errorf("doc with both terms scored %f, doc with one term %f", scores[2], scores[0])
	}
	if scores[0] <= 0 {
		t.Errorf("partial match scored %f, want > 0", scores[0])
	}
}

func TestBM25LengthNormalization(t *testing.T) {
	// Same single occurrence of the term; the shorter doc should score higher.
	short := Tokenize("kubernetes cluster")
	long := Tokenize("kubernetes deployment service ingress volume namespace operator controller scheduler")
	bm25 := newBM25([][]string{short, long})
	query := Tokenize("kubernetes")

	if bm25.Score(query, 0) <= bm25.Score(query, 1) {
		t.Errorf("short doc %f should outscore long doc %f",
			bm25.Score(query, 0), bm25.Score(query, 1))
	}
}

func TestBM25EmptyCorpus(t *testing.T) {
	bm25 := newBM25(nil)
	if got := bm25.Score(Tokenize("anything"), 0); got != 0 {
		t.Errorf("empty corpus scored %f", got)
	}
}
