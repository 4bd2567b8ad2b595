package badger

import (
	"container/heap"
	"slices"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
)

// topK keeps the limit best-scoring documents offered to it.
// Its heap is ordered worst first so the root is the one to evict.
type topK struct {
	limit int
	seq   int
	items []ranked
}

type ranked struct {
	storage.ScoredDocument
	seq int
}

// worse reports whether a ranks below b: lower score, or the same score
// offered later.
func worse(a, b ranked) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.seq > b.seq
}

func (t *topK) Len() int           { return len(t.items) }
func (t *topK) Less(i, j int) bool { return worse(t.items[i], t.items[j]) }
func (t *topK) Swap(i, j int)      { t.items[i], t.items[j] = t.items[j], t.items[i] }
func (t *topK) Push(x any)         { t.items = append(t.items, x.(ranked)) }

func (t *topK) Pop() any {
	last := t.items[len(t.items)-1]
	t.items = t.items[:len(t.items)-1]
	return last
}

func (t *topK) offer(doc *core.ChatDocument, score float64) {
	r := ranked{ScoredDocument: storage.ScoredDocument{Document: doc, Score: score}, seq: t.seq}
	t.seq++
	if len(t.items) < t.limit {
		heap.Push(t, r)
		return
	}
	if worse(t.items[0], r) {
		t.items[0] = r
		heap.Fix(t, 0)
	}
}

// sorted returns the kept documents best first.
func (t *topK) sorted() []storage.ScoredDocument {
	items := slices.Clone(t.items)
	slices.SortFunc(items, func(a, b ranked) int {
		switch {
		case worse(b, a):
			return -1
		case worse(a, b):
			return 1
		}
		return 0
	})
	out := make([]storage.ScoredDocument, len(items))
	for i, r := range items {
		out[i] = r.ScoredDocument
	}
	return out
}
