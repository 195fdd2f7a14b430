// Package index holds the in-memory, read-mostly chunk index used for retrieval.
package index

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cloo-solutions/coverdraft/internal/domain"
)

// Entry is one document's view in a Snapshot. Doc is a private copy and
// Chunks must not be modified.
type Entry struct {
	Doc    *domain.Document
	Chunks []domain.Chunk
	Seq    uint64
}

type entry struct {
	mu     sync.RWMutex
	doc    *domain.Document
	chunks []domain.Chunk
	seq    uint64
}

// Memory is a concurrent document → chunks registry. There is no
// index-wide lock: readers and writers contend only on a single document's
// entry.
type Memory struct {
	entries sync.Map // document ID → *entry
	seq     atomic.Uint64
	size    atomic.Int64
}

// NewMemory creates an empty index
func NewMemory() *Memory {
	return &Memory{}
}

// Put publishes a document and its chunks, replacing any previous chunk set.
// A re-indexed document keeps its original insertion position.
func (m *Memory) Put(doc *domain.Document, chunks []domain.Chunk) {
	published := make([]domain.Chunk, len(chunks))
	copy(published, chunks)

	fresh := &entry{doc: doc.Clone(), chunks: published, seq: m.seq.Add(1)}
	if existing, loaded := m.entries.LoadOrStore(doc.ID, fresh); loaded {
		e := existing.(*entry)
		e.mu.Lock()
		e.doc = doc.Clone()
		e.chunks = published
		e.mu.Unlock()
		return
	}
	m.size.Add(1)
}

// Publish installs a freshly embedded chunk set and marks the document
// indexed. Weight inputs already held for the document are kept, so a manual
// weight change made while embedding was in flight is not lost.
func (m *Memory) Publish(doc *domain.Document, chunks []domain.Chunk) {
	published := make([]domain.Chunk, len(chunks))
	copy(published, chunks)

	d := doc.Clone()
	d.IndexStatus = domain.IndexStatusIndexed
	d.IndexError = ""
	fresh := &entry{doc: d, chunks: published, seq: m.seq.Add(1)}
	existing, loaded := m.entries.LoadOrStore(doc.ID, fresh)
	if !loaded {
		m.size.Add(1)
		return
	}
	e := existing.(*entry)
	e.mu.Lock()
	cur := e.doc.Clone()
	cur.IndexStatus = domain.IndexStatusIndexed
	cur.IndexError = ""
	e.doc = cur
	e.chunks = published
	e.mu.Unlock()
}

// UpdateDocument applies fn to a copy of the stored document under the
// entry's write lock. It reports false when the document is not indexed.
func (m *Memory) UpdateDocument(id string, fn func(d *domain.Document)) bool {
	v, ok := m.entries.Load(id)
	if !ok {
		return false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.doc.Clone()
	fn(d)
	e.doc = d
	return true
}

// MarkFailed excludes a document from retrieval until it is put again.
func (m *Memory) MarkFailed(id, reason string) {
	m.UpdateDocument(id, func(d *domain.Document) {
		d.IndexStatus = domain.IndexStatusFailed
		d.IndexError = reason
	})
}

// Remove drops a document and its chunks.
func (m *Memory) Remove(id string) {
	if _, loaded := m.entries.LoadAndDelete(id); loaded {
		m.size.Add(-1)
	}
}

// Get returns a copy of the stored document.
func (m *Memory) Get(id string) (*domain.Document, bool) {
	v, ok := m.entries.Load(id)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doc.Clone(), true
}

// Len returns the number of documents held, including unsearchable ones.
func (m *Memory) Len() int {
	return int(m.size.Load())
}

// Snapshot returns searchable documents with their chunks in insertion order.
// Failed and not-yet-indexed documents are excluded.
func (m *Memory) Snapshot() []Entry {
	out := make([]Entry, 0, m.Len())
	m.entries.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.RLock()
		if e.doc.IsSearchable() && len(e.chunks) > 0 {
			out = append(out, Entry{Doc: e.doc.Clone(), Chunks: e.chunks, Seq: e.seq})
		}
		e.mu.RUnlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Documents returns copies of every non-failed document in insertion order.
func (m *Memory) Documents() []*domain.Document {
	type seqDoc struct {
		doc *domain.Document
		seq uint64
	}
	var docs []seqDoc
	m.entries.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.RLock()
		if e.doc.IndexStatus != domain.IndexStatusFailed {
			docs = append(docs, seqDoc{doc: e.doc.Clone(), seq: e.seq})
		}
		e.mu.RUnlock()
		return true
	})
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })
	out := make([]*domain.Document, len(docs))
	for i, d := range docs {
		out[i] = d.doc
	}
	return out
}
