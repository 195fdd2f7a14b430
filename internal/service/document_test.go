package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/config"
	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/index"
	"github.com/cloo-solutions/coverdraft/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type documentFixture struct {
	svc    *DocumentService
	docs   *MockDocumentRepository
	chunks *MockChunkRepository
	jobs   *MockIndexJobRepository
	blobs  *MockBlobStore
	tx     *testTxRunner
	idx    *index.Memory
}

func newDocumentFixture(withBlobs bool) *documentFixture {
	f := &documentFixture{
		docs:   new(MockDocumentRepository),
		chunks: new(MockChunkRepository),
		jobs:   new(MockIndexJobRepository),
		idx:    index.NewMemory(),
	}
	f.tx = &testTxRunner{repos: &testTxRepos{documents: f.docs, chunks: f.chunks, indexJobs: f.jobs}}
	deps := DocumentServiceDeps{
		Documents: f.docs,
		Chunks:    f.chunks,
		TxRunner:  f.tx,
		Index:     f.idx,
		Weights:   NewWeightCalculator(config.DefaultWeighting(), fixedClock),
		UUIDGen:   &seqUUIDGenerator{},
		Now:       fixedClock,
	}
	if withBlobs {
		f.blobs = new(MockBlobStore)
		deps.Blobs = f.blobs
	}
	f.svc = NewDocumentService(deps)
	return f
}

const letterText = "Dear team,\n\nI am excited to apply. I have built distributed systems for five years."

func TestDocumentService_Ingest_FromFilename(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()

	f.docs.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.ID == "id-1" &&
			d.Type == domain.DocumentTypeCoverLetter &&
			d.DateSource == domain.DateSourceFilename &&
			d.CanonicalDate.Equal(day(2024, 3, 15)) &&
			d.Company == "Acme-Corp" &&
			d.ManualWeight == 1.0 &&
			d.IndexStatus == domain.IndexStatusPending &&
			d.Style != nil
	})).Return(nil)
	f.jobs.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.IndexJob) bool {
		return j.ID == "id-2" && j.DocumentID == "id-1" && j.Status == domain.IndexJobStatusPending
	})).Return(nil)

	res, err := f.svc.Ingest(ctx, IngestInput{
		Filename: "2024-03-15_Cover-Letter_Acme-Corp.txt",
		Data:     []byte(letterText),
	})
	require.NoError(t, err)
	assert.True(t, f.tx.called)
	assert.Equal(t, "id-2", res.JobID)
	assert.False(t, res.WeightClamped)
	assert.Greater(t, res.Breakdown.Weight, 0.0)

	held, ok := f.idx.Get("id-1")
	require.True(t, ok)
	assert.Equal(t, domain.IndexStatusPending, held.IndexStatus)
	assert.Empty(t, f.idx.Snapshot())
	assert.Len(t, f.idx.Documents(), 1)

	f.docs.AssertExpectations(t)
	f.jobs.AssertExpectations(t)
}

func TestDocumentService_Ingest_ExplicitTypeAndClamp(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()

	f.docs.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.Type == domain.DocumentTypeCV &&
			d.ManualWeight == 10.0 &&
			d.DateSource == domain.DateSourceContent &&
			d.CanonicalDate.Equal(day(2023, 10, 21))
	})).Return(nil)
	f.jobs.On("Create", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.Ingest(ctx, IngestInput{
		Filename:     "uploads/../my-cv.txt",
		Content:      "Updated 21 October 2023. Senior engineer.",
		Type:         "resume",
		ManualWeight: 50,
	})
	require.NoError(t, err)
	assert.True(t, res.WeightClamped)
	assert.Equal(t, "my-cv.txt", res.Document.Filename)
	assert.Equal(t, 10.0, res.Breakdown.ManualWeight)
}

func TestDocumentService_Ingest_DefaultsToOtherAndIngestionDate(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()

	f.docs.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.Type == domain.DocumentTypeOther &&
			d.DateSource == domain.DateSourceIngestion &&
			d.CanonicalDate.Equal(fixedNow)
	})).Return(nil)
	f.jobs.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Ingest(ctx, IngestInput{Filename: "notes.md", Data: []byte("Some notes without dates.")})
	require.NoError(t, err)
	f.docs.AssertExpectations(t)
}

func TestDocumentService_Ingest_ValidationErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing filename", func(t *testing.T) {
		f := newDocumentFixture(false)
		_, err := f.svc.Ingest(ctx, IngestInput{Data: []byte("x")})
		assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
		assert.False(t, f.tx.called)
	})

	t.Run("empty content", func(t *testing.T) {
		f := newDocumentFixture(false)
		_, err := f.svc.Ingest(ctx, IngestInput{Filename: "a.txt", Data: []byte("   \n")})
		assert.ErrorIs(t, err, domain.ErrEmptyContent)
	})

	t.Run("unknown explicit type", func(t *testing.T) {
		f := newDocumentFixture(false)
		_, err := f.svc.Ingest(ctx, IngestInput{Filename: "a.txt", Data: []byte("text"), Type: "memo"})
		assert.ErrorIs(t, err, domain.ErrInvalidDocumentType)
	})

	t.Run("unsupported format", func(t *testing.T) {
		f := newDocumentFixture(false)
		_, err := f.svc.Ingest(ctx, IngestInput{Filename: "a.docx", Data: []byte("text")})
		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	})
}

func TestDocumentService_Ingest_StoresSourceAndCleansUpOnFailure(t *testing.T) {
	f := newDocumentFixture(true)
	ctx := context.Background()
	data := []byte(letterText)

	f.blobs.On("PutObject", mock.Anything, "documents/id-1/letter.txt", "text/plain", data).Return(nil)
	f.blobs.On("DeleteObject", mock.Anything, "documents/id-1/letter.txt").Return(nil)
	f.docs.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.SourceKey == "documents/id-1/letter.txt"
	})).Return(errors.New("db down"))

	_, err := f.svc.Ingest(ctx, IngestInput{Filename: "letter.txt", ContentType: "text/plain", Data: data})
	require.Error(t, err)
	assert.Equal(t, 0, f.idx.Len())
	f.blobs.AssertExpectations(t)
}

func TestDocumentService_SetManualWeight(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()

	doc := domain.NewDocument("d1", "cv.txt", domain.DocumentTypeCV, "text", fixedNow)
	doc.CanonicalDate = fixedNow
	doc.IndexStatus = domain.IndexStatusIndexed
	f.idx.Put(doc, []domain.Chunk{{ID: "c1", DocumentID: "d1", Embedding: []float32{1}}})

	f.docs.On("GetByID", mock.Anything, "d1").Return(doc.Clone(), nil)
	f.docs.On("UpdateManualWeight", mock.Anything, "d1", 0.1, fixedNow).Return(nil)

	upd, err := f.svc.SetManualWeight(ctx, "d1", 0.01)
	require.NoError(t, err)
	assert.True(t, upd.Clamped)
	assert.Equal(t, 0.1, upd.Document.ManualWeight)
	assert.InDelta(t, 2.0*0.1, upd.Breakdown.Weight, 1e-9)

	held, _ := f.idx.Get("d1")
	assert.Equal(t, 0.1, held.ManualWeight)
}

func TestDocumentService_SetManualWeight_ConcurrentEditsAgree(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()

	doc := domain.NewDocument("d1", "cv.txt", domain.DocumentTypeCV, "text", fixedNow)
	doc.IndexStatus = domain.IndexStatusIndexed
	f.idx.Put(doc, []domain.Chunk{{ID: "c1", DocumentID: "d1", Embedding: []float32{1}}})

	var (
		mu        sync.Mutex
		persisted float64
	)
	record := func(args mock.Arguments) {
		mu.Lock()
		persisted = args.Get(2).(float64)
		mu.Unlock()
	}

	firstWrote := make(chan struct{})
	release := make(chan struct{})
	f.docs.On("GetByID", mock.Anything, "d1").Return(doc.Clone(), nil).Once()
	f.docs.On("GetByID", mock.Anything, "d1").Return(doc.Clone(), nil).Once()
	f.docs.On("UpdateManualWeight", mock.Anything, "d1", 2.0, fixedNow).Run(func(args mock.Arguments) {
		record(args)
		close(firstWrote)
		<-release
	}).Return(nil)
	f.docs.On("UpdateManualWeight", mock.Anything, "d1", 3.0, fixedNow).Run(record).Return(nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := f.svc.SetManualWeight(ctx, "d1", 2)
		assert.NoError(t, err)
	}()
	<-firstWrote
	go func() {
		defer wg.Done()
		_, err := f.svc.SetManualWeight(ctx, "d1", 3)
		assert.NoError(t, err)
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	held, ok := f.idx.Get("d1")
	require.True(t, ok)
	assert.Equal(t, persisted, held.ManualWeight)
	assert.Equal(t, 3.0, held.ManualWeight)
}

func TestDocumentService_SetManualWeight_NotFound(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()
	f.docs.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

	_, err := f.svc.SetManualWeight(ctx, "missing", 2)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	assert.True(t, IsNotFound(err))
}

func TestDocumentService_WeightBreakdown_PrefersIndex(t *testing.T) {
	f := newDocumentFixture(false)
	doc := domain.NewDocument("d1", "cv.txt", domain.DocumentTypeCoverLetter, "text", fixedNow)
	doc.CanonicalDate = fixedNow.Add(-365 * dayDur)
	f.idx.Put(doc, nil)

	got, b, err := f.svc.WeightBreakdown(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.ID)
	assert.InDelta(t, 1.8*0.1, b.Weight, 1e-9)
	f.docs.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestDocumentService_Reindex(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()

	doc := domain.NewDocument("d1", "cv.txt", domain.DocumentTypeCV, "text", fixedNow)
	doc.IndexStatus = domain.IndexStatusFailed
	doc.IndexError = "boom"
	f.idx.Put(doc, nil)

	f.docs.On("GetByID", mock.Anything, "d1").Return(doc.Clone(), nil)
	f.docs.On("UpdateIndexStatus", mock.Anything, "d1", domain.IndexStatusPending, "", fixedNow).Return(nil)
	f.jobs.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.IndexJob) bool { return j.DocumentID == "d1" })).Return(nil)

	var notified int
	f.svc.NotifyOnEnqueue(func() { notified++ })

	job, err := f.svc.Reindex(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", job.DocumentID)
	assert.Equal(t, 1, notified)

	held, _ := f.idx.Get("d1")
	assert.Equal(t, domain.IndexStatusPending, held.IndexStatus)
	assert.Empty(t, held.IndexError)
}

func TestDocumentService_Reindex_IndexedStaysSearchable(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()

	doc := domain.NewDocument("d1", "cv.txt", domain.DocumentTypeCV, "text", fixedNow)
	doc.IndexStatus = domain.IndexStatusIndexed
	f.idx.Put(doc, []domain.Chunk{{ID: "c1", DocumentID: "d1", Embedding: []float32{1}}})

	f.docs.On("GetByID", mock.Anything, "d1").Return(doc.Clone(), nil)
	f.jobs.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.IndexJob) bool { return j.DocumentID == "d1" })).Return(nil)

	_, err := f.svc.Reindex(ctx, "d1")
	require.NoError(t, err)

	held, _ := f.idx.Get("d1")
	assert.Equal(t, domain.IndexStatusIndexed, held.IndexStatus)
	require.Len(t, f.idx.Snapshot(), 1)
	f.docs.AssertNotCalled(t, "UpdateIndexStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.jobs.AssertExpectations(t)
}

func TestDocumentService_Delete(t *testing.T) {
	f := newDocumentFixture(true)
	ctx := context.Background()

	doc := domain.NewDocument("d1", "cv.txt", domain.DocumentTypeCV, "text", fixedNow)
	doc.SourceKey = "documents/d1/cv.txt"
	f.idx.Put(doc, nil)

	f.docs.On("GetByID", mock.Anything, "d1").Return(doc.Clone(), nil)
	f.docs.On("Delete", mock.Anything, "d1").Return(nil)
	f.blobs.On("DeleteObject", mock.Anything, "documents/d1/cv.txt").Return(errors.New("gone"))

	require.NoError(t, f.svc.Delete(ctx, "d1"))
	assert.Equal(t, 0, f.idx.Len())
	f.blobs.AssertExpectations(t)
}

func TestDocumentService_List(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()

	cursor := pagination.EncodeCursor("d9", fixedNow)
	page := &DocumentPageResult{Items: []*domain.Document{{ID: "d8"}}, NextCursor: "next", HasMore: true}
	f.docs.On("ListWithCursor", mock.Anything, domain.DocumentTypeCoverLetter, mock.MatchedBy(func(c *pagination.Cursor) bool {
		return c != nil && c.LastID == "d9"
	}), 100).Return(page, nil)

	out, err := f.svc.List(ctx, ListDocumentsInput{Type: "cover-letter", Cursor: cursor, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, "next", out.Cursor)
	assert.True(t, out.HasMore)
	assert.Len(t, out.Items, 1)
}

func TestDocumentService_List_BadInput(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()

	_, err := f.svc.List(ctx, ListDocumentsInput{Type: "memo"})
	assert.ErrorIs(t, err, domain.ErrInvalidDocumentType)

	_, err = f.svc.List(ctx, ListDocumentsInput{Cursor: "%%%"})
	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeValidation, de.Code)
}

func TestDocumentService_Warm(t *testing.T) {
	f := newDocumentFixture(false)
	ctx := context.Background()

	indexed := domain.NewDocument("a", "a.txt", domain.DocumentTypeCV, "alpha", fixedNow)
	indexed.IndexStatus = domain.IndexStatusIndexed
	failed := domain.NewDocument("b", "b.txt", domain.DocumentTypeCoverLetter, "I am excited.", fixedNow)
	failed.IndexStatus = domain.IndexStatusFailed

	f.docs.On("ListAll", mock.Anything).Return([]*domain.Document{indexed, failed}, nil)
	f.chunks.On("ListByDocument", mock.Anything, "a").Return([]domain.Chunk{{ID: "c1", DocumentID: "a", Embedding: []float32{1}}}, nil)

	n, err := f.svc.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, f.idx.Len())
	require.Len(t, f.idx.Snapshot(), 1)
	assert.Len(t, f.idx.Documents(), 1)
	f.chunks.AssertNotCalled(t, "ListByDocument", mock.Anything, "b")
}

func TestDocumentService_SourceURL(t *testing.T) {
	ctx := context.Background()

	t.Run("no storage", func(t *testing.T) {
		f := newDocumentFixture(false)
		_, err := f.svc.SourceURL(ctx, "d1")
		var de *domain.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, domain.ErrCodeUnavailable, de.Code)
	})

	t.Run("presigned", func(t *testing.T) {
		f := newDocumentFixture(true)
		doc := domain.NewDocument("d1", "cv.txt", domain.DocumentTypeCV, "text", fixedNow)
		doc.SourceKey = "documents/d1/cv.txt"
		f.docs.On("GetByID", mock.Anything, "d1").Return(doc, nil)
		f.blobs.On("GenerateDownloadURL", mock.Anything, "documents/d1/cv.txt").Return("https://example.test/x", nil)

		url, err := f.svc.SourceURL(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, "https://example.test/x", url)
	})
}

func TestDocumentService_Style(t *testing.T) {
	f := newDocumentFixture(false)
	letter := domain.NewDocument("l1", "l.txt", domain.DocumentTypeCoverLetter, letterText, fixedNow)
	letter.Style = ExtractStyle(letterText)
	cv := domain.NewDocument("c1", "c.txt", domain.DocumentTypeCV, "Go developer", fixedNow)
	cv.Style = ExtractStyle("Go developer")
	f.idx.Put(letter, nil)
	f.idx.Put(cv, nil)

	style := f.svc.Style(context.Background())
	assert.Equal(t, 1, style.DocumentCount)
	assert.Equal(t, []string{"l1"}, style.SourceIDs)
}

func TestDocumentService_Experiences(t *testing.T) {
	f := newDocumentFixture(false)
	f.idx.Put(cvDoc("cv-old", fixedNow.AddDate(-1, 0, 0), "EXPERIENCE\n2015 - 2017\nJunior Developer at Initech"), nil)
	f.idx.Put(cvDoc("cv-new", fixedNow, sampleCV), nil)
	f.idx.Put(domain.NewDocument("l1", "l.txt", domain.DocumentTypeCoverLetter, letterText, fixedNow), nil)

	exps := f.svc.Experiences(context.Background())
	require.NotEmpty(t, exps)
	assert.Equal(t, "cv-new", exps[0].DocumentID)
	assert.Equal(t, 2.0, exps[0].Weight)
	last := exps[len(exps)-1]
	assert.Equal(t, "cv-old", last.DocumentID)
	assert.Equal(t, 1.0, last.Weight)
	assert.Equal(t, "Initech", last.Company)
}
