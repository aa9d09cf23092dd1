package analysis

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domainanalysis "github.com/loanlens/loanlens/internal/domain/analysis"
	domaindoc "github.com/loanlens/loanlens/internal/domain/document"
	"github.com/loanlens/loanlens/internal/infrastructure/database/redis"
	"github.com/loanlens/loanlens/internal/infrastructure/messaging/kafka"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/internal/infrastructure/storage/minio"
	"github.com/loanlens/loanlens/internal/intelligence/docparse"
	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// mockDocRepo is a mock implementation of document.Repository.
type mockDocRepo struct {
	mock.Mock
}

func (m *mockDocRepo) Create(ctx context.Context, doc *domaindoc.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *mockDocRepo) GetByID(ctx context.Context, id common.ID) (*domaindoc.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domaindoc.Document), args.Error(1)
}

func (m *mockDocRepo) List(ctx context.Context, page common.Pagination) ([]*domaindoc.Document, int, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domaindoc.Document), args.Int(1), args.Error(2)
}

func (m *mockDocRepo) Update(ctx context.Context, doc *domaindoc.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *mockDocRepo) SavePageTexts(ctx context.Context, id common.ID, pages []domaindoc.PageText) error {
	args := m.Called(ctx, id, pages)
	return args.Error(0)
}

func (m *mockDocRepo) GetPageTexts(ctx context.Context, id common.ID) ([]domaindoc.PageText, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domaindoc.PageText), args.Error(1)
}

func (m *mockDocRepo) GetPageText(ctx context.Context, id common.ID, page int) (*domaindoc.PageText, error) {
	args := m.Called(ctx, id, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domaindoc.PageText), args.Error(1)
}

// mockResultsRepo is a mock implementation of analysis.Repository.
type mockResultsRepo struct {
	mock.Mock
}

func (m *mockResultsRepo) SaveBundle(ctx context.Context, b *domainanalysis.Bundle) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *mockResultsRepo) GetBundle(ctx context.Context, docID common.ID) (*domainanalysis.Bundle, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainanalysis.Bundle), args.Error(1)
}

func (m *mockResultsRepo) GetSummary(ctx context.Context, docID common.ID) (*domainanalysis.Summary, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainanalysis.Summary), args.Error(1)
}

func (m *mockResultsRepo) GetRedFlags(ctx context.Context, docID common.ID) ([]domainanalysis.RedFlag, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domainanalysis.RedFlag), args.Error(1)
}

func (m *mockResultsRepo) GetHiddenClauses(ctx context.Context, docID common.ID) ([]domainanalysis.HiddenClause, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domainanalysis.HiddenClause), args.Error(1)
}

func (m *mockResultsRepo) GetFinancialTerms(ctx context.Context, docID common.ID) ([]domainanalysis.FinancialTerm, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domainanalysis.FinancialTerm), args.Error(1)
}

// mockStore is a mock implementation of minio.ObjectStore.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (*minio.PutResult, error) {
	args := m.Called(ctx, key, data, contentType, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*minio.PutResult), args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockStore) PresignGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}

// mockPublisher is a mock implementation of kafka.EventPublisher.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishEvent(ctx context.Context, event common.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// fakeExtractor scripts extraction results per test.
type fakeExtractor struct {
	extraction *docparse.Extraction
	err        error
	calls      int
}

func (f *fakeExtractor) Extract(ctx context.Context, rs io.ReadSeeker) (*docparse.Extraction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.extraction, nil
}

// fakeAnalyzer scripts bundles per test.
type fakeAnalyzer struct {
	bundle *domainanalysis.Bundle
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, docID common.ID, ex *docparse.Extraction) (*domainanalysis.Bundle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.bundle, nil
}

// fakeLock records lock traffic; held scripts the TryLock answer.
type fakeLock struct {
	held    bool
	tryErr  error
	tries   int
	unlocks int
}

func (l *fakeLock) Lock(ctx context.Context) error    { return nil }
func (l *fakeLock) Unlock(ctx context.Context) error  { l.unlocks++; return nil }
func (l *fakeLock) TryLock(ctx context.Context) (bool, error) {
	l.tries++
	return l.held, l.tryErr
}
func (l *fakeLock) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	return true, nil
}
func (l *fakeLock) TTL(ctx context.Context) (time.Duration, error) { return 0, nil }

type fakeLockFactory struct {
	lock     *fakeLock
	lastName string
}

func (f *fakeLockFactory) NewMutex(name string, opts ...redis.LockOption) redis.DistributedLock {
	f.lastName = name
	return f.lock
}

// fakeCache records prefix invalidations; reads always miss.
type fakeCache struct {
	deletedPrefixes []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	return redis.ErrCacheMiss
}
func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (c *fakeCache) Delete(ctx context.Context, keys ...string) error { return nil }
func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}
func (c *fakeCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	v, err := loader(ctx)
	if err != nil {
		return err
	}
	return copyValue(v, dest)
}
func (c *fakeCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	c.deletedPrefixes = append(c.deletedPrefixes, prefix)
	return 1, nil
}
func (c *fakeCache) Ping(ctx context.Context) error { return nil }

// processorEnv bundles the processor's collaborators for one test.
type processorEnv struct {
	docs      *mockDocRepo
	results   *mockResultsRepo
	store     *mockStore
	extractor *fakeExtractor
	analyzer  *fakeAnalyzer
	locks     *fakeLockFactory
	cache     *fakeCache
	publisher *mockPublisher
	processor *Processor
}

func newProcessorEnv() *processorEnv {
	env := &processorEnv{
		docs:      new(mockDocRepo),
		results:   new(mockResultsRepo),
		store:     new(mockStore),
		extractor: &fakeExtractor{},
		analyzer:  &fakeAnalyzer{},
		locks:     &fakeLockFactory{lock: &fakeLock{held: true}},
		cache:     &fakeCache{},
		publisher: new(mockPublisher),
	}
	env.processor = NewProcessor(
		env.docs, env.results, env.store,
		env.extractor, env.analyzer,
		env.locks, env.cache, env.publisher,
		nil, logging.NewNopLogger(),
		ProcessorConfig{Backend: "heuristic", HandlerTimeout: 30 * time.Second},
	)
	return env
}

func uploadedDoc(t *testing.T) *domaindoc.Document {
	t.Helper()
	doc, err := domaindoc.New("agreement.pdf", "application/pdf", 4096)
	require.NoError(t, err)
	doc.ClearEvents()
	return doc
}

func testExtraction(pages int, scanned bool) *docparse.Extraction {
	ex := &docparse.Extraction{PageCount: pages, Scanned: scanned}
	for i := 1; i <= pages; i++ {
		leaves := []string{"Loan Agreement", "Interest accrues at 5.5% per annum"}
		if scanned {
			leaves = nil
		}
		ex.Pages = append(ex.Pages, domaindoc.PageText{Page: i, Leaves: leaves, Scanned: scanned})
		for _, l := range leaves {
			ex.TotalChars += len(l)
		}
	}
	return ex
}

func testBundle(docID common.ID) *domainanalysis.Bundle {
	return &domainanalysis.Bundle{
		DocumentID: docID,
		Summary: &domainanalysis.Summary{
			DocumentType: "personal loan agreement",
			Overview:     "A fixed-term personal loan.",
			KeyNumbers:   domainanalysis.KeyNumbers{TotalLoan: 250000, InterestRate: 5.5, TermMonths: 60},
		},
		RedFlags: []domainanalysis.RedFlag{{
			Severity:    common.SeverityHigh,
			Title:       "Prepayment penalty",
			Description: "A 4% charge applies to early settlement.",
			Location:    domainanalysis.Location{Page: 99},
		}},
	}
}

func TestProcess(t *testing.T) {
	env := newProcessorEnv()
	doc := uploadedDoc(t)
	env.extractor.extraction = testExtraction(2, false)
	env.analyzer.bundle = testBundle(doc.ID)

	env.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)
	env.docs.On("Update", mock.Anything, doc).Return(nil)
	env.docs.On("SavePageTexts", mock.Anything, doc.ID, env.extractor.extraction.Pages).Return(nil)
	env.store.On("Get", mock.Anything, doc.StorageKey).Return([]byte("%PDF-1.7"), nil)

	var saved *domainanalysis.Bundle
	env.results.On("SaveBundle", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domainanalysis.Bundle) }).
		Return(nil)

	var published []common.DomainEvent
	env.publisher.On("PublishEvent", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published = append(published, args.Get(1).(common.DomainEvent)) }).
		Return(nil)

	require.NoError(t, env.processor.Process(context.Background(), doc.ID))

	assert.Equal(t, domaindoc.StatusComplete, doc.Status)
	assert.Equal(t, 2, doc.PageCount)
	require.NotNil(t, doc.ProcessedAt)

	// Sanitize ran: the out-of-range location was clamped and ids assigned.
	require.NotNil(t, saved)
	require.Len(t, saved.RedFlags, 1)
	assert.Equal(t, "rf_001", saved.RedFlags[0].ID)
	assert.Equal(t, 2, saved.RedFlags[0].Location.Page)

	require.Len(t, published, 1)
	analyzed, ok := published[0].(*domaindoc.AnalyzedEvent)
	require.True(t, ok)
	assert.Equal(t, doc.ID, analyzed.DocumentID)
	assert.Equal(t, 2, analyzed.PageCount)

	assert.Equal(t, []string{"doc:" + string(doc.ID) + ":"}, env.cache.deletedPrefixes)
	assert.Equal(t, "analysis:"+string(doc.ID), env.locks.lastName)
	assert.Equal(t, 1, env.locks.lock.unlocks)
	assert.Empty(t, doc.Events())
}

func TestProcessSkipsWhenLockHeldElsewhere(t *testing.T) {
	env := newProcessorEnv()
	env.locks.lock.held = false

	require.NoError(t, env.processor.Process(context.Background(), common.NewDocumentID()))
	env.docs.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	assert.Zero(t, env.locks.lock.unlocks)
}

func TestProcessDropsUnknownDocument(t *testing.T) {
	env := newProcessorEnv()
	id := common.NewDocumentID()
	env.docs.On("GetByID", mock.Anything, id).
		Return(nil, errors.New(errors.ErrCodeDocumentNotFound, "no row"))

	require.NoError(t, env.processor.Process(context.Background(), id))
	env.store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestProcessSkipsTerminalDocument(t *testing.T) {
	env := newProcessorEnv()
	doc := uploadedDoc(t)
	require.NoError(t, doc.StartProcessing())
	require.NoError(t, doc.CompleteProcessing(3, false))
	doc.ClearEvents()

	env.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)

	require.NoError(t, env.processor.Process(context.Background(), doc.ID))
	env.store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	env.docs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestProcessScannedDocumentFails(t *testing.T) {
	env := newProcessorEnv()
	doc := uploadedDoc(t)
	env.extractor.extraction = testExtraction(3, true)

	env.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)
	env.docs.On("Update", mock.Anything, doc).Return(nil)
	env.docs.On("SavePageTexts", mock.Anything, doc.ID, mock.Anything).Return(nil)
	env.store.On("Get", mock.Anything, doc.StorageKey).Return([]byte("%PDF-1.7"), nil)

	var published []common.DomainEvent
	env.publisher.On("PublishEvent", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published = append(published, args.Get(1).(common.DomainEvent)) }).
		Return(nil)

	require.NoError(t, env.processor.Process(context.Background(), doc.ID))

	assert.Equal(t, domaindoc.StatusFailed, doc.Status)
	assert.Contains(t, doc.FailureNote, "scanned")
	assert.Zero(t, env.analyzer.calls)
	env.results.AssertNotCalled(t, "SaveBundle", mock.Anything, mock.Anything)

	// Page texts are still persisted so the highlight surface can serve
	// whatever partial text the pages carry.
	env.docs.AssertCalled(t, "SavePageTexts", mock.Anything, doc.ID, mock.Anything)

	require.Len(t, published, 1)
	failed, ok := published[0].(*domaindoc.FailedEvent)
	require.True(t, ok)
	assert.Contains(t, failed.Note, "scanned")
}

func TestProcessMissingObjectFails(t *testing.T) {
	env := newProcessorEnv()
	doc := uploadedDoc(t)

	env.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)
	env.docs.On("Update", mock.Anything, doc).Return(nil)
	env.store.On("Get", mock.Anything, doc.StorageKey).Return(nil, minio.ErrObjectNotFound)
	env.publisher.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, env.processor.Process(context.Background(), doc.ID))
	assert.Equal(t, domaindoc.StatusFailed, doc.Status)
	assert.Contains(t, doc.FailureNote, "missing")
	assert.Zero(t, env.extractor.calls)
}

func TestProcessUnreadablePDFFails(t *testing.T) {
	env := newProcessorEnv()
	doc := uploadedDoc(t)
	env.extractor.err = errors.New(errors.ErrCodeExtractionFailed, "reading pdf")

	env.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)
	env.docs.On("Update", mock.Anything, doc).Return(nil)
	env.store.On("Get", mock.Anything, doc.StorageKey).Return([]byte("not a pdf"), nil)
	env.publisher.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, env.processor.Process(context.Background(), doc.ID))
	assert.Equal(t, domaindoc.StatusFailed, doc.Status)
	assert.Contains(t, doc.FailureNote, "could not be read")
}

func TestProcessAnalyzerErrorFails(t *testing.T) {
	env := newProcessorEnv()
	doc := uploadedDoc(t)
	env.extractor.extraction = testExtraction(1, false)
	env.analyzer.err = errors.New(errors.ErrCodeAnalyzerUnavailable, "no api key")

	env.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)
	env.docs.On("Update", mock.Anything, doc).Return(nil)
	env.docs.On("SavePageTexts", mock.Anything, doc.ID, mock.Anything).Return(nil)
	env.store.On("Get", mock.Anything, doc.StorageKey).Return([]byte("%PDF-1.7"), nil)
	env.publisher.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, env.processor.Process(context.Background(), doc.ID))
	assert.Equal(t, domaindoc.StatusFailed, doc.Status)
	env.results.AssertNotCalled(t, "SaveBundle", mock.Anything, mock.Anything)
}

func TestProcessTransientStoreErrorRetries(t *testing.T) {
	env := newProcessorEnv()
	doc := uploadedDoc(t)

	env.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)
	env.docs.On("Update", mock.Anything, doc).Return(nil)
	env.store.On("Get", mock.Anything, doc.StorageKey).
		Return(nil, errors.New(errors.ErrCodeStorageError, "connection reset"))

	err := env.processor.Process(context.Background(), doc.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorageError))

	// The document is mid-flight, not failed; a redelivery finishes the job.
	assert.Equal(t, domaindoc.StatusProcessing, doc.Status)
	env.publisher.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything)
}

func TestProcessWithoutLockFactory(t *testing.T) {
	env := newProcessorEnv()
	doc := uploadedDoc(t)
	env.extractor.extraction = testExtraction(1, false)
	env.analyzer.bundle = &domainanalysis.Bundle{DocumentID: doc.ID}

	env.processor = NewProcessor(
		env.docs, env.results, env.store,
		env.extractor, env.analyzer,
		nil, nil, nil,
		nil, logging.NewNopLogger(), ProcessorConfig{},
	)

	env.docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)
	env.docs.On("Update", mock.Anything, doc).Return(nil)
	env.docs.On("SavePageTexts", mock.Anything, doc.ID, mock.Anything).Return(nil)
	env.store.On("Get", mock.Anything, doc.StorageKey).Return([]byte("%PDF-1.7"), nil)
	env.results.On("SaveBundle", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, env.processor.Process(context.Background(), doc.ID))
	assert.Equal(t, domaindoc.StatusComplete, doc.Status)
}

func TestHandleUploaded(t *testing.T) {
	env := newProcessorEnv()
	id := common.NewDocumentID()
	env.docs.On("GetByID", mock.Anything, id).
		Return(nil, errors.New(errors.ErrCodeDocumentNotFound, "no row"))

	envelope, err := kafka.NewEventEnvelope(domaindoc.EventTypeUploaded, "apiserver",
		&domaindoc.UploadedEvent{DocumentID: id, StorageKey: "documents/x/y.pdf"})
	require.NoError(t, err)
	producerMsg, err := envelope.ToMessage(kafka.TopicDocumentUploaded)
	require.NoError(t, err)

	msg := &kafka.Message{Topic: producerMsg.Topic, Value: producerMsg.Value}
	require.NoError(t, env.processor.HandleUploaded(context.Background(), msg))
	env.docs.AssertCalled(t, "GetByID", mock.Anything, id)
}

func TestHandleUploadedMalformedPayload(t *testing.T) {
	env := newProcessorEnv()

	msg := &kafka.Message{Topic: kafka.TopicDocumentUploaded, Value: []byte("not json")}
	require.NoError(t, env.processor.HandleUploaded(context.Background(), msg))
	env.docs.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}
