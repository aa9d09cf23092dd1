package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domaindoc "github.com/loanlens/loanlens/internal/domain/document"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/internal/infrastructure/storage/minio"
	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// mockDocumentRepository is a mock implementation of document.Repository.
type mockDocumentRepository struct {
	mock.Mock
}

func (m *mockDocumentRepository) Create(ctx context.Context, doc *domaindoc.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *mockDocumentRepository) GetByID(ctx context.Context, id common.ID) (*domaindoc.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domaindoc.Document), args.Error(1)
}

func (m *mockDocumentRepository) List(ctx context.Context, page common.Pagination) ([]*domaindoc.Document, int, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domaindoc.Document), args.Int(1), args.Error(2)
}

func (m *mockDocumentRepository) Update(ctx context.Context, doc *domaindoc.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *mockDocumentRepository) SavePageTexts(ctx context.Context, id common.ID, pages []domaindoc.PageText) error {
	args := m.Called(ctx, id, pages)
	return args.Error(0)
}

func (m *mockDocumentRepository) GetPageTexts(ctx context.Context, id common.ID) ([]domaindoc.PageText, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domaindoc.PageText), args.Error(1)
}

func (m *mockDocumentRepository) GetPageText(ctx context.Context, id common.ID, page int) (*domaindoc.PageText, error) {
	args := m.Called(ctx, id, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domaindoc.PageText), args.Error(1)
}

// mockObjectStore is a mock implementation of minio.ObjectStore.
type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (*minio.PutResult, error) {
	args := m.Called(ctx, key, data, contentType, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*minio.PutResult), args.Error(1)
}

func (m *mockObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockObjectStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockObjectStore) PresignGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}

// mockEventPublisher is a mock implementation of kafka.EventPublisher.
type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishEvent(ctx context.Context, event common.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func newTestService(repo *mockDocumentRepository, store *mockObjectStore, pub *mockEventPublisher) Service {
	return NewService(repo, store, pub, nil, logging.NewNopLogger())
}

func pdfUpload() *UploadInput {
	return &UploadInput{
		Filename:    "Loan Agreement.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.7 fake body"),
	}
}

func TestUpload(t *testing.T) {
	repo := new(mockDocumentRepository)
	store := new(mockObjectStore)
	pub := new(mockEventPublisher)
	svc := newTestService(repo, store, pub)

	store.On("Put", mock.Anything, mock.Anything, mock.Anything, "application/pdf",
		map[string]string{"filename": "Loan Agreement.pdf"}).
		Return(&minio.PutResult{ETag: "abc"}, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	var published common.DomainEvent
	pub.On("PublishEvent", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).(common.DomainEvent) }).
		Return(nil)

	res, err := svc.Upload(context.Background(), pdfUpload())
	require.NoError(t, err)

	assert.True(t, len(res.DocumentID) > 4)
	assert.Equal(t, "processing", res.Status)
	assert.Equal(t, int64(len("%PDF-1.7 fake body")), res.SizeBytes)
	assert.Equal(t, "Loan Agreement.pdf", res.Filename)
	assert.False(t, res.UploadedAt.IsZero())

	require.NotNil(t, published)
	uploaded, ok := published.(*domaindoc.UploadedEvent)
	require.True(t, ok)
	assert.Equal(t, res.DocumentID, uploaded.DocumentID)
	assert.Contains(t, uploaded.StorageKey, "loan_agreement.pdf")

	// The object key passed to storage must equal the one on the event.
	putKey := store.Calls[0].Arguments.String(1)
	assert.Equal(t, uploaded.StorageKey, putKey)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	repo := new(mockDocumentRepository)
	store := new(mockObjectStore)
	svc := newTestService(repo, store, new(mockEventPublisher))

	_, err := svc.Upload(context.Background(), &UploadInput{
		Filename:    "budget.xlsx",
		ContentType: "application/vnd.ms-excel",
		Data:        []byte("PK..."),
	})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentUnsupported))
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	svc := newTestService(new(mockDocumentRepository), new(mockObjectStore), new(mockEventPublisher))

	_, err := svc.Upload(context.Background(), &UploadInput{
		Filename:    "empty.pdf",
		ContentType: "application/pdf",
		Data:        nil,
	})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentEmpty))
}

func TestUploadStoreFailure(t *testing.T) {
	repo := new(mockDocumentRepository)
	store := new(mockObjectStore)
	svc := newTestService(repo, store, new(mockEventPublisher))

	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New(errors.ErrCodeStorageError, "minio down"))

	_, err := svc.Upload(context.Background(), pdfUpload())
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentStoreFailed))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUploadRepoFailureRemovesObject(t *testing.T) {
	repo := new(mockDocumentRepository)
	store := new(mockObjectStore)
	pub := new(mockEventPublisher)
	svc := newTestService(repo, store, pub)

	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&minio.PutResult{}, nil)
	repo.On("Create", mock.Anything, mock.Anything).
		Return(errors.New(errors.ErrCodeDatabaseError, "insert failed"))
	store.On("Delete", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Upload(context.Background(), pdfUpload())
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))

	putKey := store.Calls[0].Arguments.String(1)
	store.AssertCalled(t, "Delete", mock.Anything, putKey)
	pub.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything)
}

func TestUploadSurvivesPublishFailure(t *testing.T) {
	repo := new(mockDocumentRepository)
	store := new(mockObjectStore)
	pub := new(mockEventPublisher)
	svc := newTestService(repo, store, pub)

	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&minio.PutResult{}, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	pub.On("PublishEvent", mock.Anything, mock.Anything).
		Return(errors.New(errors.ErrCodeMessagingError, "broker down"))

	res, err := svc.Upload(context.Background(), pdfUpload())
	require.NoError(t, err)
	assert.Equal(t, "processing", res.Status)
}

func TestUploadWithoutPublisher(t *testing.T) {
	repo := new(mockDocumentRepository)
	store := new(mockObjectStore)
	svc := NewService(repo, store, nil, nil, logging.NewNopLogger())

	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&minio.PutResult{}, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Upload(context.Background(), pdfUpload())
	require.NoError(t, err)
}

func TestGet(t *testing.T) {
	repo := new(mockDocumentRepository)
	store := new(mockObjectStore)
	svc := newTestService(repo, store, new(mockEventPublisher))

	doc, err := domaindoc.New("contract.pdf", "application/pdf", 2048)
	require.NoError(t, err)
	require.NoError(t, doc.StartProcessing())
	require.NoError(t, doc.CompleteProcessing(12, false))

	repo.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)
	store.On("PresignGetURL", mock.Anything, doc.StorageKey, time.Duration(0)).
		Return("https://minio.local/presigned", nil)

	detail, err := svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, detail.DocumentID)
	assert.Equal(t, "complete", detail.Status)
	assert.Equal(t, 12, detail.PageCount)
	assert.Equal(t, "https://minio.local/presigned", detail.DownloadURL)
	require.NotNil(t, detail.ProcessedAt)
}

func TestGetServesDetailWhenPresignFails(t *testing.T) {
	repo := new(mockDocumentRepository)
	store := new(mockObjectStore)
	svc := newTestService(repo, store, new(mockEventPublisher))

	doc, err := domaindoc.New("contract.pdf", "application/pdf", 2048)
	require.NoError(t, err)

	repo.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)
	store.On("PresignGetURL", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New(errors.ErrCodeStorageError, "presign failed"))

	detail, err := svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.DownloadURL)
	assert.Equal(t, "processing", detail.Status)
}

func TestGetRejectsMalformedID(t *testing.T) {
	svc := newTestService(new(mockDocumentRepository), new(mockObjectStore), new(mockEventPublisher))

	_, err := svc.Get(context.Background(), "not-a-doc-id")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestGetUnknownDocument(t *testing.T) {
	repo := new(mockDocumentRepository)
	svc := newTestService(repo, new(mockObjectStore), new(mockEventPublisher))

	id := common.NewDocumentID()
	repo.On("GetByID", mock.Anything, id).
		Return(nil, errors.New(errors.ErrCodeDocumentNotFound, "no such document"))

	_, err := svc.Get(context.Background(), id)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentNotFound))
}

func TestList(t *testing.T) {
	repo := new(mockDocumentRepository)
	svc := newTestService(repo, new(mockObjectStore), new(mockEventPublisher))

	docA, err := domaindoc.New("a.pdf", "application/pdf", 100)
	require.NoError(t, err)
	docB, err := domaindoc.New("b.pdf", "application/pdf", 200)
	require.NoError(t, err)

	repo.On("List", mock.Anything, common.Pagination{Page: 2, PageSize: 10}).
		Return([]*domaindoc.Document{docA, docB}, 42, nil)

	res, err := svc.List(context.Background(), &ListInput{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 42, res.Total)
	assert.Equal(t, 2, res.Page)
	assert.Len(t, res.Documents, 2)
	assert.Equal(t, docA.ID, res.Documents[0].DocumentID)
	assert.Equal(t, "processing", res.Documents[0].Status)
}

func TestListDefaultsAndClamping(t *testing.T) {
	repo := new(mockDocumentRepository)
	svc := newTestService(repo, new(mockObjectStore), new(mockEventPublisher))

	repo.On("List", mock.Anything, common.Pagination{Page: 1, PageSize: 20}).
		Return([]*domaindoc.Document{}, 0, nil).Once()
	_, err := svc.List(context.Background(), nil)
	require.NoError(t, err)

	repo.On("List", mock.Anything, common.Pagination{Page: 1, PageSize: 100}).
		Return([]*domaindoc.Document{}, 0, nil).Once()
	_, err = svc.List(context.Background(), &ListInput{PageSize: 5000})
	require.NoError(t, err)

	repo.AssertExpectations(t)
}
