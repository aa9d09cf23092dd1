package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanlens/loanlens/pkg/errors"
)

func TestNew_ValidPDF(t *testing.T) {
	t.Parallel()

	d, err := New("Loan Agreement.PDF", "application/pdf", 2048)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(d.ID), "doc_"))
	assert.Equal(t, StatusUploaded, d.Status)
	assert.Equal(t, "Loan Agreement.PDF", d.Filename)
	assert.Equal(t, int64(2048), d.SizeBytes)
	assert.Equal(t, "documents/"+string(d.ID)+"/loan_agreement.pdf", d.StorageKey)
	assert.False(t, d.UploadedAt.IsZero())

	events := d.Events()
	require.Len(t, events, 1)
	up, ok := events[0].(*UploadedEvent)
	require.True(t, ok)
	assert.Equal(t, EventTypeUploaded, up.EventType())
	assert.Equal(t, string(d.ID), up.AggregateID())
}

func TestNew_RejectsNonPDF(t *testing.T) {
	t.Parallel()

	_, err := New("notes.txt", "text/plain", 100)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentUnsupported))
}

func TestNew_RejectsEmptyFile(t *testing.T) {
	t.Parallel()

	_, err := New("a.pdf", "application/pdf", 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentEmpty))
}

func TestNew_RejectsBlankFilename(t *testing.T) {
	t.Parallel()

	_, err := New("   ", "application/pdf", 10)
	assert.Error(t, err)
}

func TestIsPDF(t *testing.T) {
	t.Parallel()

	cases := []struct {
		filename    string
		contentType string
		want        bool
	}{
		{"a.pdf", "application/pdf", true},
		{"a.pdf", "application/x-pdf", true},
		{"a.pdf", "", true},
		{"a.PDF", "application/octet-stream", true},
		{"a.pdf", "text/plain", false},
		{"a.docx", "application/octet-stream", false},
		{"a.docx", "", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsPDF(tc.filename, tc.contentType),
			"%s / %s", tc.filename, tc.contentType)
	}
}

func TestLifecycle_HappyPath(t *testing.T) {
	t.Parallel()

	d, err := New("a.pdf", "application/pdf", 10)
	require.NoError(t, err)

	require.NoError(t, d.StartProcessing())
	assert.Equal(t, StatusProcessing, d.Status)

	require.NoError(t, d.CompleteProcessing(12, false))
	assert.Equal(t, StatusComplete, d.Status)
	assert.Equal(t, 12, d.PageCount)
	require.NotNil(t, d.ProcessedAt)

	// uploaded + analyzed
	assert.Len(t, d.Events(), 2)
}

func TestLifecycle_Failure(t *testing.T) {
	t.Parallel()

	d, err := New("a.pdf", "application/pdf", 10)
	require.NoError(t, err)
	require.NoError(t, d.StartProcessing())
	require.NoError(t, d.FailProcessing("extraction produced no pages"))

	assert.Equal(t, StatusFailed, d.Status)
	assert.Equal(t, "extraction produced no pages", d.FailureNote)
}

func TestLifecycle_IllegalTransitions(t *testing.T) {
	t.Parallel()

	d, err := New("a.pdf", "application/pdf", 10)
	require.NoError(t, err)

	// Cannot complete straight from uploaded.
	err = d.CompleteProcessing(1, false)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentStateInvalid))

	require.NoError(t, d.StartProcessing())
	require.NoError(t, d.CompleteProcessing(1, false))

	// Terminal states accept nothing.
	assert.Error(t, d.StartProcessing())
	assert.Error(t, d.FailProcessing("late"))
}

func TestStatus_Public(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "processing", StatusUploaded.Public())
	assert.Equal(t, "processing", StatusProcessing.Public())
	assert.Equal(t, "complete", StatusComplete.Public())
	assert.Equal(t, "failed", StatusFailed.Public())
}

func TestPageText_HasText(t *testing.T) {
	t.Parallel()

	assert.False(t, PageText{Page: 1}.HasText())
	assert.False(t, PageText{Page: 1, Leaves: []string{"  ", "\t"}}.HasText())
	assert.True(t, PageText{Page: 1, Leaves: []string{"", "Borrower shall pay"}}.HasText())
}

func TestClearEvents(t *testing.T) {
	t.Parallel()

	d, err := New("a.pdf", "application/pdf", 10)
	require.NoError(t, err)
	require.NotEmpty(t, d.Events())

	d.ClearEvents()
	assert.Empty(t, d.Events())
}
