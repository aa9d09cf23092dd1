// Package analysis is the application layer around analysis results: the
// worker-side Processor that turns an uploaded document into a persisted
// result bundle, and the read-side Service that serves those results with a
// Redis cache in front of Postgres.
package analysis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	domainanalysis "github.com/loanlens/loanlens/internal/domain/analysis"
	domaindoc "github.com/loanlens/loanlens/internal/domain/document"
	"github.com/loanlens/loanlens/internal/infrastructure/database/redis"
	"github.com/loanlens/loanlens/internal/infrastructure/messaging/kafka"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/prometheus"
	"github.com/loanlens/loanlens/internal/infrastructure/storage/minio"
	"github.com/loanlens/loanlens/internal/intelligence/docparse"
	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// Lock tuning: the TTL outlives the handler budget so a crashed worker's
// lock expires instead of orphaning the document forever.
const (
	defaultHandlerTimeout = 5 * time.Minute
	lockGrace             = 30 * time.Second
)

// Extractor pulls the text layer out of raw PDF bytes.
type Extractor interface {
	Extract(ctx context.Context, rs io.ReadSeeker) (*docparse.Extraction, error)
}

// DocumentAnalyzer produces the result bundle for an extracted document.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, docID common.ID, ex *docparse.Extraction) (*domainanalysis.Bundle, error)
}

// ProcessorConfig tunes one Processor.
type ProcessorConfig struct {
	// Backend labels analysis metrics; it mirrors the analyzer config.
	Backend string
	// HandlerTimeout bounds one document's full pipeline run.
	HandlerTimeout time.Duration
}

// Processor drives the analysis pipeline for one uploaded document: claim a
// per-document lock, load the PDF, extract, analyze, persist, and flip the
// document's status. It is the handler behind the document.uploaded topic and
// behind the offline analyze command.
type Processor struct {
	docs      domaindoc.Repository
	results   domainanalysis.Repository
	store     minio.ObjectStore
	extractor Extractor
	analyzer  DocumentAnalyzer
	locks     redis.LockFactory
	cache     redis.Cache
	publisher kafka.EventPublisher
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
	cfg       ProcessorConfig
}

// NewProcessor wires a Processor. locks, cache, and publisher may be nil in
// offline use; locking, cache invalidation, and event publishing are then
// skipped.
func NewProcessor(
	docs domaindoc.Repository,
	results domainanalysis.Repository,
	store minio.ObjectStore,
	extractor Extractor,
	analyzer DocumentAnalyzer,
	locks redis.LockFactory,
	cache redis.Cache,
	publisher kafka.EventPublisher,
	metrics *prometheus.AppMetrics,
	logger logging.Logger,
	cfg ProcessorConfig,
) *Processor {
	if metrics == nil {
		metrics = prometheus.NewNopAppMetrics()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = defaultHandlerTimeout
	}
	if cfg.Backend == "" {
		cfg.Backend = "heuristic"
	}
	return &Processor{
		docs:      docs,
		results:   results,
		store:     store,
		extractor: extractor,
		analyzer:  analyzer,
		locks:     locks,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.Named("processor"),
		cfg:       cfg,
	}
}

// HandleUploaded is the kafka handler for the document.uploaded topic. A nil
// return commits the offset; errors feed the consumer's retry path.
func (p *Processor) HandleUploaded(ctx context.Context, msg *kafka.Message) error {
	envelope, err := kafka.ParseEnvelope(msg)
	if err != nil {
		// A malformed envelope never becomes valid; log and commit.
		p.logger.Error("dropping malformed event", logging.String("topic", msg.Topic), logging.Err(err))
		p.metrics.RecordEvent(msg.Topic, true)
		return nil
	}
	var event domaindoc.UploadedEvent
	if err := envelope.DecodePayload(&event); err != nil {
		p.logger.Error("dropping undecodable payload",
			logging.String("topic", msg.Topic),
			logging.String("event_id", envelope.EventID),
			logging.Err(err))
		p.metrics.RecordEvent(msg.Topic, true)
		return nil
	}

	err = p.Process(ctx, event.DocumentID)
	p.metrics.RecordEvent(msg.Topic, err != nil)
	return err
}

// Process runs the full pipeline for one document. Permanent problems (a
// scanned document, an unreadable PDF, a missing row) mark the document
// failed and return nil so the message commits; only transient infrastructure
// errors propagate for retry.
func (p *Processor) Process(ctx context.Context, docID common.ID) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.HandlerTimeout)
	defer cancel()

	if p.locks != nil {
		lock := p.locks.NewMutex("analysis:"+string(docID),
			redis.WithLockTTL(p.cfg.HandlerTimeout+lockGrace))
		ok, err := lock.TryLock(ctx)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeCacheError, "claiming document lock")
		}
		if !ok {
			p.logger.Info("document already being processed elsewhere",
				logging.String("document_id", string(docID)))
			return nil
		}
		defer func() {
			if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				p.logger.Warn("releasing document lock failed",
					logging.String("document_id", string(docID)), logging.Err(err))
			}
		}()
	}

	doc, err := p.docs.GetByID(ctx, docID)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeDocumentNotFound) {
			p.logger.Warn("uploaded event for unknown document, dropping",
				logging.String("document_id", string(docID)))
			return nil
		}
		return err
	}

	switch doc.Status {
	case domaindoc.StatusComplete, domaindoc.StatusFailed:
		p.logger.Debug("document already terminal, skipping",
			logging.String("document_id", string(docID)),
			logging.String("status", string(doc.Status)))
		return nil
	case domaindoc.StatusUploaded:
		if err := doc.StartProcessing(); err != nil {
			return err
		}
		if err := p.docs.Update(ctx, doc); err != nil {
			return err
		}
	}
	// A document already in processing was abandoned by a crashed worker;
	// holding the lock, this run simply redoes the work.

	start := time.Now()
	err = p.analyze(ctx, doc)
	p.metrics.RecordAnalysis(p.cfg.Backend, err != nil || doc.Status == domaindoc.StatusFailed, time.Since(start))
	if err != nil {
		return err
	}

	p.invalidate(ctx, docID)
	p.publishEvents(ctx, doc)
	return nil
}

// analyze performs extraction through persistence. On return with a nil
// error the document is terminal: complete, or failed with a note.
func (p *Processor) analyze(ctx context.Context, doc *domaindoc.Document) error {
	data, err := p.store.Get(ctx, doc.StorageKey)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			return p.fail(ctx, doc, "the stored file is missing")
		}
		return err
	}

	ex, err := p.extractor.Extract(ctx, bytes.NewReader(data))
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		p.logger.Warn("extraction failed",
			logging.String("document_id", string(doc.ID)), logging.Err(err))
		return p.fail(ctx, doc, "the document could not be read as a PDF")
	}

	// Page texts are stored even for scanned documents; the highlight
	// surface uses whatever partial text exists.
	if err := p.docs.SavePageTexts(ctx, doc.ID, ex.Pages); err != nil {
		return err
	}

	if ex.Scanned {
		return p.fail(ctx, doc, fmt.Sprintf(
			"the document appears to be scanned; only %d characters of selectable text were found", ex.TotalChars))
	}

	bundle, err := p.analyzer.Analyze(ctx, doc.ID, ex)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		p.logger.Error("analysis failed",
			logging.String("document_id", string(doc.ID)), logging.Err(err))
		return p.fail(ctx, doc, "the analyzer backend did not produce results for this document")
	}

	bundle.Sanitize(ex.PageCount)
	if err := p.results.SaveBundle(ctx, bundle); err != nil {
		return err
	}

	if err := doc.CompleteProcessing(ex.PageCount, ex.Scanned); err != nil {
		return err
	}
	if err := p.docs.Update(ctx, doc); err != nil {
		return err
	}

	p.logger.Info("document analyzed",
		logging.String("document_id", string(doc.ID)),
		logging.Int("pages", ex.PageCount),
		logging.Int("red_flags", len(bundle.RedFlags)),
		logging.Int("hidden_clauses", len(bundle.Clauses)),
		logging.Int("financial_terms", len(bundle.Terms)))
	return nil
}

// fail marks the document permanently failed. The note is user-facing; it is
// what the read API returns in the error field.
func (p *Processor) fail(ctx context.Context, doc *domaindoc.Document, note string) error {
	if err := doc.FailProcessing(note); err != nil {
		return err
	}
	if err := p.docs.Update(ctx, doc); err != nil {
		return err
	}
	p.logger.Warn("document failed",
		logging.String("document_id", string(doc.ID)),
		logging.String("note", note))
	p.invalidate(ctx, doc.ID)
	p.publishEvents(ctx, doc)
	return nil
}

// invalidate drops every cached read of the document so the next request
// sees the new terminal state.
func (p *Processor) invalidate(ctx context.Context, docID common.ID) {
	if p.cache == nil {
		return
	}
	if _, err := p.cache.DeleteByPrefix(ctx, cachePrefix(docID)); err != nil {
		p.logger.Warn("cache invalidation failed",
			logging.String("document_id", string(docID)), logging.Err(err))
	}
}

func (p *Processor) publishEvents(ctx context.Context, doc *domaindoc.Document) {
	if p.publisher == nil {
		doc.ClearEvents()
		return
	}
	for _, event := range doc.Events() {
		if err := p.publisher.PublishEvent(ctx, event); err != nil {
			p.logger.Error("publishing document event failed",
				logging.String("document_id", string(doc.ID)),
				logging.String("event_type", event.EventType()),
				logging.Err(err))
		}
	}
	doc.ClearEvents()
}
