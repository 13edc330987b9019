// Package pipeline runs a contract submission end to end: validation,
// duplicate detection, extraction, risk analysis, persistence, archiving
// and auditing.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ericksa/lexiguard/internal/analysis"
	"github.com/ericksa/lexiguard/internal/archive"
	"github.com/ericksa/lexiguard/internal/audit"
	"github.com/ericksa/lexiguard/internal/extract"
	"github.com/ericksa/lexiguard/internal/metrics"
	"github.com/ericksa/lexiguard/internal/store"
	apperrors "github.com/ericksa/lexiguard/pkg/errors"
)

const (
	DefaultFilename      = "api_upload.txt"
	DefaultSnippetLength = 500
	defaultUser          = "user"
)

// TextSubmission is contract text posted directly, e.g. through the API.
type TextSubmission struct {
	Text     string
	Filename string
	Source   string
	User     string
}

// DocumentSubmission is an uploaded document that still needs extraction.
type DocumentSubmission struct {
	Filename string
	Content  []byte
	Source   string
	User     string
}

// Outcome is the result of a submission. Duplicate is set when the record
// was found by fingerprint and returned unchanged.
type Outcome struct {
	Record    *store.Record `json:"record"`
	Duplicate bool          `json:"duplicate"`
}

// Service is safe for concurrent use.
type Service struct {
	store      store.Store
	classifier *analysis.Classifier
	segmenter  *analysis.Segmenter
	auditor    *audit.Auditor
	archiver   archive.Archiver
	metrics    *metrics.Metrics
	logger     *zap.Logger

	persistRetries uint64
	retryBase      time.Duration
	snippetLength  int
	now            func() time.Time

	inflight singleflight.Group
}

type Option func(*Service)

func WithAuditor(a *audit.Auditor) Option { return func(s *Service) { s.auditor = a } }

func WithArchiver(a archive.Archiver) Option { return func(s *Service) { s.archiver = a } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

// WithPersistRetries sets how many times a failed store write is retried,
// with exponential backoff starting at base.
func WithPersistRetries(n int, base time.Duration) Option {
	return func(s *Service) {
		if n >= 0 {
			s.persistRetries = uint64(n)
		}
		if base > 0 {
			s.retryBase = base
		}
	}
}

func WithSnippetLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.snippetLength = n
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(st store.Store, classifier *analysis.Classifier, segmenter *analysis.Segmenter, opts ...Option) *Service {
	s := &Service{
		store:          st,
		classifier:     classifier,
		segmenter:      segmenter,
		archiver:       archive.Nop{},
		logger:         zap.NewNop(),
		persistRetries: 3,
		retryBase:      100 * time.Millisecond,
		snippetLength:  DefaultSnippetLength,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auditor == nil {
		s.auditor = audit.NewAuditor(st, s.logger)
	}
	return s
}

// submission is the format-independent part of a request.
type submission struct {
	filename string
	source   string
	user     string
	content  []byte
	extract  func() (string, error)
}

// AnalyzeText analyzes posted contract text. Blank text is a validation
// error.
func (s *Service) AnalyzeText(ctx context.Context, sub TextSubmission) (*Outcome, error) {
	if strings.TrimSpace(sub.Text) == "" {
		s.metrics.ObserveAnalysis(metrics.OutcomeRejected, 0)
		return nil, apperrors.Validation("No text provided")
	}
	text := sub.Text
	return s.submit(ctx, submission{
		filename: defaultString(sub.Filename, DefaultFilename),
		source:   defaultString(sub.Source, "api"),
		user:     defaultString(sub.User, defaultUser),
		content:  []byte(text),
		extract:  func() (string, error) { return text, nil },
	})
}

// AnalyzeDocument extracts and analyzes an uploaded document.
func (s *Service) AnalyzeDocument(ctx context.Context, sub DocumentSubmission) (*Outcome, error) {
	if strings.TrimSpace(sub.Filename) == "" {
		s.metrics.ObserveAnalysis(metrics.OutcomeRejected, 0)
		return nil, apperrors.Validation("No filename provided")
	}
	if len(sub.Content) == 0 {
		s.metrics.ObserveAnalysis(metrics.OutcomeRejected, 0)
		return nil, apperrors.Validation("Uploaded file is empty")
	}
	format, err := extract.FormatFromFilename(sub.Filename)
	if err != nil {
		s.metrics.ObserveAnalysis(metrics.OutcomeRejected, 0)
		return nil, err
	}
	content := sub.Content
	return s.submit(ctx, submission{
		filename: sub.Filename,
		source:   defaultString(sub.Source, "upload"),
		user:     defaultString(sub.User, defaultUser),
		content:  content,
		extract:  func() (string, error) { return extract.Extract(content, format) },
	})
}

func (s *Service) submit(ctx context.Context, sub submission) (*Outcome, error) {
	start := s.now()
	hash := Fingerprint(sub.content)

	// Identical submissions in flight share one run, detached from the
	// leader's cancellation. Callers that only waited on it got a duplicate.
	var ran bool
	v, err, _ := s.inflight.Do(hash, func() (interface{}, error) {
		ran = true
		return s.process(context.WithoutCancel(ctx), hash, sub)
	})
	elapsed := s.now().Sub(start)
	if err != nil {
		s.metrics.ObserveAnalysis(metrics.OutcomeFailed, elapsed)
		return nil, err
	}
	out := v.(*Outcome)
	duplicate := out.Duplicate || !ran
	if !ran {
		s.logDuplicate(ctx, s.logger.With(zap.String("hash", hash), zap.String("filename", sub.filename)), sub.user, out.Record)
	}
	if duplicate {
		s.metrics.ObserveAnalysis(metrics.OutcomeDuplicate, elapsed)
	} else {
		s.metrics.ObserveAnalysis(metrics.OutcomeAnalyzed, elapsed)
	}
	return &Outcome{Record: out.Record.Clone(), Duplicate: duplicate}, nil
}

func (s *Service) logDuplicate(ctx context.Context, logger *zap.Logger, user string, existing *store.Record) {
	logger.Info("duplicate contract detected", zap.String("id", existing.ID))
	s.auditor.Log(ctx, user, audit.ActionDuplicateDetected,
		fmt.Sprintf("Duplicate of %s (analyzed %s)", existing.ID, existing.Timestamp.Format(time.RFC3339)))
}

func (s *Service) process(ctx context.Context, hash string, sub submission) (*Outcome, error) {
	logger := s.logger.With(zap.String("hash", hash), zap.String("filename", sub.filename))

	existing, found, err := FindByFingerprint(ctx, s.store, hash)
	if err != nil {
		return nil, s.fail(ctx, logger, err)
	}
	if found {
		s.logDuplicate(ctx, logger, sub.user, existing)
		return &Outcome{Record: existing, Duplicate: true}, nil
	}

	text, err := sub.extract()
	if err != nil {
		return nil, s.fail(ctx, logger, err)
	}

	normalized := analysis.Normalize(text)
	clauses := s.segmenter.Segment(normalized)
	result := s.classifier.Analyze(clauses)
	s.metrics.ObserveAssessments(result.Assessments)

	rec := &store.Record{
		Filename:        sub.filename,
		Hash:            hash,
		Timestamp:       s.now().UTC(),
		RiskScore:       result.OverallScore,
		Risks:           result.Risks,
		Summary:         result.Summary,
		FullTextSnippet: analysis.Snippet(normalized, s.snippetLength),
		Source:          sub.source,
		HighRiskCount:   result.HighRiskCount,
		ClauseCount:     result.ClauseCount,
	}
	if err := s.persist(ctx, logger, rec); err != nil {
		return nil, s.fail(ctx, logger, err)
	}

	if key, err := s.archiver.Put(ctx, hash, sub.filename, sub.content); err != nil {
		logger.Warn("failed to archive contract source", zap.Error(err))
	} else {
		logger.Debug("archived contract source", zap.String("key", key))
	}

	s.auditor.Log(ctx, sub.user, audit.ActionAnalyzeContract, "Analyzed "+sub.filename)
	logger.Info("contract analyzed",
		zap.String("id", rec.ID),
		zap.Int("risk_score", rec.RiskScore),
		zap.Int("clauses", result.ClauseCount),
		zap.Int("degraded", result.DegradedCount()),
	)
	return &Outcome{Record: rec}, nil
}

func (s *Service) persist(ctx context.Context, logger *zap.Logger, rec *store.Record) error {
	b := retry.WithMaxRetries(s.persistRetries, retry.NewExponential(s.retryBase))
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if _, err := s.store.AddContract(ctx, rec); err != nil {
			logger.Warn("store write failed", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodePersistence, "failed to store contract")
	}
	return nil
}

// fail records a post-validation failure as a system audit event.
func (s *Service) fail(ctx context.Context, logger *zap.Logger, err error) error {
	if apperrors.IsCode(err, apperrors.CodePersistence) {
		logger.Error("contract submission failed", zap.Error(err))
	} else {
		logger.Warn("contract submission rejected", zap.Error(err))
	}
	s.auditor.Log(ctx, audit.SystemUser, audit.ActionError, err.Error())
	return err
}

// Contract returns a stored record by ID.
func (s *Service) Contract(ctx context.Context, id string) (*store.Record, error) {
	return s.store.GetContract(ctx, id)
}

// History returns every stored record, newest first.
func (s *Service) History(ctx context.Context) ([]*store.Record, error) {
	return s.store.ListContracts(ctx)
}

// AuditLog returns up to limit audit events, newest first.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]*store.AuditEvent, error) {
	return s.auditor.GetLogs(ctx, limit)
}

// Keywords returns the classifier's keyword table in priority order.
func (s *Service) Keywords() []analysis.KeywordSet {
	return s.classifier.Keywords().Sets()
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
