package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/learnhub/completion-core/internal/domain/certificate"
	"github.com/learnhub/completion-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKFILL CERTIFICATES JOB
// ══════════════════════════════════════════════════════════════════════════════

// CandidateFinder lists fully complete enrollments without a certificate.
type CandidateFinder interface {
	EnrollmentsAwaitingCertificate(ctx context.Context, limit int) ([]string, error)
}

// CertificateIssuer issues a certificate when the enrollment is complete.
type CertificateIssuer interface {
	IssueIfComplete(ctx context.Context, enrollmentID string) (*certificate.Certificate, error)
}

// BackfillCertificatesConfig contains configuration for the backfill job.
type BackfillCertificatesConfig struct {
	// BatchSize bounds enrollments handled per run.
	BatchSize int
}

// DefaultBackfillCertificatesConfig returns sensible defaults.
func DefaultBackfillCertificatesConfig() BackfillCertificatesConfig {
	return BackfillCertificatesConfig{BatchSize: 200}
}

// BackfillStats summarizes one run.
type BackfillStats struct {
	Candidates int
	Issued     int
	Skipped    int
	Failed     int
}

// BackfillCertificatesJob issues certificates for completions whose
// course.completed event never reached the issuance consumer.
type BackfillCertificatesJob struct {
	finder CandidateFinder
	issuer CertificateIssuer
	config BackfillCertificatesConfig
	logger *slog.Logger
}

// NewBackfillCertificatesJob creates the job.
func NewBackfillCertificatesJob(
	finder CandidateFinder,
	issuer CertificateIssuer,
	config BackfillCertificatesConfig,
	logger *slog.Logger,
) *BackfillCertificatesJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBackfillCertificatesConfig().BatchSize
	}
	return &BackfillCertificatesJob{
		finder: finder,
		issuer: issuer,
		config: config,
		logger: logger.With("job", "backfill_certificates"),
	}
}

// Name implements scheduler.Job.
func (j *BackfillCertificatesJob) Name() string { return "backfill_certificates" }

// Run implements scheduler.Job.
func (j *BackfillCertificatesJob) Run(ctx context.Context) error {
	_, err := j.Backfill(ctx)
	return err
}

// Backfill issues what it can and joins the remaining failures. An
// enrollment that stopped being complete since it was listed is skipped.
func (j *BackfillCertificatesJob) Backfill(ctx context.Context) (BackfillStats, error) {
	ids, err := j.finder.EnrollmentsAwaitingCertificate(ctx, j.config.BatchSize)
	if err != nil {
		return BackfillStats{}, fmt.Errorf("backfill certificates: list candidates: %w", err)
	}

	stats := BackfillStats{Candidates: len(ids)}
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		cert, err := j.issuer.IssueIfComplete(ctx, id)
		switch {
		case err == nil:
			stats.Issued++
			j.logger.Info("backfilled certificate", "enrollment_id", id, "certificate_id", cert.ID)
		case shared.IsPreconditionNotMet(err) || shared.IsNotFound(err):
			stats.Skipped++
		default:
			stats.Failed++
			errs = append(errs, fmt.Errorf("enrollment %s: %w", id, err))
		}
	}

	if stats.Candidates > 0 {
		j.logger.Info("certificate backfill finished",
			"candidates", stats.Candidates,
			"issued", stats.Issued,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
		)
	}
	return stats, errors.Join(errs...)
}
