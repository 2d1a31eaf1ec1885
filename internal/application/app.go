// Package application assembles the command and query handlers behind one
// value that a host process embeds.
package application

import (
	"log/slog"

	"github.com/learnhub/completion-core/internal/application/command"
	"github.com/learnhub/completion-core/internal/application/query"
	"github.com/learnhub/completion-core/internal/domain/assessment"
	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/certificate"
	"github.com/learnhub/completion-core/internal/domain/progress"
	"github.com/learnhub/completion-core/internal/domain/shared"
)

// Dependencies are the ports every handler is built from.
type Dependencies struct {
	Catalog      catalog.Reader
	QuestionBank catalog.QuestionBank
	Progress     progress.Repository
	Locker       progress.Locker
	Certificates certificate.Repository
	Assessments  assessment.Repository
	Publisher    shared.EventPublisher

	// Clock is optional; nil uses the system clock.
	Clock  shared.Clock
	Logger *slog.Logger

	MaxQuestions int
}

// Commands (CQRS write side).
type Commands struct {
	MarkLessonComplete      *command.MarkLessonCompleteHandler
	IssueCertificate        *command.IssueCertificateHandler
	GenerateFinalAssessment *command.GenerateFinalAssessmentHandler
	SubmitAssessment        *command.SubmitAssessmentHandler
}

// Queries (CQRS read side).
type Queries struct {
	GetProgress      *query.GetProgressHandler
	ListCertificates *query.ListCertificatesHandler
	GetAssessment    *query.GetAssessmentHandler
}

// Application is the completion core.
type Application struct {
	Commands Commands
	Queries  Queries
}

// New wires every handler.
func New(deps Dependencies) *Application {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	checker := progress.NewChecker(deps.Catalog, deps.Catalog, deps.Progress)
	issuer := command.NewIssueCertificateHandler(deps.Catalog, checker, deps.Certificates, deps.Publisher, deps.Clock, log)

	generateCfg := command.DefaultGenerateFinalAssessmentConfig()
	if deps.MaxQuestions > 0 {
		generateCfg.MaxQuestions = deps.MaxQuestions
	}

	return &Application{
		Commands: Commands{
			MarkLessonComplete: command.NewMarkLessonCompleteHandler(
				deps.Catalog, deps.Catalog, deps.Progress, deps.Locker, checker, issuer, deps.Publisher, deps.Clock, log,
			),
			IssueCertificate: issuer,
			GenerateFinalAssessment: command.NewGenerateFinalAssessmentHandler(
				deps.Catalog, deps.Catalog, deps.Progress, deps.QuestionBank, deps.Assessments, deps.Clock, log, generateCfg,
			),
			SubmitAssessment: command.NewSubmitAssessmentHandler(deps.Catalog, deps.Assessments, deps.Publisher, deps.Clock, log),
		},
		Queries: Queries{
			GetProgress:      query.NewGetProgressHandler(checker, deps.Progress),
			ListCertificates: query.NewListCertificatesHandler(deps.Catalog, deps.Certificates),
			GetAssessment:    query.NewGetAssessmentHandler(deps.Assessments),
		},
	}
}
