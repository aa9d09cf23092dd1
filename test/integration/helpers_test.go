//go:build integration

// Package integration exercises the persistence and highlighting stack
// against real backing services started with testcontainers. Run with
//
//	go test -tags integration ./test/integration/...
//
// Docker must be available; each test starts and tears down its own
// containers.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loanlens/loanlens/internal/config"
	domainanalysis "github.com/loanlens/loanlens/internal/domain/analysis"
	domaindoc "github.com/loanlens/loanlens/internal/domain/document"
	"github.com/loanlens/loanlens/internal/infrastructure/database/postgres"
	"github.com/loanlens/loanlens/internal/infrastructure/database/postgres/repositories"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// startPostgres launches a PostgreSQL container, applies all migrations,
// and returns an open connection.
func startPostgres(t *testing.T) *postgres.Connection {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "loanlens_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	log := logging.NewNopLogger()
	conn, err := postgres.NewConnection(ctx, config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "test",
		Password: "test",
		DBName:   "loanlens_test",
		SSLMode:  "disable",
		MaxConns: 5,
	}, log)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	mig, err := postgres.NewMigrator(conn, log)
	require.NoError(t, err)
	require.NoError(t, mig.Up())
	require.NoError(t, mig.Close())

	return conn
}

// newRepos builds the two repositories over conn.
func newRepos(conn *postgres.Connection) (*repositories.DocumentRepository, *repositories.AnalysisRepository) {
	log := logging.NewNopLogger()
	return repositories.NewDocumentRepository(conn.Pool(), log),
		repositories.NewAnalysisRepository(conn.Pool(), log)
}

// seedAnalyzedDocument stores a complete document with page text and a full
// result bundle, mirroring what the worker would have written.
func seedAnalyzedDocument(t *testing.T, docs *repositories.DocumentRepository, results *repositories.AnalysisRepository, pages []domaindoc.PageText) common.ID {
	t.Helper()
	ctx := context.Background()

	doc, err := domaindoc.New("loan_agreement.pdf", "application/pdf", 204800)
	require.NoError(t, err)
	require.NoError(t, docs.Create(ctx, doc))

	require.NoError(t, doc.StartProcessing())
	require.NoError(t, docs.Update(ctx, doc))
	require.NoError(t, docs.SavePageTexts(ctx, doc.ID, pages))

	require.NoError(t, doc.CompleteProcessing(len(pages), false))
	require.NoError(t, docs.Update(ctx, doc))

	require.NoError(t, results.SaveBundle(ctx, seedBundle(doc.ID)))
	return doc.ID
}

// seedBundle is a representative analysis result for one document.
func seedBundle(docID common.ID) *domainanalysis.Bundle {
	return &domainanalysis.Bundle{
		DocumentID: docID,
		Summary: &domainanalysis.Summary{
			DocumentType: "Personal Loan Agreement",
			Overview:     "A fixed-rate personal loan with a prepayment penalty.",
		},
		RedFlags: []domainanalysis.RedFlag{{
			ID:          domainanalysis.RedFlagID(1),
			Severity:    common.SeverityHigh,
			Title:       "Prepayment penalty",
			Description: "Six months of interest is charged on early repayment.",
			Location:    domainanalysis.Location{Page: 2, Section: "Section 4"},
		}},
		Clauses: []domainanalysis.HiddenClause{{
			ID:           domainanalysis.HiddenClauseID(1),
			Category:     "dispute_resolution",
			Title:        "Arbitration clause",
			Summary:      "Disputes skip the courts.",
			OriginalText: "All disputes are settled by binding arbitration.",
			PlainEnglish: "You cannot sue the lender in court.",
			Impact:       common.SeverityMedium,
			Location:     domainanalysis.Location{Page: 3, Section: "Section 9"},
		}},
		Terms: []domainanalysis.FinancialTerm{{
			ID:               domainanalysis.FinancialTermID(1),
			Name:             "APR",
			FullName:         "Annual Percentage Rate",
			ShortDescription: "The yearly cost of the loan including fees.",
			YourValue:        "7.0%",
			Location:         domainanalysis.Location{Page: 1, Section: "Section 1"},
		}},
	}
}
