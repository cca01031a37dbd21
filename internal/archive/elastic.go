// internal/archive/elastic.go
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"deepsearch/internal/common/errors"
	"deepsearch/internal/common/logger"
	"deepsearch/internal/models"
)

// Config holds the Elasticsearch archive settings.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// ReportArchive persists finished reports to an Elasticsearch index.
// Archival is best-effort: a failed write never fails the pipeline.
type ReportArchive struct {
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

// NewReportArchive creates an archive backed by Elasticsearch.
func NewReportArchive(cfg Config, log logger.Logger) (*ReportArchive, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}

	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ReportArchive{client: es, index: cfg.Index, log: log}, nil
}

// Ping tests the Elasticsearch connection.
func (a *ReportArchive) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := a.client.Ping(
		a.client.Ping.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}

	return nil
}

// Store indexes a report document keyed by its report ID.
func (a *ReportArchive) Store(ctx context.Context, report *models.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return errors.NewArchiveFailedError(fmt.Errorf("failed to marshal report: %w", err))
	}

	res, err := a.client.Index(
		a.index,
		bytes.NewReader(body),
		a.client.Index.WithContext(ctx),
		a.client.Index.WithDocumentID(report.ID),
	)
	if err != nil {
		return errors.NewArchiveFailedError(fmt.Errorf("failed to index report: %w", err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewArchiveFailedError(fmt.Errorf("elasticsearch index error: %s", res.Status()))
	}

	a.log.Debug("Report archived", map[string]interface{}{
		"report_id": report.ID,
		"index":     a.index,
	})

	return nil
}
