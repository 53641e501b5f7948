// Package importsources loads extra feed sources from a CSV file into the
// sources table, where the RSS scraper picks them up on its next run.
package importsources

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/models"
	"ndta-news/pipeline/internal/store"
)

const downloadTimeout = 30 * time.Second

// Columns is the CSV header written by the dashboard export and read here.
var Columns = []string{"url", "name", "kind", "status", "comments"}

var requiredColumns = []string{"url"}

var validStatuses = map[string]bool{
	models.SourceActive:      true,
	models.SourceFailed:      true,
	models.SourceRateLimited: true,
}

// Inserter stores one source.
type Inserter interface {
	InsertSource(ctx context.Context, src *models.Source) error
}

// Result summarises an import.
type Result struct {
	Lines    int
	Imported int
	Errors   []string
}

// Importer reads source lists.
type Importer struct {
	sources Inserter
	client  *http.Client
}

// NewImporter creates an importer writing into sources.
func NewImporter(sources Inserter) *Importer {
	return &Importer{sources: sources, client: &http.Client{Timeout: downloadTimeout}}
}

// ImportFile imports the CSV at location, which is a local path or an
// http(s) URL.
func (i *Importer) ImportFile(ctx context.Context, location string) (Result, error) {
	log.Info().Str("csv", location).Msg("Starting source import")

	rc, err := i.open(ctx, location)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get CSV data: %w", err)
	}
	defer rc.Close()

	res, err := i.Import(ctx, rc)
	if err != nil {
		return res, fmt.Errorf("failed to import sources: %w", err)
	}
	return res, nil
}

func (i *Importer) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("CSV file not found: %w", err)
		}
		return f, nil
	}

	log.Debug().Str("url", location).Msg("Downloading CSV file")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file: HTTP status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Import reads CSV rows from r and inserts one source per row. Bad rows and
// duplicates are collected in the result and do not stop the import.
func (i *Importer) Import(ctx context.Context, r io.Reader) (Result, error) {
	var res Result

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return res, fmt.Errorf("failed to read CSV header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for n, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = n
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return res, fmt.Errorf("required column '%s' not found in CSV header", col)
		}
	}
	get := func(record []string, col string) string {
		n, ok := idx[col]
		if !ok || n >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[n])
	}

	line := 1
	for {
		line++
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if len(record) == 0 || (len(record) == 1 && record[0] == "") {
			continue
		}
		res.Lines++

		src, err := parseRow(get(record, "url"), get(record, "name"), get(record, "kind"), get(record, "status"), get(record, "comments"))
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		logger := log.With().Int("line", line).Str("url", src.URL).Logger()
		if err := i.sources.InsertSource(ctx, src); err != nil {
			if errors.Is(err, store.ErrExists) {
				logger.Warn().Msg("Duplicate URL")
				res.Errors = append(res.Errors, fmt.Sprintf("line %d: duplicate URL: %s", line, src.URL))
				continue
			}
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			logger.Error().Err(err).Msg("Failed to insert source")
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		res.Imported++
		logger.Debug().Msg("Source inserted")
	}

	log.Info().
		Int("total", res.Lines).
		Int("success", res.Imported).
		Int("errors", len(res.Errors)).
		Msg("Import summary")
	return res, nil
}

func parseRow(url, name, kind, status, comments string) (*models.Source, error) {
	if url == "" {
		return nil, errors.New("empty URL")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("invalid URL %q", url)
	}
	if kind == "" {
		kind = string(models.SourceRSS)
	}
	if kind != string(models.SourceRSS) {
		return nil, fmt.Errorf("unsupported source kind %q", kind)
	}
	if name == "" {
		name = url
	}

	src := models.NewSource(strings.ToLower(kind), url, name)
	if status != "" {
		status = strings.ToLower(status)
		if !validStatuses[status] {
			return nil, fmt.Errorf("unknown status %q", status)
		}
		src.Status = status
	}
	if comments != "" {
		src.Comments = sql.NullString{String: comments, Valid: true}
	}
	return src, nil
}
