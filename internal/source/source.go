// Package source enumerates the pagination roots of a run from a CSV file,
// a directory page or inline seeds.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"harvest/scraper/internal/config"
	"harvest/scraper/internal/domain"
	"harvest/scraper/internal/extract"
	"harvest/scraper/internal/pipeline"

	log "github.com/sirupsen/logrus"
)

// CSVFile reads sources from a CSV file with url and category columns.
type CSVFile struct {
	Path string
}

func (f CSVFile) Sources(_ context.Context) ([]domain.Source, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sources file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", f.Path, err)
	}

	urlCol, nameCol := -1, -1
	for i, column := range header {
		switch strings.ToLower(strings.TrimSpace(column)) {
		case "url":
			urlCol = i
		case "category", "name":
			nameCol = i
		}
	}
	if urlCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("%s must have url and category columns, got %v", f.Path, header)
	}

	sources := make([]domain.Source, 0)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s line %d: %w", f.Path, line, err)
		}
		if len(row) <= max(urlCol, nameCol) || strings.TrimSpace(row[urlCol]) == "" {
			log.Warnf("⚠️ Skipping incomplete row %d in %s", line, f.Path)
			continue
		}
		sources = append(sources, domain.Source{
			Name: strings.TrimSpace(row[nameCol]),
			URL:  strings.TrimSpace(row[urlCol]),
		})
	}

	return sources, nil
}

// Seeds are sources listed inline in the configuration.
type Seeds []config.SeedConfig

func (s Seeds) Sources(_ context.Context) ([]domain.Source, error) {
	sources := make([]domain.Source, 0, len(s))
	for _, seed := range s {
		if seed.URL == "" {
			return nil, fmt.Errorf("seed %q has no url", seed.Name)
		}
		name := seed.Name
		if name == "" {
			name = seed.URL
		}
		sources = append(sources, domain.Source{Name: name, URL: seed.URL})
	}
	return sources, nil
}

// Directory fetches a page listing every category and turns it into sources.
type Directory struct {
	URL       string
	Fetcher   pipeline.Fetcher
	Extractor extract.DirectoryExtractor
	Retry     pipeline.RetryPolicy
}

func (d *Directory) Sources(ctx context.Context) ([]domain.Source, error) {
	var sources []domain.Source
	err := d.Retry.Do(ctx, "directory "+d.URL, func(ctx context.Context) error {
		body, err := pipeline.FetchDocument(ctx, d.Fetcher, d.URL, nil)
		if err != nil {
			return err
		}
		sources, err = d.Extractor.ExtractSources(d.URL, body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", d.URL, err)
	}
	return sources, nil
}

// Combined concatenates several listers, keeping the first source seen for
// each URL.
type Combined []pipeline.SourceLister

func (c Combined) Sources(ctx context.Context) ([]domain.Source, error) {
	seen := make(map[string]struct{})
	sources := make([]domain.Source, 0)

	for _, lister := range c {
		found, err := lister.Sources(ctx)
		if err != nil {
			return nil, err
		}
		for _, src := range found {
			if _, dup := seen[src.URL]; dup {
				log.Debugf("Skipping duplicate source %s", src.URL)
				continue
			}
			seen[src.URL] = struct{}{}
			sources = append(sources, src)
		}
	}

	if len(sources) == 0 {
		return nil, errors.New("no sources configured: set sources.file, sources.directory or sources.seeds")
	}
	return sources, nil
}
