// Package parser converts delimited vocabulary text into cards.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/verte-zerg/flashdeck/internal/model"
)

// ParseFile reads a dataset from the given path.
func ParseFile(path string) (model.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only dataset file.
			_ = cerr
		}
	}()

	return Parse(file)
}

// Parse reads comma-delimited text whose first line names the columns.
// Fields are trimmed, missing trailing fields become empty strings and
// surplus fields are ignored. Rows are not validated here.
func Parse(r io.Reader) (model.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return model.Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	headers := normalizeHeaders(header)

	dataset := model.Dataset{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if isBlank(record) {
			continue
		}
		fields := make(map[string]string, len(headers))
		for i, name := range headers {
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			fields[name] = value
		}
		dataset = append(dataset, model.CardFromFields(fields))
	}
	return dataset, nil
}

// Clean drops cards without a term or a meaning and returns how many
// were dropped.
func Clean(dataset model.Dataset) (model.Dataset, int) {
	out := make(model.Dataset, 0, len(dataset))
	for _, card := range dataset {
		if card.Term == "" || card.Meaning == "" {
			continue
		}
		out = append(out, card)
	}
	return out, len(dataset) - len(out)
}

func normalizeHeaders(header []string) []string {
	out := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		out[i] = model.CanonicalField(name)
	}
	return out
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
