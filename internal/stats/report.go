package stats

import (
	"context"

	"github.com/verte-zerg/flashdeck/internal/model"
)

// RecordLoader reads the cached dataset record.
type RecordLoader interface {
	Load(ctx context.Context) (model.CacheRecord, bool, error)
}

// Report contains precomputed data for summary rendering.
type Report struct {
	Cards             int
	Subjects          []SubjectCount
	Unlabeled         int
	WithPronunciation int
	Freshness         model.Freshness
	UpdatePending     bool
}

// BuildReport loads the cached record and summarizes it. An empty cache
// yields an empty report.
func BuildReport(ctx context.Context, loader RecordLoader) (Report, error) {
	record, ok, err := loader.Load(ctx)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return Report{}, nil
	}
	report := Summarize(record.Dataset)
	report.Freshness = record.Freshness
	report.UpdatePending = record.UpdatePending
	return report, nil
}

// Summarize computes the dataset part of a report.
func Summarize(dataset model.Dataset) Report {
	report := Report{
		Cards:    len(dataset),
		Subjects: CountSubjects(dataset),
	}
	for _, card := range dataset {
		if card.Subject == "" {
			report.Unlabeled++
		}
		if card.Pronunciation != "" {
			report.WithPronunciation++
		}
	}
	return report
}
