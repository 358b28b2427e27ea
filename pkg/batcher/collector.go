package batcher

import (
	"github.com/goccy/go-json"

	"github.com/dataplane-io/sqlbatch/pkg/errorx"
)

// =====================================
// QueryCollector
// =====================================

// QueryRecord - one collected batch: the batch text, its size and the metadata
// the caller attached to the producing run.
type QueryRecord struct {
	Query     string         `json:"query"`
	SizeBytes int            `json:"sizeBytes"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// CollectorStats - summary over the collected records.
type CollectorStats struct {
	TotalQueries int `json:"totalQueries"`
	TotalBytes   int `json:"totalBytes"`
}

// QueryCollector - ordered, append-only sink of produced batches, used for
// dry-run inspection and testing in place of real execution. It applies no
// deduplication, no reordering and no size limit, and is not synchronized:
// callers sharing one collector across goroutines must lock around Collect.
type QueryCollector struct {
	records []QueryRecord
}

// NewQueryCollector - QueryCollector constructor.
func NewQueryCollector() *QueryCollector {
	return &QueryCollector{}
}

// Collect appends one record. The metadata mapping is stored verbatim.
func (c *QueryCollector) Collect(batchSQL string, metadata map[string]any) {
	c.records = append(c.records, QueryRecord{
		Query:     batchSQL,
		SizeBytes: len(batchSQL),
		Metadata:  metadata,
	})
}

// GetQueries - snapshot of the recorded sequence in submission order.
// Reading does not clear state: repeated calls without new Collect calls
// return identical sequences.
func (c *QueryCollector) GetQueries() []QueryRecord {
	queries := make([]QueryRecord, len(c.records))
	copy(queries, c.records)

	return queries
}

// QueriesByMeta - the records whose metadata holds the given key/value pair.
func (c *QueryCollector) QueriesByMeta(key string, value any) []QueryRecord {
	var matched []QueryRecord

	for _, rec := range c.records {
		if rec.Metadata == nil {
			continue
		}

		if v, ok := rec.Metadata[key]; ok && v == value {
			matched = append(matched, rec)
		}
	}

	return matched
}

// Stats - summary statistics over the collected records.
func (c *QueryCollector) Stats() CollectorStats {
	stats := CollectorStats{TotalQueries: len(c.records)}

	for _, rec := range c.records {
		stats.TotalBytes += rec.SizeBytes
	}

	return stats
}

// Clear discards all collected records.
func (c *QueryCollector) Clear() {
	c.records = nil
}

// ToJSON - serialize the recorded sequence for inspection or reporting.
func (c *QueryCollector) ToJSON() ([]byte, error) {
	data, err := json.Marshal(c.records)
	if err != nil {
		return nil, errorx.NewExecutionErrorWrapper(err, "error serializing collected queries")
	}

	return data, nil
}
