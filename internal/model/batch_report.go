package model

// BatchReport aggregates the reports of one run over several documents.
type BatchReport struct {
	// Documents are the per-document reports in input order.
	Documents []*DocumentReport `json:"documents"`
}

// NewBatchReport wraps reports.
func NewBatchReport(reports []*DocumentReport) *BatchReport {
	return &BatchReport{Documents: reports}
}

// TotalUnits returns the number of units across every document.
func (b *BatchReport) TotalUnits() int {
	n := 0
	for _, r := range b.Documents {
		n += r.TotalUnits()
	}
	return n
}

// Failed returns the number of documents that ended with an error.
func (b *BatchReport) Failed() int {
	n := 0
	for _, r := range b.Documents {
		if r.Failed() {
			n++
		}
	}
	return n
}

// CountByKind sums unit counts per kind across every document.
func (b *BatchReport) CountByKind() map[string]int {
	counts := make(map[string]int)
	for _, r := range b.Documents {
		for k, v := range r.CountByKind() {
			counts[k] += v
		}
	}
	return counts
}
