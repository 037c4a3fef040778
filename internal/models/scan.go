package models

import "time"

// Status de uma execução de scan
const (
	ScanCompleted = "completed"
	ScanPartial   = "partial" // crawl incompleto, remoções não aplicadas
	ScanFailed    = "failed"
)

// ScanState é o estado de um scan em andamento
type ScanState string

const (
	ScanStarted    ScanState = "started"
	ScanCrawled    ScanState = "crawled"
	ScanDiffed     ScanState = "diffed"
	ScanApplied    ScanState = "applied"
	ScanSummarized ScanState = "summarized"
	ScanError      ScanState = "error"
)

// ScanResult é o registro imutável de uma execução de scan
type ScanResult struct {
	ID                int64         `db:"id"`
	CompetitorID      int64         `db:"competitor_id"`
	NewCount          int           `db:"new_count"`
	RemovedCount      int           `db:"removed_count"`
	PriceChangedCount int           `db:"price_changed_count"`
	TitleChangedCount int           `db:"title_changed_count"`
	ScannedAt         time.Time     `db:"scanned_at"`
	Duration          time.Duration `db:"-"`
	Status            string        `db:"status"`
	Error             string        `db:"error"`
}
