package model

import "time"

// StageMetrics records how long one engine stage took and how many records it produced.
type StageMetrics struct {
	Stage     string        `json:"stage"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Records   int           `json:"records"`
}
