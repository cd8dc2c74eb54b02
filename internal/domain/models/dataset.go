package models

import "time"

// FeatureRow is one materialized training example: the engineered feature
// vector for a symbol/date plus its forward-looking label.
type FeatureRow struct {
	Symbol   string
	Date     time.Time
	Features map[string]float64
	NextRet  float64
	YUp      uint8
}

// DatasetInfo summarizes a materialized dataset build.
type DatasetInfo struct {
	RunID       string
	Symbols     []string
	Start       time.Time
	End         time.Time
	NumRows     int
	NumFeatures int
	Features    []string
	BuiltAt     time.Time
}
