package models

import "time"

// Bar represents one daily OHLCV record for a symbol.
type Bar struct {
	Symbol   string
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
}

// Bars is a date-ordered slice of bars for one symbol.
type Bars []Bar

// Tick is a raw trade tick from the streaming feed. Ticks are rolled up
// into daily bars before storage.
type Tick struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}
