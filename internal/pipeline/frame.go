package pipeline

import (
	"fmt"
	"math"
	"time"

	"daytrade/internal/domain/models"
)

// Frame is a column-oriented table of float64 series indexed by trading date.
// Column order is preserved so downstream matrices are deterministic.
type Frame struct {
	Symbol string
	Dates  []time.Time
	names  []string
	cols   map[string][]float64
}

// NewFrame creates an empty frame over the given dates.
func NewFrame(symbol string, dates []time.Time) *Frame {
	return &Frame{
		Symbol: symbol,
		Dates:  dates,
		cols:   make(map[string][]float64),
	}
}

// FrameFromBars builds the base OHLCV frame from daily bars.
func FrameFromBars(symbol string, bars models.Bars) *Frame {
	n := len(bars)
	dates := make([]time.Time, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	adj := make([]float64, n)
	volume := make([]float64, n)

	for i, b := range bars {
		dates[i] = b.Date
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		adj[i] = b.AdjClose
		if adj[i] == 0 {
			adj[i] = b.Close
		}
		volume[i] = b.Volume
	}

	f := NewFrame(symbol, dates)
	f.Set("open", open)
	f.Set("high", high)
	f.Set("low", low)
	f.Set("close", closes)
	f.Set("adj_close", adj)
	f.Set("volume", volume)
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Dates)
}

// Set adds or replaces a column. The series length must match the frame.
func (f *Frame) Set(name string, values []float64) {
	if len(values) != f.Len() {
		panic(fmt.Sprintf("frame %s: column %q has %d values, want %d", f.Symbol, name, len(values), f.Len()))
	}
	if _, exists := f.cols[name]; !exists {
		f.names = append(f.names, name)
	}
	f.cols[name] = values
}

// Column returns a column by name.
func (f *Frame) Column(name string) ([]float64, bool) {
	col, ok := f.cols[name]
	return col, ok
}

// MustColumn returns a column or panics. Use for columns the caller created.
func (f *Frame) MustColumn(name string) []float64 {
	col, ok := f.cols[name]
	if !ok {
		panic(fmt.Sprintf("frame %s: no column %q", f.Symbol, name))
	}
	return col
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Names returns column names in insertion order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Drop removes columns by name. Missing names are ignored.
func (f *Frame) Drop(names ...string) {
	for _, name := range names {
		if _, ok := f.cols[name]; !ok {
			continue
		}
		delete(f.cols, name)
		for i, n := range f.names {
			if n == name {
				f.names = append(f.names[:i], f.names[i+1:]...)
				break
			}
		}
	}
}

// Select returns a new frame containing only the named columns.
func (f *Frame) Select(names []string) (*Frame, error) {
	out := NewFrame(f.Symbol, f.Dates)
	for _, name := range names {
		col, ok := f.cols[name]
		if !ok {
			return nil, fmt.Errorf("frame %s: no column %q", f.Symbol, name)
		}
		out.Set(name, col)
	}
	return out, nil
}

// SliceRows returns a new frame with rows [from, to).
func (f *Frame) SliceRows(from, to int) *Frame {
	out := NewFrame(f.Symbol, f.Dates[from:to])
	for _, name := range f.names {
		out.Set(name, f.cols[name][from:to])
	}
	return out
}

// FilterRows returns a new frame keeping rows where keep[i] is true.
func (f *Frame) FilterRows(keep []bool) *Frame {
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}

	dates := make([]time.Time, 0, n)
	for i, k := range keep {
		if k {
			dates = append(dates, f.Dates[i])
		}
	}

	out := NewFrame(f.Symbol, dates)
	for _, name := range f.names {
		src := f.cols[name]
		dst := make([]float64, 0, n)
		for i, k := range keep {
			if k {
				dst = append(dst, src[i])
			}
		}
		out.Set(name, dst)
	}
	return out
}

// Matrix materializes the named columns into a row-major matrix.
func (f *Frame) Matrix(names []string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	for j, name := range names {
		col, ok := f.cols[name]
		if !ok {
			return nil, fmt.Errorf("frame %s: no column %q", f.Symbol, name)
		}
		cols[j] = col
	}

	rows := make([][]float64, f.Len())
	for i := range rows {
		row := make([]float64, len(names))
		for j := range names {
			row[j] = cols[j][i]
		}
		rows[i] = row
	}
	return rows, nil
}

// nanSlice returns a slice of n NaN values.
func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// maskWarmup overwrites the first n values with NaN. Indicator libraries
// emit zeros during their warmup window which would otherwise leak into
// training as real values.
func maskWarmup(values []float64, n int) []float64 {
	if n > len(values) {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		values[i] = math.NaN()
	}
	return values
}
