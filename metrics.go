// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package stealerparser

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts processed entries, records and skipped units. A nil
// *Metrics is valid and counts nothing.
type Metrics struct {
	EntriesTotal *prometheus.CounterVec
	RecordsTotal *prometheus.CounterVec
	SkippedTotal *prometheus.CounterVec
}

// NewMetrics registers the counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EntriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stealerparser_entries_total",
			Help: "Total number of archive entries by artifact kind",
		}, []string{"kind"}),
		RecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stealerparser_records_total",
			Help: "Total number of parsed records by artifact kind",
		}, []string{"kind"}),
		SkippedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stealerparser_skipped_total",
			Help: "Total number of skipped entries and lines",
		}, []string{"unit"}),
	}
}

// IncrementEntries counts an entry of kind.
func (m *Metrics) IncrementEntries(kind ArtifactKind) {
	if m == nil {
		return
	}
	m.EntriesTotal.WithLabelValues(string(kind)).Inc()
}

// AddRecords counts n records of kind.
func (m *Metrics) AddRecords(kind ArtifactKind, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RecordsTotal.WithLabelValues(string(kind)).Add(float64(n))
}

// AddSkipped counts n skipped units, unit is "entry" or "line".
func (m *Metrics) AddSkipped(unit string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SkippedTotal.WithLabelValues(unit).Add(float64(n))
}
