package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	documentsUploadedTotal    atomic.Uint64
	extractionCompletedTotal  atomic.Uint64
	extractionFailedTotal     atomic.Uint64
	analysisGeneratedTotal    atomic.Uint64
	analysisFallbackTotal     atomic.Uint64
	analysisParseFailureTotal atomic.Uint64

	generationDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	extractionDuration = newHistogram([]float64{50, 100, 250, 500, 1000, 2000, 5000, 15000})
)

// IncDocumentUploaded increments the uploaded-documents counter.
func IncDocumentUploaded() {
	documentsUploadedTotal.Add(1)
}

// IncExtractionCompleted increments the successful-extraction counter.
func IncExtractionCompleted() {
	extractionCompletedTotal.Add(1)
}

// IncExtractionFailed increments the failed-extraction counter.
func IncExtractionFailed() {
	extractionFailedTotal.Add(1)
}

// IncAnalysisGenerated increments the generated-analyses counter.
func IncAnalysisGenerated() {
	analysisGeneratedTotal.Add(1)
}

// IncAnalysisFallback increments the demo-fallback counter.
func IncAnalysisFallback() {
	analysisFallbackTotal.Add(1)
}

// IncAnalysisParseFailure increments the unparsable-LLM-output counter.
func IncAnalysisParseFailure() {
	analysisParseFailureTotal.Add(1)
}

// ObserveGenerationDurationMs records one analysis generation duration.
func ObserveGenerationDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	generationDuration.Observe(value)
}

// ObserveExtractionDurationMs records one text extraction duration.
func ObserveExtractionDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	extractionDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "documents_uploaded_total", "Total documents uploaded", documentsUploadedTotal.Load())
	writeCounter(&buf, "extraction_completed_total", "Total text extractions completed", extractionCompletedTotal.Load())
	writeCounter(&buf, "extraction_failed_total", "Total text extractions failed", extractionFailedTotal.Load())
	writeCounter(&buf, "analysis_generated_total", "Total analyses generated", analysisGeneratedTotal.Load())
	writeCounter(&buf, "analysis_fallback_total", "Total analyses served by the demo fallback", analysisFallbackTotal.Load())
	writeCounter(&buf, "analysis_parse_failure_total", "Total unparsable LLM responses", analysisParseFailureTotal.Load())
	writeHistogram(&buf, "analysis_generation_duration_ms", "Analysis generation duration in milliseconds", generationDuration.Snapshot())
	writeHistogram(&buf, "extraction_duration_ms", "Text extraction duration in milliseconds", extractionDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts := make([]uint64, len(h.counts))
	copy(counts, h.counts)
	buckets := make([]float64, len(h.buckets))
	copy(buckets, h.buckets)
	return histogramSnapshot{
		buckets: buckets,
		counts:  counts,
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	for i, bound := range snap.buckets {
		fmt.Fprintf(buf, "%s_bucket{le=%q} %d\n", name, strconv.FormatFloat(bound, 'f', -1, 64), snap.counts[i])
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %g\n", name, snap.sum)
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}
