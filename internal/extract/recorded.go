package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowerwork/iceberg/internal/common"
)

// recording is the on-disk shape of a pre-recorded analyze call, matching
// what the OCR engine returns for a document.
type recording struct {
	RawText       string            `json:"raw_text"`
	Tables        [][][]string      `json:"tables"`
	KeyValuePairs map[string]string `json:"key_value_pairs"`
}

// DecodeAnalysis parses a recorded analyze result from JSON.
func DecodeAnalysis(data []byte) (AnalysisResult, error) {
	var rec recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return AnalysisResult{}, fmt.Errorf("decode analysis: %w", err)
	}
	res := AnalysisResult{
		Tables:        rec.Tables,
		KeyValuePairs: rec.KeyValuePairs,
	}
	if rec.RawText != "" {
		res.Lines = strings.Split(strings.TrimRight(rec.RawText, "\n"), "\n")
	}
	if res.KeyValuePairs == nil {
		res.KeyValuePairs = map[string]string{}
	}
	return res, nil
}

// RecordedAnalyzer satisfies Analyzer with content that is itself a recorded
// analysis document. The batch CLI and tests run the full pipeline against
// these without touching the real OCR service.
type RecordedAnalyzer struct{}

func (RecordedAnalyzer) Analyze(_ context.Context, content []byte) (AnalysisResult, error) {
	res, err := DecodeAnalysis(content)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("%w: %v", common.ErrExtraction, err)
	}
	return res, nil
}
