package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/torosent/pixelfire/internal/config"
	"github.com/torosent/pixelfire/internal/orchestrator"
)

var csvHeader = []string{"key", "metric", "type", "count", "rate", "passes", "fails", "min_ms", "avg_ms", "med_ms", "max_ms", "p90_ms", "p95_ms", "p99_ms"}

// WriteCSV writes one row per metric key of the report snapshot.
func WriteCSV(w io.Writer, report orchestrator.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, key := range report.Snapshot.Keys() {
		agg := report.Snapshot.Metrics[key]
		row := []string{
			key,
			agg.Metric,
			string(agg.Type),
			strconv.FormatInt(agg.Count, 10),
			formatFloat(agg.Rate),
			strconv.FormatInt(agg.Passes, 10),
			strconv.FormatInt(agg.Fails, 10),
		}
		if t := agg.Trend; t != nil {
			row = append(row, formatFloat(t.Min), formatFloat(t.Avg), formatFloat(t.Med), formatFloat(t.Max),
				formatFloat(t.P90), formatFloat(t.P95), formatFloat(t.P99))
		} else {
			row = append(row, "", "", "", "", "", "", "")
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ResolveFormat returns format, or the format implied by path's extension
// when format is empty. JSON is the fallback.
func ResolveFormat(path string, format config.SummaryFormat) config.SummaryFormat {
	if format == "" {
		return formatFromPath(path)
	}
	return format
}

// Export writes the report to path in ResolveFormat(path, format).
func Export(path string, format config.SummaryFormat, report orchestrator.Report) error {
	format = ResolveFormat(path, format)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary export: %w", err)
	}

	switch format {
	case config.SummaryFormatCSV:
		err = WriteCSV(f, report)
	case config.SummaryFormatJSON:
		err = PrintJSONReport(f, report)
	default:
		err = fmt.Errorf("unsupported summary format %q", format)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write summary export: %w", err)
	}
	return nil
}

func formatFromPath(path string) config.SummaryFormat {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return config.SummaryFormatCSV
	}
	return config.SummaryFormatJSON
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
