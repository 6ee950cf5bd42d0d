package chart

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"apex/internal/decision"
	"apex/internal/market"
)

func TestWriteHTML(t *testing.T) {
	bars := []market.Bar{
		{OpenTime: 60_000, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{OpenTime: 120_000, Open: 10.5, High: 12, Low: 10, Close: 11.5, Volume: 150},
	}
	results := []decision.Result{
		{BarIndex: 0, Score: 5, Level: decision.Neutral},
		{BarIndex: 1, Score: -40, Level: decision.Bearish},
	}
	path := filepath.Join(t.TempDir(), "out.html")
	if err := WriteHTML(path, bars, results, Options{Title: "test", Interval: "1m"}); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	html := string(data)
	if !strings.Contains(html, "echarts") {
		t.Fatalf("output does not look like an echarts page")
	}
	for _, want := range []string{"price", "score", "signals"} {
		if !strings.Contains(html, want) {
			t.Fatalf("output missing series %q", want)
		}
	}
}

func TestWriteHTMLRejectsMismatch(t *testing.T) {
	bars := []market.Bar{{OpenTime: 1, Open: 1, High: 1, Low: 1, Close: 1}}
	if err := WriteHTML(filepath.Join(t.TempDir(), "x.html"), bars, nil, Options{}); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func TestWriteHTMLRejectsEmpty(t *testing.T) {
	if err := WriteHTML(filepath.Join(t.TempDir(), "x.html"), nil, nil, Options{}); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
