package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// column roles recognized in CSV headers, case-insensitive.
var columnSynonyms = map[string]string{
	"time":      "time",
	"date":      "time",
	"datetime":  "time",
	"timestamp": "time",
	"open_time": "time",
	"o":         "open",
	"open":      "open",
	"h":         "high",
	"high":      "high",
	"l":         "low",
	"low":       "low",
	"c":         "close",
	"close":     "close",
	"v":         "volume",
	"vol":       "volume",
	"volume":    "volume",
}

// LoadCSV reads an OHLCV bar file from disk. See ReadBars for format rules.
func LoadCSV(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	bars, err := ReadBars(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return bars, nil
}

// ReadBars parses CSV bar data. The first row must be a header; column names
// are matched case-insensitively against the synonym map (time/date/datetime/
// timestamp, o/open, h/high, l/low, c/close, v/volume). Rows missing any of
// time or OHLC are dropped, rows missing volume get zero volume. Bars are
// returned sorted by time and validated as a series.
func ReadBars(r io.Reader) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if role, ok := columnSynonyms[key]; ok {
			if _, dup := cols[role]; !dup {
				cols[role] = i
			}
		}
	}
	for _, required := range []string{"time", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("header missing %s column", required)
		}
	}

	var bars []Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bar, ok := parseRow(rec, cols)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no usable rows")
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].OpenTime < bars[j].OpenTime })
	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func parseRow(rec []string, cols map[string]int) (Bar, bool) {
	field := func(role string) (string, bool) {
		idx, ok := cols[role]
		if !ok || idx >= len(rec) {
			return "", false
		}
		v := strings.TrimSpace(rec[idx])
		return v, v != ""
	}

	ts, ok := field("time")
	if !ok {
		return Bar{}, false
	}
	ms, err := parseTimestamp(ts)
	if err != nil {
		return Bar{}, false
	}
	var bar Bar
	bar.OpenTime = ms
	for _, role := range []string{"open", "high", "low", "close"} {
		raw, ok := field(role)
		if !ok {
			return Bar{}, false
		}
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Bar{}, false
		}
		switch role {
		case "open":
			bar.Open = val
		case "high":
			bar.High = val
		case "low":
			bar.Low = val
		case "close":
			bar.Close = val
		}
	}
	if raw, ok := field("volume"); ok {
		if val, err := strconv.ParseFloat(raw, 64); err == nil {
			bar.Volume = val
		}
	}
	return bar, true
}

// parseTimestamp accepts RFC3339, "2006-01-02 15:04:05", date-only, and
// numeric unix seconds or milliseconds. Returns unix milliseconds.
func parseTimestamp(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Values this large can only be milliseconds.
		if n >= 1e12 {
			return n, nil
		}
		return n * 1000, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized time %q", s)
}
