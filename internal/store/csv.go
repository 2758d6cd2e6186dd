package store

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"quantor/internal/domain"
)

// csvDateFormats are tried in order when parsing the date column.
var csvDateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	time.RFC3339,
}

// LoadCSVBars reads daily bars for one symbol from a CSV file. The file must
// carry a header naming at least date, open, high, low, close, and volume
// columns (case-insensitive, any order); extra columns are ignored. UTF-16
// files with a BOM are decoded transparently.
func LoadCSVBars(path, symbol string) (domain.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	// Detect a UTF-16 BOM; if present, decode to UTF-8.
	if b, _ := br.Peek(2); len(b) >= 2 && ((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF)) {
		if _, err := f.Seek(0, 0); err != nil {
			return nil, err
		}
		endian := unicode.LittleEndian
		if b[0] == 0xFE {
			endian = unicode.BigEndian
		}
		tr := transform.NewReader(f, unicode.UTF16(endian, unicode.ExpectBOM).NewDecoder())
		br = bufio.NewReader(tr)
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var prices domain.PriceSeries
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		bar, err := parseBarRow(rec, cols, symbol)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		prices = append(prices, bar)
	}

	if err := prices.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prices, nil
}

// csvColumns maps each required field to its header index.
type csvColumns struct {
	date, open, high, low, clos, volume int
}

func mapColumns(header []string) (csvColumns, error) {
	cols := csvColumns{date: -1, open: -1, high: -1, low: -1, clos: -1, volume: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "date", "timestamp", "time":
			cols.date = i
		case "open":
			cols.open = i
		case "high":
			cols.high = i
		case "low":
			cols.low = i
		case "close", "adj close", "adj_close":
			if cols.clos == -1 || strings.EqualFold(name, "close") {
				cols.clos = i
			}
		case "volume", "vol":
			cols.volume = i
		}
	}
	for _, c := range []struct {
		idx  int
		name string
	}{
		{cols.date, "date"}, {cols.open, "open"}, {cols.high, "high"},
		{cols.low, "low"}, {cols.clos, "close"}, {cols.volume, "volume"},
	} {
		if c.idx == -1 {
			return cols, fmt.Errorf("header is missing a %s column", c.name)
		}
	}
	return cols, nil
}

func parseBarRow(rec []string, cols csvColumns, symbol string) (domain.Bar, error) {
	field := func(i int) string {
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(strings.Trim(rec[i], `"`))
	}

	ts, err := parseCSVDate(field(cols.date))
	if err != nil {
		return domain.Bar{}, err
	}

	num := func(i int) (float64, error) {
		return strconv.ParseFloat(field(i), 64)
	}
	open, err := num(cols.open)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("open: %w", err)
	}
	high, err := num(cols.high)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("high: %w", err)
	}
	low, err := num(cols.low)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("low: %w", err)
	}
	clos, err := num(cols.clos)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("close: %w", err)
	}
	// Volume tolerates float formatting like "1.2e6".
	volF, err := num(cols.volume)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("volume: %w", err)
	}

	return domain.Bar{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     clos,
		Volume:    int64(volF),
	}, nil
}

func parseCSVDate(s string) (time.Time, error) {
	for _, layout := range csvDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	// Unix milliseconds fall through here.
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
