// Package readings loads logged temperatures from a CSV export.
//
// Each row is entity_id,recorded_at,value with recorded_at in RFC 3339
// (a timestamp without zone is taken as UTC). A header row is optional.
// Rows are grouped per entity in file order; sorting is left to the
// evaluator, which keeps the order of equal timestamps.
package readings

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// ErrMalformed is returned for a row that cannot be parsed.
var ErrMalformed = errors.New("readings: malformed row")

var layouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// Load reads the CSV file at path.
func Load(path string) (map[string][]types.TemperatureReading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("readings: open: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads CSV rows from r and groups them by entity id.
func Parse(r io.Reader) (map[string][]types.TemperatureReading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	out := make(map[string][]types.TemperatureReading)
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("readings: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(rec[0]), "entity_id") {
				continue
			}
		}

		reading, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out[reading.EntityID] = append(out[reading.EntityID], reading)
	}
	return out, nil
}

func parseRow(rec []string) (types.TemperatureReading, error) {
	id := strings.TrimSpace(rec[0])
	if id == "" {
		return types.TemperatureReading{}, fmt.Errorf("%w: empty entity_id", ErrMalformed)
	}
	at, err := parseTime(strings.TrimSpace(rec[1]))
	if err != nil {
		return types.TemperatureReading{}, fmt.Errorf("%w: recorded_at %q", ErrMalformed, rec[1])
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return types.TemperatureReading{}, fmt.Errorf("%w: value %q", ErrMalformed, rec[2])
	}
	return types.TemperatureReading{EntityID: id, Value: v, RecordedAt: at}, nil
}

func parseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
