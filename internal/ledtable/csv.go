package ledtable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ledmap.transitboard.org/internal/logging"
)

// Header is the column layout written by the offline resolution step.
var Header = []string{"stop_id", "stop_name", "led_id"}

// LoadCSV reads and builds the table stored at path.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stop table: %w", err)
	}
	defer logging.SafeCloseWithLogging(f,
		slog.Default().With(slog.String("component", "stop_table")),
		"stop_table_file")

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	table, err := Build(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ReadCSV parses stop table rows. The header row is optional; without it
// the columns are taken positionally as stop_id, stop_name, led_id. An empty
// led_id cell is read as Unassigned.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	cols := map[string]int{"stop_id": 0, "stop_name": 1, "led_id": 2}
	var rows []Row
	first := true

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if header, ok := parseHeader(record); ok {
				cols = header
				continue
			}
		}

		row, err := parseRow(record, cols, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func parseHeader(record []string) (map[string]int, bool) {
	if !containsColumn(record, "stop_id") {
		return nil, false
	}
	cols := map[string]int{}
	for i, name := range record {
		cols[normalizeColumn(name)] = i
	}
	for _, required := range Header {
		if _, ok := cols[required]; !ok {
			return nil, false
		}
	}
	return cols, true
}

func containsColumn(record []string, name string) bool {
	for _, field := range record {
		if normalizeColumn(field) == name {
			return true
		}
	}
	return false
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
}

func parseRow(record []string, cols map[string]int, line int) (Row, error) {
	field := func(name string) (string, bool) {
		i := cols[name]
		if i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}

	stopID, ok := field("stop_id")
	if !ok || stopID == "" {
		return Row{}, &InvalidRowError{Line: line, Reason: "missing stop_id"}
	}
	name, _ := field("stop_name")
	rawLED, ok := field("led_id")
	if !ok {
		return Row{}, &InvalidRowError{Line: line, Reason: fmt.Sprintf("missing led_id for stop %q", stopID)}
	}

	ch, err := parseChannel(rawLED)
	if err != nil {
		return Row{}, &InvalidRowError{Line: line, Reason: fmt.Sprintf("stop %q: %v", stopID, err)}
	}

	return Row{StopID: stopID, StopName: name, Channel: ch, Line: line}, nil
}

// parseChannel accepts integers and integral floats such as "12.0", which
// spreadsheet tools tend to produce once a column contained a blank.
func parseChannel(raw string) (Channel, error) {
	if raw == "" {
		return Unassigned, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return Channel(n), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("led_id %q is not an integer", raw)
	}
	return Channel(int(f)), nil
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.StopID, row.StopName, strconv.Itoa(int(row.Channel))}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes rows to path through a temporary file in the same directory
// so a half-written table never replaces a good one.
func SaveCSV(path string, rows []Row, logger *slog.Logger) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create stop table: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = writeAndClose(tmp, rows, logger); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace stop table: %w", err)
	}
	return nil
}

func writeAndClose(f *os.File, rows []Row, logger *slog.Logger) (err error) {
	defer logging.HandleDeferredError(&err, f.Close, logger, "close_stop_table")

	if err = WriteCSV(f, rows); err != nil {
		return fmt.Errorf("write stop table: %w", err)
	}
	return f.Sync()
}
