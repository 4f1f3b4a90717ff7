package export

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/muurk/wccp/internal/history"
	"github.com/muurk/wccp/internal/logging"
	"github.com/muurk/wccp/internal/protocol"
	"go.uber.org/zap"
)

// fixedColumns precede the entry columns of every export.
var fixedColumns = []string{
	"time",
	"elapsed_ms",
	"unit",
	"component",
	"packet_id",
	"kind",
	"sequence",
}

// Columns returns the header row for items: the fixed columns followed by
// every field path in the order first seen.
func Columns(items []history.Item) []string {
	columns := append([]string(nil), fixedColumns...)
	seen := make(map[string]bool)
	for _, item := range items {
		for _, f := range item.Packet.Fields() {
			if !seen[f.Path] {
				seen[f.Path] = true
				columns = append(columns, f.Path)
			}
		}
	}
	return columns
}

// WriteCSV writes items as CSV with a header row. Fields missing from a
// packet are left empty.
func WriteCSV(w io.Writer, items []history.Item) error {
	columns := Columns(items)
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}

	var first time.Time
	if len(items) > 0 {
		first = items[0].At
	}

	row := make([]string, len(columns))
	for _, item := range items {
		p := item.Packet
		clear(row)
		row[0] = item.At.Format(time.RFC3339Nano)
		row[1] = strconv.FormatInt(item.At.Sub(first).Milliseconds(), 10)
		row[2] = strconv.Itoa(int(p.Origin))
		row[3] = strconv.Itoa(int(p.Component))
		row[4] = idText(p.ID)
		row[5] = p.Kind.String()
		if p.IsRemote() {
			row[6] = strconv.Itoa(int(p.Sequence))
		}

		values := make(map[string]string)
		for _, f := range p.Fields() {
			values[f.Path] = FormatValue(f.Value)
		}
		for i := len(fixedColumns); i < len(columns); i++ {
			row[i] = values[columns[i]]
		}

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// FormatValue renders a field value for a CSV cell.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	case []byte:
		return hex.EncodeToString(v)
	default:
		return fmt.Sprint(v)
	}
}

// idText renders printable ids as their character.
func idText(id uint8) string {
	if id > 0x20 && id < 0x7F {
		return string(rune(id))
	}
	return fmt.Sprintf("0x%02x", id)
}

// FileName returns the export file name of a series.
func FileName(key protocol.Key) string {
	return fmt.Sprintf("wccp_%02x_%02x_%02x.csv", key.Unit, key.Component, key.ID)
}

// Exporter writes series to CSV files in a directory.
type Exporter struct {
	dir string
}

func New(dir string) *Exporter {
	if dir == "" {
		dir = "."
	}
	return &Exporter{dir: dir}
}

// Dir returns the output directory.
func (e *Exporter) Dir() string { return e.dir }

// Series writes one series and returns the file path.
func (e *Exporter) Series(key protocol.Key, items []history.Item) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("export: series %s is empty", key)
	}
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(e.dir, FileName(key))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}

	if err := WriteCSV(f, items); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	logging.Info("Series exported",
		zap.String("series", key.String()),
		zap.String("path", path),
		zap.Int("packets", len(items)),
	)
	return path, nil
}

// All writes every non-empty series of h and returns the file paths.
func (e *Exporter) All(h *history.History) ([]string, error) {
	var paths []string
	for _, key := range h.Keys() {
		items := h.Items(key)
		if len(items) == 0 {
			continue
		}
		path, err := e.Series(key, items)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
