// Package importer reads inventory audit sheets: one row per device checked
// during an audit, with whether it was found and in what condition.
package importer

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx/v3"
	"gopkg.in/yaml.v3"
)

// Audit sheet fields
const (
	FieldSerial    = "serial"
	FieldDeviceID  = "device_id"
	FieldFound     = "found"
	FieldCondition = "condition"
	FieldComments  = "comments"
)

// DefaultMaxErrors caps the error samples kept per sheet
const DefaultMaxErrors = 50

// Mapping tells the reader which sheet to use and which headers feed each field
type Mapping struct {
	Version int                 `yaml:"version"`
	Sheet   string              `yaml:"sheet"`
	Aliases map[string][]string `yaml:"aliases"`
}

// DefaultMapping accepts the headers of the console's own report export
// and the usual hand-made variants
func DefaultMapping() Mapping {
	return Mapping{
		Version: 1,
		Aliases: map[string][]string{
			FieldSerial:    {"Serial", "Serial Number", "S/N", "Device"},
			FieldDeviceID:  {"Device ID", "DeviceID", "ID"},
			FieldFound:     {"Found", "Present", "Located"},
			FieldCondition: {"Condition", "State"},
			FieldComments:  {"Comments", "Comment", "Notes"},
		},
	}
}

// ParseMapping decodes a YAML mapping. Fields it omits keep the defaults.
func ParseMapping(data []byte) (Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Mapping{}, fmt.Errorf("failed to parse mapping: %w", err)
	}
	def := DefaultMapping()
	if m.Version == 0 {
		m.Version = def.Version
	}
	if m.Aliases == nil {
		m.Aliases = map[string][]string{}
	}
	for field, aliases := range def.Aliases {
		if len(m.Aliases[field]) == 0 {
			m.Aliases[field] = aliases
		}
	}
	for field := range m.Aliases {
		if _, ok := def.Aliases[field]; !ok {
			return Mapping{}, fmt.Errorf("mapping names unknown field %q", field)
		}
	}
	return m, nil
}

// LoadMapping reads a YAML mapping file. An empty path yields DefaultMapping.
func LoadMapping(path string) (Mapping, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Mapping{}, fmt.Errorf("failed to read mapping %s: %w", path, err)
	}
	return ParseMapping(data)
}

// Row is one audited device as written in the sheet. Line is 1-based.
type Row struct {
	Line      int     `json:"row"`
	Serial    string  `json:"serial,omitempty"`
	DeviceID  int64   `json:"device_id,omitempty"`
	Found     bool    `json:"found"`
	Condition string  `json:"condition,omitempty"`
	Comments  *string `json:"comments,omitempty"`
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Sheet is the parsed content of one audit sheet
type Sheet struct {
	Name    string     `json:"name"`
	Rows    []Row      `json:"-"`
	Skipped int        `json:"skipped"`
	Errors  int        `json:"errors"`
	Samples []RowError `json:"error_samples,omitempty"`
}

// AddError counts a failed row and keeps it as a sample while under max
func (s *Sheet) AddError(row int, max int, format string, args ...any) {
	s.Errors++
	if max <= 0 {
		max = DefaultMaxErrors
	}
	if len(s.Samples) < max {
		s.Samples = append(s.Samples, RowError{Sheet: s.Name, Row: row, Message: fmt.Sprintf(format, args...)})
	}
}

// ReadAuditSheet parses the mapped sheet of an xlsx file, or the first
// sheet whose header row names the audit columns
func ReadAuditSheet(r io.Reader, m Mapping, maxErrors int) (*Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel file: %w", err)
	}
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	if len(xlFile.Sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	if m.Sheet != "" {
		sheet, ok := xlFile.Sheet[m.Sheet]
		if !ok {
			return nil, fmt.Errorf("sheet %q not found", m.Sheet)
		}
		return readSheet(sheet, m, maxErrors)
	}

	// Without a named sheet, the first one carrying audit headers wins
	var firstErr error
	for _, sheet := range xlFile.Sheets {
		out, err := readSheet(sheet, m, maxErrors)
		if err == nil {
			return out, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func readSheet(sheet *xlsx.Sheet, m Mapping, maxErrors int) (*Sheet, error) {
	out := &Sheet{Name: sheet.Name, Rows: []Row{}}

	headerRow, err := sheet.Row(0)
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	columns := headerColumns(headerRow, sheet.MaxCol, m)
	_, hasSerial := columns[FieldSerial]
	_, hasID := columns[FieldDeviceID]
	if !hasSerial && !hasID {
		return nil, fmt.Errorf("sheet %q has neither a serial nor a device id column", sheet.Name)
	}
	if _, ok := columns[FieldFound]; !ok {
		return nil, fmt.Errorf("sheet %q has no found column", sheet.Name)
	}

	for rowIdx := 1; rowIdx < sheet.MaxRow; rowIdx++ {
		row, err := sheet.Row(rowIdx)
		if err != nil {
			break
		}
		values := make(map[string]string, len(columns))
		for field, col := range columns {
			if v := strings.TrimSpace(row.GetCell(col).String()); v != "" {
				values[field] = v
			}
		}
		if len(values) == 0 {
			out.Skipped++
			continue
		}

		line := rowIdx + 1
		parsed, err := buildRow(values, line)
		if err != nil {
			out.AddError(line, maxErrors, "%s", err)
			continue
		}
		out.Rows = append(out.Rows, parsed)
	}
	return out, nil
}

// headerColumns maps each field to its column, matching headers case-insensitively
func headerColumns(header *xlsx.Row, maxCol int, m Mapping) map[string]int {
	lookup := make(map[string]string)
	for field, aliases := range m.Aliases {
		lookup[strings.ToUpper(field)] = field
		for _, alias := range aliases {
			lookup[strings.ToUpper(strings.TrimSpace(alias))] = field
		}
	}

	columns := make(map[string]int)
	for colIdx := 0; colIdx < maxCol; colIdx++ {
		name := strings.ToUpper(strings.TrimSpace(header.GetCell(colIdx).String()))
		if name == "" {
			continue
		}
		field, ok := lookup[name]
		if !ok {
			continue
		}
		if _, taken := columns[field]; !taken {
			columns[field] = colIdx
		}
	}
	return columns
}

func buildRow(values map[string]string, line int) (Row, error) {
	row := Row{Line: line, Serial: values[FieldSerial], Condition: values[FieldCondition]}

	if raw, ok := values[FieldDeviceID]; ok {
		id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
		if err != nil || id <= 0 {
			return Row{}, fmt.Errorf("invalid device id %q", raw)
		}
		row.DeviceID = id
	}
	if row.Serial == "" && row.DeviceID == 0 {
		return Row{}, fmt.Errorf("row names no device")
	}

	found, err := parseFound(values[FieldFound])
	if err != nil {
		return Row{}, err
	}
	row.Found = found

	if c, ok := values[FieldComments]; ok {
		row.Comments = &c
	}
	return row, nil
}

func parseFound(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "true", "1", "x", "found":
		return true, nil
	case "no", "n", "false", "0", "", "-", "missing":
		return false, nil
	}
	return false, fmt.Errorf("invalid found value %q", value)
}
