package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"tree-census/internal/model"
)

const exportSheet = "Trees"

// ExportColumns orders the header: reserved keys, the dataset's own columns,
// then any attribute the records carry beyond those, sorted.
func ExportColumns(columns []string, records []model.Record) []string {
	out := append([]string{}, model.ReservedKeys()...)
	seen := make(map[string]bool, len(out)+len(columns))
	for _, k := range out {
		seen[k] = true
	}
	for _, c := range columns {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	var extra []string
	for _, r := range records {
		for k := range r.Attributes {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Cell renders one field of a record for a spreadsheet. Absent fields are empty.
func Cell(r model.Record, column string) string {
	switch column {
	case model.KeyID:
		return strconv.FormatInt(r.ID, 10)
	case model.KeySpecies:
		if r.Species == nil {
			return ""
		}
		return *r.Species
	case model.KeyCondition:
		return r.ConditionLabel()
	case model.KeyLat:
		return formatCoordinate(r.Lat)
	case model.KeyLng:
		return formatCoordinate(r.Lng)
	}
	if v, ok := r.Attribute(column); ok {
		return v.String()
	}
	return ""
}

func formatCoordinate(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// Export writes records in the given format.
func Export(w io.Writer, format Format, columns []string, records []model.Record) error {
	header := ExportColumns(columns, records)
	switch format {
	case FormatCSV:
		return writeCSV(w, header, records)
	case FormatXLSX:
		return writeXLSX(w, header, records)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

func writeCSV(w io.Writer, header []string, records []model.Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(header))
	for _, r := range records {
		for i, col := range header {
			row[i] = Cell(r, col)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", r.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeXLSX(w io.Writer, header []string, records []model.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for n, r := range records {
		row := make([]interface{}, len(header))
		for i, col := range header {
			row[i] = xlsxCell(r, col)
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write record %d: %w", r.ID, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// xlsxCell keeps numbers numeric so spreadsheets can sort and sum them.
func xlsxCell(r model.Record, column string) interface{} {
	switch column {
	case model.KeyID:
		return r.ID
	case model.KeyLat:
		if r.Lat != nil {
			return *r.Lat
		}
		return nil
	case model.KeyLng:
		if r.Lng != nil {
			return *r.Lng
		}
		return nil
	}
	if column != model.KeySpecies && column != model.KeyCondition {
		if v, ok := r.Attribute(column); ok && v.IsNumber() {
			return v.Number
		}
	}
	return Cell(r, column)
}
