// Package importer converts spreadsheet files into a record store and writes
// the visible set back out.
package importer

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"tree-census/internal/model"
	"tree-census/internal/utils"
)

const (
	DefaultJitter  = 0.1
	DefaultMaxRows = 100000

	maxWarnings = 50
)

// Options controls the fallbacks applied to incomplete rows.
type Options struct {
	// Center anchors randomized coordinates when the file has no lat/lng columns.
	Center model.LatLng
	// Jitter is the side in degrees of the square around Center.
	Jitter float64
	// Seed drives the fallback points. Zero uses the clock.
	Seed    int64
	MaxRows int
}

type Result struct {
	Dataset  *model.Dataset
	Format   Format
	Rows     int
	Warnings []string
}

var reservedAliases = map[string]string{
	"id":          model.KeyID,
	"treeid":      model.KeyID,
	"objectid":    model.KeyID,
	"fid":         model.KeyID,
	"species":     model.KeySpecies,
	"name":        model.KeySpecies,
	"commonname":  model.KeySpecies,
	"speciesname": model.KeySpecies,
	"condition":   model.KeyCondition,
	"health":      model.KeyCondition,
	"lat":         model.KeyLat,
	"latitude":    model.KeyLat,
	"y":           model.KeyLat,
	"lng":         model.KeyLng,
	"lon":         model.KeyLng,
	"long":        model.KeyLng,
	"longitude":   model.KeyLng,
	"x":           model.KeyLng,
}

// column maps a header cell to either a reserved key or an open attribute name.
type column struct {
	index    int
	header   string
	reserved string
	name     string
}

// Parse reads a CSV or XLSX file into a fresh dataset. Any malformed cell
// fails the whole import so the caller's store is never half replaced.
func Parse(r io.Reader, filename string, opts Options) (*Result, error) {
	format, err := FormatFromFilename(filename)
	if err != nil {
		return nil, err
	}
	return ParseFormatted(r, format, filename, opts)
}

func ParseFormatted(r io.Reader, format Format, source string, opts Options) (*Result, error) {
	if opts.Jitter <= 0 {
		opts.Jitter = DefaultJitter
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	rows, err := readRows(r, format)
	if err != nil {
		return nil, err
	}

	headerAt := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, ErrEmptyFile
	}

	res := &Result{Format: format}
	dropped := 0
	warn := func(msg string, args ...interface{}) {
		if len(res.Warnings) >= maxWarnings {
			dropped++
			return
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf(msg, args...))
	}

	columns, attrNames, roles := mapHeader(rows[headerAt], warn)

	randomize := roles[model.KeyLat] == nil || roles[model.KeyLng] == nil
	if randomize {
		warn("no latitude/longitude columns; coordinates placed near %.4f,%.4f", opts.Center.Lat, opts.Center.Lng)
	}
	if roles[model.KeyID] == nil {
		warn("no id column; ids assigned from row position")
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	records := make([]model.Record, 0, len(rows)-headerAt-1)
	position := 0
	for i := headerAt + 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		position++
		if position > opts.MaxRows {
			return nil, &ParseError{Op: "parse", Line: i + 1, Err: fmt.Errorf("%w: limit is %d", ErrTooManyRows, opts.MaxRows)}
		}

		rec, err := buildRecord(row, i+1, position, columns, warn)
		if err != nil {
			return nil, err
		}
		if randomize {
			lat := opts.Center.Lat + (rng.Float64()-0.5)*opts.Jitter
			lng := opts.Center.Lng + (rng.Float64()-0.5)*opts.Jitter
			rec.Lat = &lat
			rec.Lng = &lng
		}
		records = append(records, rec)
	}

	for _, id := range DuplicateIDs(records) {
		warn("duplicate id %d", id)
	}
	if dropped > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d more warnings not shown", dropped))
	}

	res.Rows = len(records)
	res.Dataset = &model.Dataset{
		Source:   source,
		Columns:  attrNames,
		Records:  records,
		LoadedAt: time.Now().UTC(),
	}
	return res, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func mapHeader(header []string, warn func(string, ...interface{})) ([]column, []string, map[string]*column) {
	columns := make([]column, 0, len(header))
	roles := make(map[string]*column)
	used := make(map[string]int)
	var attrNames []string

	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}

		col := column{index: i, header: name}
		if key, ok := reservedAliases[utils.NormalizeHeader(name)]; ok && roles[key] == nil {
			col.reserved = key
		} else {
			if model.IsReservedKey(name) {
				name = "source_" + name
			}
			used[name]++
			if used[name] > 1 {
				renamed := fmt.Sprintf("%s_%d", name, used[name])
				warn("duplicate column %q renamed to %q", name, renamed)
				name = renamed
			}
			col.name = name
			attrNames = append(attrNames, name)
		}
		columns = append(columns, col)
		if col.reserved != "" {
			roles[col.reserved] = &columns[len(columns)-1]
		}
	}
	return columns, attrNames, roles
}

func buildRecord(row []string, line, position int, columns []column, warn func(string, ...interface{})) (model.Record, error) {
	rec := model.Record{ID: int64(position)}

	for _, col := range columns {
		if col.index >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col.index])
		if cell == "" {
			continue
		}

		switch col.reserved {
		case model.KeyID:
			id, ok := parseID(cell)
			if !ok {
				warn("line %d: id %q is not a non-negative integer; using %d", line, cell, position)
				continue
			}
			rec.ID = id
		case model.KeySpecies:
			rec.Species = model.StringPtr(cell)
		case model.KeyCondition:
			rec.Condition = model.StringPtr(cell)
		case model.KeyLat, model.KeyLng:
			f, err := parseCoordinate(cell, col.reserved)
			if err != nil {
				return model.Record{}, &ParseError{Op: "parse", Line: line, Column: col.header, Err: err}
			}
			if col.reserved == model.KeyLat {
				rec.Lat = &f
			} else {
				rec.Lng = &f
			}
		default:
			if rec.Attributes == nil {
				rec.Attributes = make(map[string]model.Value)
			}
			rec.Attributes[col.name] = model.ParseValue(cell)
		}
	}

	return rec, nil
}

func parseID(cell string) (int64, bool) {
	if id, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return id, id >= 0
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func parseCoordinate(cell, key string) (float64, error) {
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, cell)
	}
	limit := 90.0
	if key == model.KeyLng {
		limit = 180
	}
	if f < -limit || f > limit {
		return 0, fmt.Errorf("%w: %v out of range", ErrInvalidCoordinate, f)
	}
	return f, nil
}

// DuplicateIDs returns ids that occur more than once, in first-seen order.
func DuplicateIDs(records []model.Record) []int64 {
	counts := make(map[int64]int, len(records))
	var order []int64
	for _, r := range records {
		counts[r.ID]++
		if counts[r.ID] == 2 {
			order = append(order, r.ID)
		}
	}
	return order
}
