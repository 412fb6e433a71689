package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tree-census/internal/model"
	"tree-census/internal/sample"
)

var mumbai = model.LatLng{Lat: 19.0760, Lng: 72.8777}

func parseCSV(t *testing.T, body string) *Result {
	t.Helper()
	res, err := Parse(strings.NewReader(body), "trees.csv", Options{Center: mumbai, Seed: 7})
	require.NoError(t, err)
	return res
}

func TestParseReservedColumns(t *testing.T) {
	res := parseCSV(t, "Tree ID,Common Name,Health,Latitude,Longitude,Height,Address\n"+
		"7,Oak,Good,19.1,72.9,21,Marine Drive\n"+
		"9,Elm,Poor,19.2,72.8,,Colaba\n")

	ds := res.Dataset
	require.Len(t, ds.Records, 2)
	assert.Equal(t, []string{"Height", "Address"}, ds.Columns)
	assert.Equal(t, "trees.csv", ds.Source)

	oak := ds.Records[0]
	assert.Equal(t, int64(7), oak.ID)
	assert.Equal(t, "Oak", oak.SpeciesLabel())
	assert.Equal(t, "Good", oak.ConditionLabel())
	assert.Equal(t, 19.1, *oak.Lat)
	assert.Equal(t, 72.9, *oak.Lng)
	assert.Equal(t, model.Number(21), oak.Attributes["Height"])
	assert.Equal(t, model.Text("Marine Drive"), oak.Attributes["Address"])

	_, ok := ds.Records[1].Attribute("Height")
	assert.False(t, ok, "empty cells are omitted")
	assert.Empty(t, res.Warnings)
}

func TestParseFallbackIDsAndCoordinates(t *testing.T) {
	res := parseCSV(t, "species,condition\nOak,Good\nElm,Poor\n\nPine,Fair\n")

	ds := res.Dataset
	require.Len(t, ds.Records, 3)
	for i, r := range ds.Records {
		assert.Equal(t, int64(i+1), r.ID)
		require.True(t, r.HasCoordinates())
		assert.InDelta(t, mumbai.Lat, *r.Lat, DefaultJitter/2)
		assert.InDelta(t, mumbai.Lng, *r.Lng, DefaultJitter/2)
	}
	assert.Len(t, res.Warnings, 2)
}

func TestParseSeedIsReproducible(t *testing.T) {
	body := "species\nOak\nElm\n"
	a := parseCSV(t, body)
	b := parseCSV(t, body)
	assert.Equal(t, *a.Dataset.Records[1].Lat, *b.Dataset.Records[1].Lat)
}

func TestParseUnusableIDFallsBackToPosition(t *testing.T) {
	res := parseCSV(t, "id,species,lat,lng\nabc,Oak,1,1\n12.0,Elm,2,2\n-4,Ash,3,3\n")

	ds := res.Dataset
	assert.Equal(t, int64(1), ds.Records[0].ID)
	assert.Equal(t, int64(12), ds.Records[1].ID)
	assert.Equal(t, int64(3), ds.Records[2].ID)
	assert.Len(t, res.Warnings, 2)
}

func TestParseIDBeyondInt64FallsBackToPosition(t *testing.T) {
	res := parseCSV(t, "id,species,lat,lng\n9223372036854775808,Oak,1,1\n1e19,Elm,2,2\n")

	ds := res.Dataset
	assert.Equal(t, int64(1), ds.Records[0].ID)
	assert.Equal(t, int64(2), ds.Records[1].ID)
	assert.Len(t, res.Warnings, 2)
}

func TestParseNonFiniteNumbersStayText(t *testing.T) {
	res := parseCSV(t, "id,species,lat,lng,notes\n1,Oak,10,10,nan\n2,Elm,11,11,Infinity\n")

	ds := res.Dataset
	require.Len(t, ds.Records, 2)
	assert.Equal(t, model.Text("nan"), ds.Records[0].Attributes["notes"])
	assert.Equal(t, model.Text("Infinity"), ds.Records[1].Attributes["notes"])
}

func TestParseEmptyCoordinateIsAbsent(t *testing.T) {
	res := parseCSV(t, "id,species,lat,lng\n1,Oak,,72.9\n")
	r := res.Dataset.Records[0]
	assert.Nil(t, r.Lat)
	assert.False(t, r.HasCoordinates())
}

func TestParseDuplicateIDsWarn(t *testing.T) {
	res := parseCSV(t, "id,species,lat,lng\n1,Oak,1,1\n1,Elm,2,2\n2,Ash,3,3\n")
	require.Len(t, res.Dataset.Records, 3, "duplicates are kept")
	assert.Equal(t, []string{"duplicate id 1"}, res.Warnings)
}

func TestParseDuplicateHeaders(t *testing.T) {
	res := parseCSV(t, "id,lat,lng,note,note,\n1,1,1,a,b,c\n")
	r := res.Dataset.Records[0]
	assert.Equal(t, []string{"note", "note_2", "column_6"}, res.Dataset.Columns)
	assert.Equal(t, "b", r.Attributes["note_2"].String())
	assert.Equal(t, "c", r.Attributes["column_6"].String())
}

func TestParseMalformedCoordinateFails(t *testing.T) {
	cases := map[string]string{
		"text":       "id,lat,lng\n1,north,72\n",
		"lat range":  "id,lat,lng\n1,91,72\n",
		"lng range":  "id,lat,lng\n1,19,-181\n",
		"not number": "id,lat,lng\n1,19,NaN\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(body), "trees.csv", Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCoordinate)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, 2, perr.Line)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(""), "trees.csv", Options{})
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Parse(strings.NewReader("\n,,\n"), "trees.csv", Options{})
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Parse(strings.NewReader("a,b"), "trees.json", Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Parse(strings.NewReader("species\nOak\nElm\n"), "trees.csv", Options{MaxRows: 1})
	assert.ErrorIs(t, err, ErrTooManyRows)

	_, err = Parse(strings.NewReader("not a zip"), "trees.xlsx", Options{})
	var perr *ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestParseHeaderOnly(t *testing.T) {
	res := parseCSV(t, "id,species,lat,lng\n")
	assert.Empty(t, res.Dataset.Records)
	assert.Equal(t, 0, res.Rows)
}

func TestExportColumns(t *testing.T) {
	records := []model.Record{
		{ID: 1, Attributes: map[string]model.Value{"zone": model.Text("A"), "height": model.Number(3)}},
		{ID: 2, Attributes: map[string]model.Value{"age": model.Number(9)}},
	}
	assert.Equal(t,
		[]string{"id", "species", "condition", "lat", "lng", "height", "age", "zone"},
		ExportColumns([]string{"height"}, records))
}

func TestExportCSV(t *testing.T) {
	records := []model.Record{
		{ID: 3, Species: model.StringPtr("Oak"), Lat: model.Float64Ptr(19.5), Lng: model.Float64Ptr(72.25),
			Attributes: map[string]model.Value{"height": model.Number(12.5)}},
		{ID: 4, Condition: model.StringPtr("Poor")},
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatCSV, []string{"height"}, records))
	assert.Equal(t,
		"id,species,condition,lat,lng,height\n3,Oak,,19.5,72.25,12.5\n4,,Poor,,,\n",
		buf.String())
}

func TestExportRoundTrip(t *testing.T) {
	ds := sample.Generate(20, mumbai, 11)

	for _, format := range []Format{FormatCSV, FormatXLSX} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Export(&buf, format, ds.Columns, ds.Records))

			res, err := ParseFormatted(&buf, format, "export", Options{})
			require.NoError(t, err)
			assert.Empty(t, res.Warnings)
			assert.Equal(t, ds.Columns, res.Dataset.Columns)
			require.Len(t, res.Dataset.Records, len(ds.Records))

			for i, want := range ds.Records {
				got := res.Dataset.Records[i]
				assert.Equal(t, want.ID, got.ID)
				assert.Equal(t, want.SpeciesLabel(), got.SpeciesLabel())
				assert.Equal(t, want.ConditionLabel(), got.ConditionLabel())
				assert.Equal(t, *want.Lat, *got.Lat)
				assert.Equal(t, *want.Lng, *got.Lng)
				for _, col := range ds.Columns {
					assert.Equal(t, want.Attributes[col].String(), got.Attributes[col].String(), col)
				}
			}
		})
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	err := Export(&bytes.Buffer{}, Format("pdf"), nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFormats(t *testing.T) {
	f, err := FormatFromFilename("Census.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("ods")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	day := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "tree-census-2024-03-09.xlsx", ExportFilename(FormatXLSX, day))
}
