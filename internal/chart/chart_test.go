package chart

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gochart "github.com/wcharczuk/go-chart/v2"

	"dataportal/internal/forms"
	"dataportal/internal/logger"
	"dataportal/internal/models"
	"dataportal/internal/pages"
	"dataportal/internal/persistence"
)

var pngMagic = []byte("\x89PNG")

type fakeRunner struct {
	result *persistence.SQLResult
	err    error

	database, query string
}

func (r *fakeRunner) RunSQL(_ context.Context, databaseName, query string) (*persistence.SQLResult, error) {
	r.database, r.query = databaseName, query
	return r.result, r.err
}

type staticModel struct{ model *models.Model }

func (s staticModel) Model() *models.Model { return s.model }

type savedConfig struct {
	pageID string
	cfg    pages.ChartConfiguration
	user   *uuid.UUID
}

type fakeSaver struct {
	saved []savedConfig
	err   error
}

func (f *fakeSaver) SaveChartConfiguration(_ context.Context, pageID string, cfg pages.ChartConfiguration, user *uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, savedConfig{pageID: pageID, cfg: cfg, user: user})
	return nil
}

var oneD = &persistence.SQLResult{
	Columns: []string{"region", "total", "label"},
	Rows: [][]any{
		{"north", int64(10), "North"},
		{"south", "20.5", nil},
		{"east", []byte("7"), "East"},
	},
}

var twoD = &persistence.SQLResult{
	Columns: []string{"year", "quarter", "total"},
	Rows: [][]any{
		{int64(2023), "Q1", 10.0},
		{int64(2023), "Q2", 12.0},
		{int64(2024), "Q1", 14.0},
		{int64(2024), "Q2", 9.0},
		{int64(2024), "Q2", 1.0},
	},
}

func TestLoad1D(t *testing.T) {
	t.Parallel()

	ds, err := Load1D(oneD)
	require.NoError(t, err)
	assert.Equal(t, []Slice{
		{Key: "north", Value: 10, Label: "North"},
		{Key: "south", Value: 20.5, Label: "south"},
		{Key: "east", Value: 7, Label: "East"},
	}, ds.Slices)

	_, err = Load1D(&persistence.SQLResult{Rows: [][]any{{"only key"}}})
	assert.Error(t, err)
	_, err = Load1D(&persistence.SQLResult{Rows: [][]any{{"k", "many"}}})
	assert.Error(t, err)
}

func TestLoad2D(t *testing.T) {
	t.Parallel()

	ds, err := Load2D(twoD)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023", "2024"}, ds.Series)
	assert.Equal(t, []string{"Q1", "Q2"}, ds.Categories)
	assert.Equal(t, [][]float64{{10, 12}, {14, 10}}, ds.Values)

	_, err = Load2D(&persistence.SQLResult{Rows: [][]any{{"s", "c"}}})
	assert.Error(t, err)
}

func TestTypeOptions(t *testing.T) {
	t.Parallel()

	opts := TypeOptions()
	require.Len(t, opts, len(Types1D)+len(Types2D)+2)
	assert.Equal(t, TypeOption{Value: "--1D", Label: "-- 1D charts --"}, opts[0])
	assert.Equal(t, TypeOption{Value: "PIE", Label: "Pie"}, opts[1])
	assert.Equal(t, "--2D", opts[len(Types1D)+1].Value)
	assert.Equal(t, TypeOption{Value: "STACKED_BAR_3D", Label: "Stacked bar 3D"}, opts[len(opts)-1])

	assert.Equal(t, "SCATTER", TypeLabel("SCATTER"))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	assert.Len(t, r.Types(), len(Types1D)+len(Types2D))

	_, err := r.New("SCATTER")
	assert.ErrorIs(t, err, ErrInvalidChartType)
}

func TestGeneratorsRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ         Type
		orientation Orientation
		data        *persistence.SQLResult
	}{
		{TypePie, "", oneD},
		{TypePie3D, "", oneD},
		{TypeRing, "", oneD},
		{TypeBar, Vertical, twoD},
		{TypeBar, Horizontal, twoD},
		{TypeStackedBar, Vertical, twoD},
		{TypeStackedBar3D, Horizontal, twoD},
		{TypeLine, "", twoD},
		{TypeArea, "", twoD},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.typ)+"/"+string(tt.orientation), func(t *testing.T) {
			t.Parallel()

			gen, err := DefaultRegistry().New(tt.typ)
			require.NoError(t, err)
			gen.SetWidth(DefaultWidth)
			gen.SetHeight(DefaultHeight)
			gen.SetBorderVisible(true)
			gen.SetAntiAlias(true)

			runner := &fakeRunner{result: tt.data}
			cfg := &pages.ChartConfiguration{Name: "Sales", Type: string(tt.typ), Orientation: string(tt.orientation),
				Legend: "Totals", Database: "shop", Query: "SELECT 1"}
			c, err := gen.Generate(context.Background(), cfg, runner)
			require.NoError(t, err)
			assert.Equal(t, "shop", runner.database)
			assert.Equal(t, "SELECT 1", runner.query)

			var buf bytes.Buffer
			require.NoError(t, c.Render(gochart.PNG, &buf))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func renderPNG(t *testing.T, typ Type, orientation Orientation, data *persistence.SQLResult) Renderable {
	t.Helper()

	gen, err := DefaultRegistry().New(typ)
	require.NoError(t, err)
	gen.SetWidth(DefaultWidth)
	gen.SetHeight(DefaultHeight)
	gen.SetBorderVisible(true)

	cfg := &pages.ChartConfiguration{Name: "Sales", Type: string(typ), Orientation: string(orientation),
		Database: "shop", Query: "SELECT 1"}
	c, err := gen.Generate(context.Background(), cfg, &fakeRunner{result: data})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Render(gochart.PNG, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
	return c
}

func TestGeneratorsRenderDegenerateData(t *testing.T) {
	t.Parallel()

	empty := &persistence.SQLResult{Columns: []string{"a", "b", "c"}, Rows: [][]any{}}
	zeros := &persistence.SQLResult{Rows: [][]any{{"north", 0.0}, {"south", int64(0)}}}
	single := &persistence.SQLResult{Rows: [][]any{{"2024", "Q1", 5.0}}}
	flat := &persistence.SQLResult{Rows: [][]any{{"2024", "Q1", 3.0}, {"2024", "Q2", 3.0}}}
	allZero := &persistence.SQLResult{Rows: [][]any{{"2024", "Q1", 0.0}, {"2024", "Q2", 0.0}}}

	tests := []struct {
		name        string
		typ         Type
		orientation Orientation
		data        *persistence.SQLResult
		empty       bool
	}{
		{"empty pie", TypePie, "", empty, true},
		{"empty ring", TypeRing, "", empty, true},
		{"zero pie", TypePie, "", zeros, true},
		{"zero ring", TypeRing, "", zeros, true},
		{"empty bar", TypeBar, Vertical, empty, true},
		{"empty stacked bar", TypeStackedBar, Horizontal, empty, true},
		{"empty line", TypeLine, "", empty, true},
		{"empty area", TypeArea, "", empty, true},
		{"single bar", TypeBar, Vertical, single, false},
		{"zero bars", TypeBar, Vertical, allZero, false},
		{"zero stacked bars", TypeStackedBar, Vertical, allZero, false},
		{"single horizontal bar", TypeBar, Horizontal, single, false},
		{"single line point", TypeLine, "", single, false},
		{"flat line", TypeLine, "", flat, false},
		{"flat area", TypeArea, "", flat, false},
		{"zero area", TypeArea, "", allZero, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := renderPNG(t, tt.typ, tt.orientation, tt.data)
			_, isEmpty := c.(*emptyChart)
			assert.Equal(t, tt.empty, isEmpty)
		})
	}
}

func TestHorizontalBarsKeepProportions(t *testing.T) {
	t.Parallel()

	data := &persistence.SQLResult{Rows: [][]any{{"2024", "Q1", 10.0}, {"2024", "Q2", 4.0}}}
	c := renderPNG(t, TypeBar, Horizontal, data)

	stacked, ok := c.(*gochart.StackedBarChart)
	require.True(t, ok)
	require.Len(t, stacked.Bars, 2)
	require.Len(t, stacked.Bars[0].Values, 1)
	assert.Equal(t, 10.0, stacked.Bars[0].Values[0].Value)
	require.Len(t, stacked.Bars[1].Values, 2)
	assert.Equal(t, 4.0, stacked.Bars[1].Values[0].Value)
	assert.Equal(t, 6.0, stacked.Bars[1].Values[1].Value)
	assert.Equal(t, invisible, stacked.Bars[1].Values[1].Style.FillColor)
}

func TestLoad1DDecimalValues(t *testing.T) {
	t.Parallel()

	ds, err := Load1D(&persistence.SQLResult{Rows: [][]any{{"north", decimal.RequireFromString("12.75")}}})
	require.NoError(t, err)
	require.Len(t, ds.Slices, 1)
	assert.Equal(t, 12.75, ds.Slices[0].Value)
}

func newTestAction(t *testing.T, saver ConfigurationSaver) (*Action, *FileStore) {
	t.Helper()

	files, err := NewFileStore(t.TempDir(), 1<<20, logger.Test(t))
	require.NoError(t, err)
	t.Cleanup(files.Close)

	model := &models.Model{Databases: []*models.Database{{Name: "shop"}, {Name: "crm"}}}
	return NewAction(DefaultRegistry(), files, staticModel{model}, saver, logger.Test(t)), files
}

func chartDispatch(t *testing.T, chartYAML string) *pages.Dispatch {
	t.Helper()

	tree, err := pages.ParseTree([]byte(`
pages:
  - id: sales
    children:
      - id: by-region
        type: chart
` + chartYAML))
	require.NoError(t, err)
	d := pages.NewDispatcher(tree, "/api/v1/pages", nil, logger.Test(t))
	dispatch, err := d.Dispatch("/sales/by-region")
	require.NoError(t, err)
	return dispatch
}

const pieChartYAML = `        chart:
          name: By region
          type: PIE
          database: shop
          query: SELECT region, SUM(total) FROM orders GROUP BY region
`

func TestExecuteAndServe(t *testing.T) {
	t.Parallel()

	action, files := newTestAction(t, &fakeSaver{})
	dispatch := chartDispatch(t, pieChartYAML)

	instance, err := action.Execute(context.Background(), dispatch, &fakeRunner{result: oneD}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, DefaultWidth, instance.Width)
	assert.Equal(t, DefaultHeight, instance.Height)
	assert.Equal(t, "By region", instance.Alt)
	assert.Equal(t, "/api/v1/pages/sales/by-region?chartId="+instance.ID+"&chart=", instance.URL)
	assert.Equal(t, "chart-"+instance.ID+".png", filepath.Base(instance.File))

	onDisk, err := os.ReadFile(instance.File)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(onDisk, pngMagic))

	served, err := action.Chart(instance.ID)
	require.NoError(t, err)
	assert.Equal(t, onDisk, served)

	_, err = action.Chart(NewID())
	assert.ErrorIs(t, err, ErrChartNotFound)
	_, err = action.Chart("../../etc/passwd")
	assert.ErrorIs(t, err, ErrChartNotFound)

	parent, err := action.ReturnToParent(dispatch)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/pages/sales", parent)

	removed, err := files.Cleanup(-time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestExecuteFailures(t *testing.T) {
	t.Parallel()

	action, _ := newTestAction(t, &fakeSaver{})

	_, err := action.Execute(context.Background(), chartDispatch(t, ""), &fakeRunner{}, DefaultOptions())
	assert.ErrorIs(t, err, ErrNotConfigured)

	bad := strings.Replace(pieChartYAML, "type: PIE", "type: SCATTER", 1)
	_, err = action.Execute(context.Background(), chartDispatch(t, bad), &fakeRunner{result: oneD}, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidChartType)

	boom := errors.New("connection refused")
	_, err = action.Execute(context.Background(), chartDispatch(t, pieChartYAML), &fakeRunner{err: boom}, DefaultOptions())
	assert.ErrorIs(t, err, boom)
}

func TestPreparePage(t *testing.T) {
	t.Parallel()

	action, _ := newTestAction(t, &fakeSaver{})
	dispatch := chartDispatch(t, pieChartYAML)

	require.NoError(t, action.PreparePage(dispatch.LastPageInstance()))

	pi := dispatch.LastPageInstance()
	withParams := *pi
	withParams.Parameters = []string{"extra"}
	assert.ErrorIs(t, action.PreparePage(&withParams), pages.ErrPageNotFound)

	assert.ErrorIs(t, action.PreparePage(dispatch.PageInstancePath()[0]), pages.ErrPageNotFound)
}

func TestConfigure(t *testing.T) {
	t.Parallel()

	action, _ := newTestAction(t, &fakeSaver{})
	form, err := action.Configure(context.Background(), chartDispatch(t, pieChartYAML).LastPageInstance())
	require.NoError(t, err)

	require.Len(t, form.FieldSets, 1)
	assert.Equal(t, "Chart", form.FieldSets[0].Name)
	names := make([]string, 0, 7)
	for _, f := range form.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, configurationFields, names)

	typeField := form.FindFieldByPropertyName("type")
	assert.Equal(t, forms.TypeSelect, typeField.Type)
	assert.Equal(t, "PIE", typeField.Value)
	assert.Len(t, typeField.Options, len(Types1D)+len(Types2D)+2)

	database := form.FindFieldByPropertyName("database")
	assert.Equal(t, []forms.Option{
		{Value: "shop", Label: "shop", Active: true},
		{Value: "crm", Label: "crm", Active: true},
	}, database.Options)
	assert.Len(t, form.FindFieldByPropertyName("orientation").Options, 2)
}

func TestUpdateConfiguration(t *testing.T) {
	t.Parallel()

	saver := &fakeSaver{}
	action, _ := newTestAction(t, saver)
	pi := chartDispatch(t, pieChartYAML).LastPageInstance()

	values := map[string]string{
		"name":        "Sales",
		"type":        "--2D",
		"orientation": "VERTICAL",
		"database":    "shop",
		"query":       "SELECT 1, 2, 3",
	}
	form, ok, err := action.UpdateConfiguration(context.Background(), pi, values, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"required"}, form.FindFieldByPropertyName("type").Errors)
	assert.Empty(t, saver.saved)

	values["type"] = "BAR"
	values["database"] = "warehouse"
	form, ok, err = action.UpdateConfiguration(context.Background(), pi, values, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotEmpty(t, form.FindFieldByPropertyName("database").Errors)

	values["database"] = "shop"
	user := uuid.New()
	_, ok, err = action.UpdateConfiguration(context.Background(), pi, values, &user)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, saver.saved, 1)
	assert.Equal(t, "by-region", saver.saved[0].pageID)
	assert.Equal(t, "BAR", saver.saved[0].cfg.Type)
	assert.Equal(t, &user, saver.saved[0].user)
	assert.Equal(t, "BAR", pi.Chart.Type)

	saver.err = errors.New("db down")
	_, ok, err = action.UpdateConfiguration(context.Background(), pi, values, nil)
	assert.Error(t, err)
	assert.False(t, ok)
}
