package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	gochart "github.com/wcharczuk/go-chart/v2"

	"dataportal/internal/forms"
	"dataportal/internal/logger"
	"dataportal/internal/models"
	"dataportal/internal/pages"
)

var ErrNotConfigured = errors.New("chart is not configured")

const (
	DefaultWidth  = 470
	DefaultHeight = 354
)

// Options are the per-request drawing parameters.
type Options struct {
	Width         int
	Height        int
	AntiAlias     bool
	BorderVisible bool
}

func DefaultOptions() Options {
	return Options{Width: DefaultWidth, Height: DefaultHeight, AntiAlias: true, BorderVisible: true}
}

// ChartInstance describes a rendered chart and where to fetch it.
type ChartInstance struct {
	ID     string `json:"id"`
	File   string `json:"-"`
	URL    string `json:"url"`
	Alt    string `json:"alt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ModelSource provides the databases offered in the configuration form.
type ModelSource interface {
	Model() *models.Model
}

// ConfigurationSaver persists a chart page configuration.
type ConfigurationSaver interface {
	SaveChartConfiguration(ctx context.Context, pageID string, cfg pages.ChartConfiguration, updatedBy *uuid.UUID) error
}

type Action struct {
	registry *Registry
	files    *FileStore
	models   ModelSource
	saver    ConfigurationSaver
	lggr     logger.Logger
}

func NewAction(registry *Registry, files *FileStore, src ModelSource, saver ConfigurationSaver, lggr logger.Logger) *Action {
	return &Action{
		registry: registry,
		files:    files,
		models:   src,
		saver:    saver,
		lggr:     lggr.Named("ChartAction"),
	}
}

// PreparePage accepts only chart pages reached without extra path
// segments.
func (a *Action) PreparePage(pi *pages.PageInstance) error {
	if pi.Page.Type != pages.TypeChart || len(pi.Parameters) > 0 {
		return fmt.Errorf("%w: %s", pages.ErrPageNotFound, pi.Path())
	}
	return nil
}

// Execute renders the chart of the last page of dispatch and stores it
// under a new id.
func (a *Action) Execute(ctx context.Context, dispatch *pages.Dispatch, runner Runner, opts Options) (*ChartInstance, error) {
	pi := dispatch.LastPageInstance()
	if pi.Chart == nil {
		return nil, ErrNotConfigured
	}

	png, err := a.generate(ctx, pi.Chart, runner, opts)
	if err != nil {
		a.lggr.Errorw("Chart generation failed", "page", pi.Page.ID, "err", err)
		return nil, err
	}

	id := NewID()
	file, err := a.files.Write(id, png)
	if err != nil {
		a.lggr.Errorw("Chart generation failed", "page", pi.Page.ID, "err", err)
		return nil, err
	}

	q := url.Values{}
	q.Set("chartId", id)
	chartURL := dispatch.AbsoluteOriginalPath() + "?" + q.Encode() + "&chart="

	return &ChartInstance{
		ID:     id,
		File:   file,
		URL:    chartURL,
		Alt:    pi.Chart.Name,
		Width:  opts.Width,
		Height: opts.Height,
	}, nil
}

func (a *Action) generate(ctx context.Context, cfg *pages.ChartConfiguration, runner Runner, opts Options) ([]byte, error) {
	gen, err := a.registry.New(Type(cfg.Type))
	if err != nil {
		return nil, err
	}
	gen.SetAntiAlias(opts.AntiAlias)
	gen.SetBorderVisible(opts.BorderVisible)
	gen.SetWidth(opts.Width)
	gen.SetHeight(opts.Height)

	chart, err := gen.Generate(ctx, cfg, runner)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := chart.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// Chart returns the PNG of a previously rendered chart.
func (a *Action) Chart(chartID string) ([]byte, error) {
	return a.files.Read(chartID)
}

var configurationFields = []string{"name", "type", "orientation", "legend", "database", "query", "urlExpression"}

// Configure builds the configuration form of a chart page, filled with
// its current configuration.
func (a *Action) Configure(ctx context.Context, pi *pages.PageInstance) (*forms.Form, error) {
	form, err := a.configurationForm(ctx)
	if err != nil {
		return nil, err
	}
	form.ReadFromObject(configurationValues(pi.Chart))
	return form, nil
}

func (a *Action) configurationForm(ctx context.Context) (*forms.Form, error) {
	types := forms.NewDefaultSelectionProvider("type")
	for _, o := range TypeOptions() {
		types.AppendRow(o.Value, o.Label, true)
	}

	orientations := forms.NewDefaultSelectionProvider("orientation")
	orientations.AppendRow(string(Horizontal), "Horizontal", true)
	orientations.AppendRow(string(Vertical), "Vertical", true)

	return forms.NewDescriptorBuilder([]forms.Descriptor{
		{Name: "name", Required: true, MaxLength: 255},
		{Name: "type", Required: true},
		{Name: "orientation"},
		{Name: "legend", MaxLength: 255},
		{Name: "database", Required: true},
		{Name: "query", Type: forms.TypeTextArea, Required: true},
		{Name: "urlExpression", Label: "URL expression"},
	}).
		ConfigFields(configurationFields...).
		ConfigFieldSetNames("Chart").
		ConfigSelectionProvider(types, "type").
		ConfigSelectionProvider(orientations, "orientation").
		ConfigSelectionProvider(forms.DatabaseSelectionProvider(a.models.Model()), "database").
		Build(ctx)
}

// UpdateConfiguration validates submitted values and, when they are valid,
// saves them as the page's configuration. The returned form carries the
// field errors; ok reports whether the configuration was saved.
func (a *Action) UpdateConfiguration(ctx context.Context, pi *pages.PageInstance, values map[string]string, updatedBy *uuid.UUID) (form *forms.Form, ok bool, err error) {
	form, err = a.configurationForm(ctx)
	if err != nil {
		return nil, false, err
	}
	form.ReadFromObject(configurationValues(pi.Chart))
	form.ReadFromRequest(values)

	valid := form.Validate()
	typeField := form.FindFieldByPropertyName("type")
	if strings.HasPrefix(typeField.Value, "--") {
		valid = false
		typeField.Errors = []string{"required"}
	}
	if !valid {
		return form, false, nil
	}

	v := form.Values()
	cfg := pages.ChartConfiguration{
		Name:          v["name"],
		Type:          v["type"],
		Orientation:   v["orientation"],
		Legend:        v["legend"],
		Database:      v["database"],
		Query:         v["query"],
		URLExpression: v["urlExpression"],
	}
	if err := a.saver.SaveChartConfiguration(ctx, pi.Page.ID, cfg, updatedBy); err != nil {
		return form, false, err
	}
	pi.Chart = &cfg
	return form, true, nil
}

// ReturnToParent is the path of the page above the chart.
func (a *Action) ReturnToParent(dispatch *pages.Dispatch) (string, error) {
	return dispatch.ParentPath()
}

func configurationValues(cfg *pages.ChartConfiguration) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	return map[string]any{
		"name":          cfg.Name,
		"type":          cfg.Type,
		"orientation":   cfg.Orientation,
		"legend":        cfg.Legend,
		"database":      cfg.Database,
		"query":         cfg.Query,
		"urlExpression": cfg.URLExpression,
	}
}
