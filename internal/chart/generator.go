package chart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"dataportal/internal/pages"
	"dataportal/internal/persistence"
)

var ErrInvalidChartType = errors.New("invalid chart type")

// Renderable is a chart ready to be drawn. Every go-chart chart kind
// satisfies it.
type Renderable interface {
	Render(rp gochart.RendererProvider, w io.Writer) error
}

type Generator interface {
	SetAntiAlias(bool)
	SetBorderVisible(bool)
	SetWidth(int)
	SetHeight(int)
	Generate(ctx context.Context, cfg *pages.ChartConfiguration, runner Runner) (Renderable, error)
}

// Registry maps chart types to generator factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[Type]func() Generator
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[Type]func() Generator)}
}

// DefaultRegistry knows every built-in type. 3D variants draw as their
// flat counterparts.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypePie, func() Generator { return &pieGenerator{} })
	r.Register(TypePie3D, func() Generator { return &pieGenerator{} })
	r.Register(TypeRing, func() Generator { return &pieGenerator{ring: true} })
	r.Register(TypeArea, func() Generator { return &lineGenerator{area: true} })
	r.Register(TypeLine, func() Generator { return &lineGenerator{} })
	r.Register(TypeLine3D, func() Generator { return &lineGenerator{} })
	r.Register(TypeBar, func() Generator { return &barGenerator{} })
	r.Register(TypeBar3D, func() Generator { return &barGenerator{} })
	r.Register(TypeStackedBar, func() Generator { return &barGenerator{stacked: true} })
	r.Register(TypeStackedBar3D, func() Generator { return &barGenerator{stacked: true} })
	return r
}

func (r *Registry) Register(t Type, factory func() Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = factory
}

func (r *Registry) New(t Type) (Generator, error) {
	r.mu.RLock()
	factory, ok := r.factories[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidChartType, t)
	}
	return factory(), nil
}

func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]Type, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// baseGenerator holds the drawing options shared by every generator.
// go-chart always anti-aliases, so antiAlias is kept for the interface only.
type baseGenerator struct {
	antiAlias     bool
	borderVisible bool
	width         int
	height        int
}

func (g *baseGenerator) SetAntiAlias(v bool)     { g.antiAlias = v }
func (g *baseGenerator) SetBorderVisible(v bool) { g.borderVisible = v }
func (g *baseGenerator) SetWidth(v int)          { g.width = v }
func (g *baseGenerator) SetHeight(v int)         { g.height = v }

func (g *baseGenerator) background() gochart.Style {
	if !g.borderVisible {
		return gochart.Style{}
	}
	return gochart.Style{
		StrokeColor: drawing.ColorBlack,
		StrokeWidth: 1,
	}
}

// invisible is transparent but not the zero color, which go-chart would
// replace with a series default.
var invisible = drawing.Color{R: 255, G: 255, B: 255, A: 0}

func (g *baseGenerator) size() (int, int) {
	w, h := g.width, g.height
	if w <= 0 {
		w = gochart.DefaultChartWidth
	}
	if h <= 0 {
		h = gochart.DefaultChartHeight
	}
	return w, h
}

func (g *baseGenerator) empty(title string) Renderable {
	w, h := g.size()
	return &emptyChart{title: title, width: w, height: h, border: g.borderVisible}
}

// emptyChart is drawn when a query yields nothing plottable.
type emptyChart struct {
	title         string
	width, height int
	border        bool
}

const noDataText = "No data"

func (e *emptyChart) Render(rp gochart.RendererProvider, w io.Writer) error {
	r, err := rp(e.width, e.height)
	if err != nil {
		return err
	}
	font, err := gochart.GetDefaultFont()
	if err != nil {
		return err
	}

	r.SetFillColor(drawing.ColorWhite)
	if e.border {
		r.SetStrokeColor(drawing.ColorBlack)
	} else {
		r.SetStrokeColor(drawing.ColorWhite)
	}
	r.SetStrokeWidth(1)
	r.MoveTo(0, 0)
	r.LineTo(e.width, 0)
	r.LineTo(e.width, e.height)
	r.LineTo(0, e.height)
	r.LineTo(0, 0)
	r.Close()
	r.FillStroke()

	r.SetFont(font)
	r.SetFontColor(drawing.ColorBlack)
	if e.title != "" {
		r.SetFontSize(gochart.DefaultTitleFontSize)
		tb := r.MeasureText(e.title)
		r.Text(e.title, (e.width-tb.Width())/2, tb.Height()+gochart.DefaultTitleTop)
	}
	r.SetFontSize(gochart.DefaultFontSize)
	tb := r.MeasureText(noDataText)
	r.Text(noDataText, (e.width-tb.Width())/2, (e.height+tb.Height())/2)

	return r.Save(w)
}

func run(ctx context.Context, cfg *pages.ChartConfiguration, runner Runner) (*persistence.SQLResult, error) {
	result, err := runner.RunSQL(ctx, cfg.Database, cfg.Query)
	if err != nil {
		return nil, fmt.Errorf("chart query failed: %w", err)
	}
	return result, nil
}

type pieGenerator struct {
	baseGenerator
	ring bool
}

func (g *pieGenerator) Generate(ctx context.Context, cfg *pages.ChartConfiguration, runner Runner) (Renderable, error) {
	res, err := run(ctx, cfg, runner)
	if err != nil {
		return nil, err
	}
	ds, err := Load1D(res)
	if err != nil {
		return nil, err
	}

	values := make([]gochart.Value, 0, len(ds.Slices))
	total := 0.0
	for _, s := range ds.Slices {
		if s.Value <= 0 {
			continue
		}
		total += s.Value
		values = append(values, gochart.Value{Value: s.Value, Label: s.Label})
	}
	if len(values) == 0 || total == 0 {
		return g.empty(cfg.Name), nil
	}

	if g.ring {
		return &gochart.DonutChart{
			Title:      cfg.Name,
			Width:      g.width,
			Height:     g.height,
			Background: g.background(),
			Values:     values,
		}, nil
	}
	return &gochart.PieChart{
		Title:      cfg.Name,
		Width:      g.width,
		Height:     g.height,
		Background: g.background(),
		Values:     values,
	}, nil
}

type barGenerator struct {
	baseGenerator
	stacked bool
}

func (g *barGenerator) Generate(ctx context.Context, cfg *pages.ChartConfiguration, runner Runner) (Renderable, error) {
	res, err := run(ctx, cfg, runner)
	if err != nil {
		return nil, err
	}
	ds, err := Load2D(res)
	if err != nil {
		return nil, err
	}
	if len(ds.Series) == 0 || len(ds.Categories) == 0 {
		return g.empty(cfg.Name), nil
	}
	horizontal := Orientation(cfg.Orientation) == Horizontal

	if g.stacked {
		return g.stackedBars(cfg, ds, horizontal), nil
	}

	// One bar per category and series pair.
	var bars []gochart.Value
	for c, category := range ds.Categories {
		for s, series := range ds.Series {
			label := category
			if len(ds.Series) > 1 {
				label = category + " " + series
			}
			bars = append(bars, gochart.Value{
				Value: ds.Values[s][c],
				Label: label,
				Style: gochart.Style{FillColor: gochart.GetDefaultColor(s), StrokeColor: gochart.GetDefaultColor(s)},
			})
		}
	}

	if horizontal {
		// go-chart scales every stacked bar to full length, so a transparent
		// remainder up to the largest value keeps lengths proportional.
		longest := 0.0
		for _, b := range bars {
			longest = math.Max(longest, b.Value)
		}
		stacks := make([]gochart.StackedBar, 0, len(bars))
		for _, b := range bars {
			b.Value = math.Max(b.Value, 0)
			values := []gochart.Value{b}
			if rest := longest - b.Value; rest > 0 {
				values = append(values, gochart.Value{Value: rest, Style: invisibleStyle()})
			}
			stacks = append(stacks, gochart.StackedBar{Name: b.Label, Values: values})
		}
		return &gochart.StackedBarChart{
			Title:        cfg.Name,
			Width:        g.width,
			Height:       g.height,
			Background:   g.background(),
			IsHorizontal: true,
			Bars:         stacks,
		}, nil
	}

	low, high := 0.0, 0.0
	for _, b := range bars {
		low, high = math.Min(low, b.Value), math.Max(high, b.Value)
	}
	if low == high {
		high = 1
	}
	return &gochart.BarChart{
		Title:      cfg.Name,
		Width:      g.width,
		Height:     g.height,
		Background: g.background(),
		YAxis:      gochart.YAxis{Range: &gochart.ContinuousRange{Min: low, Max: high}},
		Bars:       bars,
	}, nil
}

func invisibleStyle() gochart.Style {
	return gochart.Style{FillColor: invisible, StrokeColor: invisible}
}

func (g *barGenerator) stackedBars(cfg *pages.ChartConfiguration, ds *Dataset2D, horizontal bool) Renderable {
	stacks := make([]gochart.StackedBar, 0, len(ds.Categories))
	for c, category := range ds.Categories {
		values := make([]gochart.Value, 0, len(ds.Series))
		for s, series := range ds.Series {
			values = append(values, gochart.Value{
				Value: ds.Values[s][c],
				Label: series,
				Style: gochart.Style{FillColor: gochart.GetDefaultColor(s), StrokeColor: gochart.GetDefaultColor(s)},
			})
		}
		stacks = append(stacks, gochart.StackedBar{Name: category, Values: values})
	}
	return &gochart.StackedBarChart{
		Title:        cfg.Name,
		Width:        g.width,
		Height:       g.height,
		Background:   g.background(),
		IsHorizontal: horizontal,
		Bars:         stacks,
	}
}

type lineGenerator struct {
	baseGenerator
	area bool
}

func (g *lineGenerator) Generate(ctx context.Context, cfg *pages.ChartConfiguration, runner Runner) (Renderable, error) {
	res, err := run(ctx, cfg, runner)
	if err != nil {
		return nil, err
	}
	ds, err := Load2D(res)
	if err != nil {
		return nil, err
	}

	if len(ds.Series) == 0 || len(ds.Categories) == 0 {
		return g.empty(cfg.Name), nil
	}

	xs := make([]float64, len(ds.Categories))
	ticks := make([]gochart.Tick, len(ds.Categories))
	for i, c := range ds.Categories {
		xs[i] = float64(i)
		ticks[i] = gochart.Tick{Value: float64(i), Label: c}
	}

	series := make([]gochart.Series, 0, len(ds.Series))
	for s, name := range ds.Series {
		style := gochart.Style{StrokeColor: gochart.GetDefaultColor(s), StrokeWidth: 2}
		if g.area {
			style.FillColor = gochart.GetDefaultColor(s).WithAlpha(96)
		}
		series = append(series, gochart.ContinuousSeries{
			Name:    name,
			Style:   style,
			XValues: xs,
			YValues: ds.Values[s],
		})
	}

	graph := &gochart.Chart{
		Title:      cfg.Name,
		Width:      g.width,
		Height:     g.height,
		Background: g.background(),
		XAxis:      gochart.XAxis{Ticks: ticks},
		YAxis:      gochart.YAxis{Name: cfg.Legend},
		Series:     series,
	}
	// go-chart rejects a zero-width range on either axis. The x range
	// follows the ticks.
	if len(xs) == 1 {
		graph.XAxis.Ticks = []gochart.Tick{{Value: -1}, ticks[0], {Value: 1}}
	}
	low, high := math.Inf(1), math.Inf(-1)
	for _, ys := range ds.Values {
		for _, y := range ys {
			low, high = math.Min(low, y), math.Max(high, y)
		}
	}
	if low == high {
		graph.YAxis.Range = &gochart.ContinuousRange{Min: low - 1, Max: high + 1}
	}
	if cfg.Legend != "" {
		graph.Elements = []gochart.Renderable{gochart.Legend(graph)}
	}
	return graph, nil
}
