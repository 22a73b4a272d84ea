// Package chart renders chart pages: it runs the page query, draws the
// chart as a PNG and serves it back by id.
package chart

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

type Type string

const (
	TypePie          Type = "PIE"
	TypePie3D        Type = "PIE3D"
	TypeRing         Type = "RING"
	TypeArea         Type = "AREA"
	TypeBar          Type = "BAR"
	TypeBar3D        Type = "BAR3D"
	TypeLine         Type = "LINE"
	TypeLine3D       Type = "LINE3D"
	TypeStackedBar   Type = "STACKED_BAR"
	TypeStackedBar3D Type = "STACKED_BAR_3D"
)

var (
	Types1D = []Type{TypePie, TypePie3D, TypeRing}
	Types2D = []Type{TypeArea, TypeBar, TypeBar3D, TypeLine, TypeLine3D, TypeStackedBar, TypeStackedBar3D}
)

type Orientation string

const (
	Horizontal Orientation = "HORIZONTAL"
	Vertical   Orientation = "VERTICAL"
)

const (
	placeholder1D = "--1D"
	placeholder2D = "--2D"
)

//go:embed chart_types.yaml
var chartTypesYAML []byte

var typeLabels = loadTypeLabels(chartTypesYAML)

func loadTypeLabels(data []byte) map[string]string {
	labels := make(map[string]string)
	if err := yaml.Unmarshal(data, &labels); err != nil {
		panic(fmt.Sprintf("chart: bad embedded type labels: %v", err))
	}
	return labels
}

// TypeLabel is the display name of a chart type, or the type itself when
// no label is known.
func TypeLabel(t Type) string {
	if l, ok := typeLabels[string(t)]; ok {
		return l
	}
	return string(t)
}

// TypeOption is one entry of the chart type selection list.
type TypeOption struct {
	Value string
	Label string
}

// TypeOptions lists the 1D placeholder, the 1D types, the 2D placeholder
// and the 2D types, in that order.
func TypeOptions() []TypeOption {
	opts := make([]TypeOption, 0, len(Types1D)+len(Types2D)+2)
	opts = append(opts, TypeOption{Value: placeholder1D, Label: "-- 1D charts --"})
	for _, t := range Types1D {
		opts = append(opts, TypeOption{Value: string(t), Label: TypeLabel(t)})
	}
	opts = append(opts, TypeOption{Value: placeholder2D, Label: "-- 2D charts --"})
	for _, t := range Types2D {
		opts = append(opts, TypeOption{Value: string(t), Label: TypeLabel(t)})
	}
	return opts
}
