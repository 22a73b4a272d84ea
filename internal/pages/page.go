// Package pages holds the portal's page tree and resolves request paths
// into page instances.
package pages

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Type string

const (
	TypeChart  Type = "chart"
	TypeCrud   Type = "crud"
	TypeFolder Type = "folder"
)

// ChartConfiguration is what a chart page needs to render. Type and
// Orientation hold the names of the chart package constants.
type ChartConfiguration struct {
	Name          string `yaml:"name" json:"name"`
	Type          string `yaml:"type" json:"type"`
	Orientation   string `yaml:"orientation,omitempty" json:"orientation,omitempty"`
	Legend        string `yaml:"legend,omitempty" json:"legend,omitempty"`
	Database      string `yaml:"database" json:"database"`
	Query         string `yaml:"query" json:"query"`
	URLExpression string `yaml:"urlExpression,omitempty" json:"url_expression,omitempty"`
}

// CrudConfiguration binds a crud page to a model table. Query, when set,
// is an entity query narrowing the rows listed.
type CrudConfiguration struct {
	Table string `yaml:"table" json:"table"`
	Query string `yaml:"query,omitempty" json:"query,omitempty"`
}

type Page struct {
	ID       string              `yaml:"id" json:"id"`
	Type     Type                `yaml:"type" json:"type"`
	Title    string              `yaml:"title,omitempty" json:"title,omitempty"`
	Chart    *ChartConfiguration `yaml:"chart,omitempty" json:"chart,omitempty"`
	Crud     *CrudConfiguration  `yaml:"crud,omitempty" json:"crud,omitempty"`
	Children []*Page             `yaml:"children,omitempty" json:"children,omitempty"`

	parent *Page
}

func (p *Page) Parent() *Page { return p.parent }

func (p *Page) FindChild(id string) *Page {
	for _, c := range p.Children {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Tree is the root of the page hierarchy as stored in the pages file.
type Tree struct {
	Pages []*Page `yaml:"pages" json:"pages"`

	byID map[string]*Page
}

func LoadTree(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pages file: %w", err)
	}
	return ParseTree(data)
}

func ParseTree(data []byte) (*Tree, error) {
	tree := &Tree{}
	if err := yaml.Unmarshal(data, tree); err != nil {
		return nil, fmt.Errorf("failed to parse pages: %w", err)
	}
	if err := tree.init(); err != nil {
		return nil, err
	}
	return tree, nil
}

// init links parents and checks that page ids are unique and every page
// has a known type.
func (t *Tree) init() error {
	t.byID = make(map[string]*Page)
	var walk func(parent *Page, pages []*Page) error
	walk = func(parent *Page, pages []*Page) error {
		for _, p := range pages {
			if p.ID == "" {
				return fmt.Errorf("page without id under %q", parentID(parent))
			}
			if _, dup := t.byID[p.ID]; dup {
				return fmt.Errorf("duplicate page id %q", p.ID)
			}
			switch p.Type {
			case TypeChart, TypeCrud, TypeFolder:
			case "":
				p.Type = TypeFolder
			default:
				return fmt.Errorf("page %q: unknown type %q", p.ID, p.Type)
			}
			p.parent = parent
			t.byID[p.ID] = p
			if err := walk(p, p.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(nil, t.Pages)
}

func parentID(p *Page) string {
	if p == nil {
		return "/"
	}
	return p.ID
}

func (t *Tree) FindPage(id string) *Page {
	return t.byID[id]
}

func (t *Tree) root(id string) *Page {
	for _, p := range t.Pages {
		if p.ID == id {
			return p
		}
	}
	return nil
}
