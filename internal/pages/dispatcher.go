package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"dataportal/internal/logger"
	"dataportal/internal/models"
)

var (
	ErrPageNotFound = errors.New("page not found")
	ErrNoParent     = errors.New("no parent for root page")
)

// PageInstance is a page reached by a request, with the path segments
// that followed it and a snapshot of its configuration.
type PageInstance struct {
	Page       *Page
	Parameters []string
	Chart      *ChartConfiguration
	Crud       *CrudConfiguration

	parent *PageInstance
}

func (pi *PageInstance) Parent() *PageInstance { return pi.parent }

// Path is the page's path relative to the dispatcher base, parameters
// included.
func (pi *PageInstance) Path() string {
	var sb strings.Builder
	if pi.parent != nil {
		sb.WriteString(pi.parent.Path())
	}
	sb.WriteString("/")
	sb.WriteString(pi.Page.ID)
	for _, p := range pi.Parameters {
		sb.WriteString("/")
		sb.WriteString(p)
	}
	return sb.String()
}

// Dispatch is the outcome of resolving one request path.
type Dispatch struct {
	basePath     string
	originalPath string
	instances    []*PageInstance
}

func (d *Dispatch) PageInstancePath() []*PageInstance { return d.instances }

func (d *Dispatch) LastPageInstance() *PageInstance {
	return d.instances[len(d.instances)-1]
}

// AbsoluteOriginalPath is the requested path including the base path.
func (d *Dispatch) AbsoluteOriginalPath() string {
	return d.basePath + d.originalPath
}

// ParentPath returns the absolute path of the page before the last one.
func (d *Dispatch) ParentPath() (string, error) {
	prev := len(d.instances) - 2
	if prev < 0 {
		return "", ErrNoParent
	}
	return d.basePath + d.instances[prev].Path(), nil
}

// ConfigurationStore persists page configuration overrides.
type ConfigurationStore interface {
	List(ctx context.Context) ([]models.PageConfiguration, error)
	Save(ctx context.Context, cfg *models.PageConfiguration) error
}

type Dispatcher struct {
	basePath string
	store    ConfigurationStore
	lggr     logger.Logger

	mu   sync.RWMutex
	tree *Tree
}

// NewDispatcher serves tree under basePath, e.g. "/api/v1/pages". store
// may be nil, in which case configuration changes live in memory only.
func NewDispatcher(tree *Tree, basePath string, store ConfigurationStore, lggr logger.Logger) *Dispatcher {
	return &Dispatcher{
		basePath: strings.TrimSuffix(basePath, "/"),
		store:    store,
		lggr:     lggr.Named("Dispatcher"),
		tree:     tree,
	}
}

func (d *Dispatcher) BasePath() string { return d.basePath }

// Dispatch walks path segment by segment down the page tree. Once a
// segment matches no child, it and every following segment become
// parameters of the last matched page.
func (d *Dispatcher) Dispatch(path string) (*Dispatch, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrPageNotFound, path)
	}

	first := d.tree.root(segments[0])
	if first == nil {
		return nil, fmt.Errorf("%w: %q", ErrPageNotFound, path)
	}

	current := newInstance(first, nil)
	instances := []*PageInstance{current}
	for _, seg := range segments[1:] {
		if len(current.Parameters) == 0 {
			if child := current.Page.FindChild(seg); child != nil {
				current = newInstance(child, current)
				instances = append(instances, current)
				continue
			}
		}
		current.Parameters = append(current.Parameters, seg)
	}

	return &Dispatch{
		basePath:     d.basePath,
		originalPath: "/" + strings.Join(segments, "/"),
		instances:    instances,
	}, nil
}

func newInstance(p *Page, parent *PageInstance) *PageInstance {
	pi := &PageInstance{Page: p, parent: parent}
	if p.Chart != nil {
		c := *p.Chart
		pi.Chart = &c
	}
	if p.Crud != nil {
		c := *p.Crud
		pi.Crud = &c
	}
	return pi
}

func splitPath(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LoadOverrides applies the stored configurations over the pages file
// defaults. Overrides of unknown pages are logged and ignored.
func (d *Dispatcher) LoadOverrides(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	configs, err := d.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load page configurations: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, cfg := range configs {
		page := d.tree.FindPage(cfg.PageID)
		if page == nil || string(page.Type) != cfg.PageType {
			d.lggr.Warnw("Ignoring configuration of unknown page", "page", cfg.PageID, "type", cfg.PageType)
			continue
		}
		if err := applyBody(page, cfg.Body); err != nil {
			d.lggr.Warnw("Ignoring unreadable page configuration", "page", cfg.PageID, "err", err)
		}
	}
	return nil
}

func applyBody(page *Page, body string) error {
	switch page.Type {
	case TypeChart:
		c := &ChartConfiguration{}
		if err := yaml.Unmarshal([]byte(body), c); err != nil {
			return err
		}
		page.Chart = c
	case TypeCrud:
		c := &CrudConfiguration{}
		if err := yaml.Unmarshal([]byte(body), c); err != nil {
			return err
		}
		page.Crud = c
	default:
		return fmt.Errorf("page type %s has no configuration", page.Type)
	}
	return nil
}

// SaveChartConfiguration persists cfg for a chart page and makes it the
// page's live configuration.
func (d *Dispatcher) SaveChartConfiguration(ctx context.Context, pageID string, cfg ChartConfiguration, updatedBy *uuid.UUID) error {
	d.mu.RLock()
	page := d.tree.FindPage(pageID)
	d.mu.RUnlock()
	if page == nil || page.Type != TypeChart {
		return fmt.Errorf("%w: %s", ErrPageNotFound, pageID)
	}

	if d.store != nil {
		body, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
		record := &models.PageConfiguration{
			PageID:    pageID,
			PageType:  string(TypeChart),
			Body:      string(body),
			UpdatedBy: updatedBy,
		}
		if err := d.store.Save(ctx, record); err != nil {
			return fmt.Errorf("failed to save configuration of %s: %w", pageID, err)
		}
	}

	d.mu.Lock()
	page.Chart = &cfg
	d.mu.Unlock()
	d.lggr.Infow("Page configuration updated", "page", pageID)
	return nil
}
