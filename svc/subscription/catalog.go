package subscription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	engine "github.com/dmitrymomot/retailplan/pkg/subscription"
)

// Catalog is a read-only template catalog loaded from YAML.
//
//	templates:
//	  - id: basic
//	    name: Basic
//	    price: "0"
//	    duration_days: 30
//	    limits: {customers: 50, products: 10, orders: unlimited}
//	  - id: boost
//	    name: Product boost
//	    price: "4.99"
//	    duration_days: 10
//	    plan_type: mini
//	    limits: {products: 5}
type Catalog struct {
	templates []*engine.Template
	index     *engine.MemoryStore
}

type catalogFile struct {
	Templates []templateSpec `yaml:"templates" validate:"required,min=1,unique=ID,dive"`
}

type templateSpec struct {
	ID           string                `yaml:"id" validate:"required,max=64"`
	Name         string                `yaml:"name" validate:"required"`
	Price        string                `yaml:"price" validate:"omitempty,numeric"`
	DurationDays int                   `yaml:"duration_days" validate:"gt=0"`
	PlanType     string                `yaml:"plan_type" validate:"omitempty,oneof=standard mini"`
	Active       *bool                 `yaml:"active"`
	Limits       map[string]*limitValue `yaml:"limits" validate:"dive,keys,oneof=customers products orders,endkeys"`
}

// limitValue accepts a non-negative integer or "unlimited". A null limit
// decodes to a nil *limitValue, which also means unlimited.
type limitValue struct {
	quota engine.Quota
}

func (l *limitValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: limit must be a scalar", node.Line)
	}
	if strings.EqualFold(node.Value, "unlimited") {
		l.quota = engine.Unlimited()
		return nil
	}
	n, err := strconv.ParseInt(node.Value, 10, 64)
	if err != nil || n < 0 {
		return fmt.Errorf("line %d: %w: %q", node.Line, engine.ErrInvalidQuota, node.Value)
	}
	l.quota = engine.Bounded(n)
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadCatalogFile reads the catalog at path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrCatalogUnreadable, err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// LoadCatalog decodes and validates a YAML catalog. Unknown fields are rejected.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Join(ErrCatalogUnreadable, err)
	}

	var file catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	if err := validate.Struct(file); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}

	templates := make([]*engine.Template, 0, len(file.Templates))
	for _, entry := range file.Templates {
		tpl, err := entry.template()
		if err != nil {
			return nil, errors.Join(ErrInvalidCatalog, err)
		}
		templates = append(templates, tpl)
	}
	return NewCatalog(templates...), nil
}

// NewCatalog builds a catalog from already constructed templates.
func NewCatalog(templates ...*engine.Template) *Catalog {
	c := &Catalog{index: engine.NewMemoryStore(templates...)}
	for _, t := range templates {
		c.templates = append(c.templates, t.Clone())
	}
	slices.SortFunc(c.templates, func(a, b *engine.Template) int { return strings.Compare(a.ID, b.ID) })
	return c
}

func (s templateSpec) template() (*engine.Template, error) {
	price := decimal.Zero
	if s.Price != "" {
		p, err := decimal.NewFromString(s.Price)
		if err != nil {
			return nil, fmt.Errorf("template %s: price: %w", s.ID, err)
		}
		if p.IsNegative() {
			return nil, fmt.Errorf("template %s: negative price %s", s.ID, p)
		}
		price = p
	}

	tpl := &engine.Template{
		ID:           s.ID,
		Name:         s.Name,
		Price:        price,
		DurationDays: s.DurationDays,
		PlanType:     engine.PlanTypeStandard,
		Active:       s.Active == nil || *s.Active,
		Limits:       make(map[engine.Resource]engine.Quota, len(engine.Resources)),
	}
	if s.PlanType != "" {
		tpl.PlanType = engine.PlanType(s.PlanType)
	}
	for res, l := range s.Limits {
		q := engine.Unlimited()
		if l != nil {
			q = l.quota
		}
		tpl.Limits[engine.Resource(res)] = q
	}
	return tpl, nil
}

// Templates returns every template ordered by id.
func (c *Catalog) Templates() []*engine.Template {
	out := make([]*engine.Template, len(c.templates))
	for i, t := range c.templates {
		out[i] = t.Clone()
	}
	return out
}

func (c *Catalog) GetTemplate(ctx context.Context, templateID string) (*engine.Template, error) {
	return c.index.GetTemplate(ctx, templateID)
}

func (c *Catalog) FindActiveFreeTemplate(ctx context.Context) (*engine.Template, error) {
	return c.index.FindActiveFreeTemplate(ctx)
}

var _ engine.TemplateStore = (*Catalog)(nil)
