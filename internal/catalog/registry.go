package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	ItemTypeTheme  = "theme"
	ItemTypeCoupon = "coupon"
)

type StoreItem struct {
	ID          string `koanf:"id" json:"id"`
	Name        string `koanf:"name" json:"name"`
	Description string `koanf:"description" json:"description"`
	Price       int    `koanf:"price" json:"price"`
	Type        string `koanf:"type" json:"type"`
	Color       string `koanf:"color" json:"color,omitempty"`
	Discount    string `koanf:"discount" json:"discount,omitempty"`
}

// ChallengeDef seeds a challenge row. StartsAt and EndsAt are RFC3339 and
// only meaningful for seasonal challenges. BeforeHour, when set, only counts
// reports submitted before that local hour.
type ChallengeDef struct {
	Slug        string `koanf:"slug"`
	Title       string `koanf:"title"`
	Description string `koanf:"description"`
	Type        string `koanf:"type"`
	Metric      string `koanf:"metric"`
	GoalTarget  int    `koanf:"goal_target"`
	Points      int    `koanf:"points"`
	BeforeHour  int    `koanf:"before_hour"`
	StartsAt    string `koanf:"starts_at"`
	EndsAt      string `koanf:"ends_at"`
}

func (d ChallengeDef) Window() (start, end *time.Time, err error) {
	parse := func(s string) (*time.Time, error) {
		if s == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, err
		}
		t = t.UTC()
		return &t, nil
	}
	if start, err = parse(d.StartsAt); err != nil {
		return nil, nil, fmt.Errorf("challenge %s: starts_at: %w", d.Slug, err)
	}
	if end, err = parse(d.EndsAt); err != nil {
		return nil, nil, fmt.Errorf("challenge %s: ends_at: %w", d.Slug, err)
	}
	return start, end, nil
}

type Bin struct {
	ID           string  `koanf:"id" json:"id"`
	LocationName string  `koanf:"location_name" json:"location_name"`
	Description  string  `koanf:"description" json:"description"`
	Lat          float64 `koanf:"lat" json:"lat"`
	Long         float64 `koanf:"long" json:"long"`
}

type File struct {
	StoreItems []StoreItem    `koanf:"store_items"`
	Challenges []ChallengeDef `koanf:"challenges"`
	Bins       []Bin          `koanf:"trash_bins"`
}

// Registry is the read-mostly catalog of store items, challenge seeds and
// public trash bins.
type Registry struct {
	mu         sync.RWMutex
	items      map[string]*StoreItem
	challenges []ChallengeDef
	bins       []Bin
}

func NewRegistry() *Registry {
	return &Registry{
		items: make(map[string]*StoreItem),
	}
}

func LoadFromFile(path string) (*Registry, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var f File
	if err := k.Unmarshal("", &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	return FromFile(&f)
}

// FromFile validates f and builds a registry from it.
func FromFile(f *File) (*Registry, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	registry := NewRegistry()
	for i := range f.StoreItems {
		registry.Register(&f.StoreItems[i])
	}
	registry.challenges = append(registry.challenges, f.Challenges...)
	registry.bins = append(registry.bins, f.Bins...)
	return registry, nil
}

func (f *File) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	hasDefaultTheme := false
	for _, it := range f.StoreItems {
		switch {
		case it.ID == "":
			errs = append(errs, errors.New("store item without id"))
		case seen[it.ID]:
			errs = append(errs, fmt.Errorf("duplicate store item %q", it.ID))
		}
		seen[it.ID] = true
		if it.Type != ItemTypeTheme && it.Type != ItemTypeCoupon {
			errs = append(errs, fmt.Errorf("store item %q: unknown type %q", it.ID, it.Type))
		}
		if it.Price < 0 {
			errs = append(errs, fmt.Errorf("store item %q: negative price", it.ID))
		}
		if it.ID == DefaultThemeID && it.Type == ItemTypeTheme {
			hasDefaultTheme = true
		}
	}
	if len(f.StoreItems) > 0 && !hasDefaultTheme {
		errs = append(errs, fmt.Errorf("catalog must contain the %q theme", DefaultThemeID))
	}

	slugs := make(map[string]bool)
	for _, c := range f.Challenges {
		if c.Slug == "" || slugs[c.Slug] {
			errs = append(errs, fmt.Errorf("challenge slug %q missing or duplicated", c.Slug))
		}
		slugs[c.Slug] = true
		if c.GoalTarget <= 0 {
			errs = append(errs, fmt.Errorf("challenge %q: goal_target must be positive", c.Slug))
		}
		if c.Points < 0 {
			errs = append(errs, fmt.Errorf("challenge %q: negative points", c.Slug))
		}
		if c.BeforeHour < 0 || c.BeforeHour > 23 {
			errs = append(errs, fmt.Errorf("challenge %q: before_hour out of range", c.Slug))
		}
		if _, _, err := c.Window(); err != nil {
			errs = append(errs, err)
		}
	}

	for _, b := range f.Bins {
		if b.Lat < -90 || b.Lat > 90 || b.Long < -180 || b.Long > 180 {
			errs = append(errs, fmt.Errorf("trash bin %q: coordinates out of range", b.ID))
		}
	}
	return errors.Join(errs...)
}

// DefaultThemeID is owned by every user without a purchase.
const DefaultThemeID = "default"

func (r *Registry) Register(item *StoreItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item
}

func (r *Registry) Item(id string) (StoreItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return StoreItem{}, false
	}
	return *item, true
}

// Items returns all store items ordered by type, then price, then id.
func (r *Registry) Items() []StoreItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]StoreItem, 0, len(r.items))
	for _, it := range r.items {
		result = append(result, *it)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Type != result[j].Type {
			return result[i].Type > result[j].Type
		}
		if result[i].Price != result[j].Price {
			return result[i].Price < result[j].Price
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (r *Registry) Challenges() []ChallengeDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ChallengeDef(nil), r.challenges...)
}

func (r *Registry) Bins() []Bin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Bin(nil), r.bins...)
}

// FindBin matches a bin by id or case-insensitive location name.
func (r *Registry) FindBin(key string) (Bin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.bins {
		if b.ID == key || strings.EqualFold(b.LocationName, key) {
			return b, true
		}
	}
	return Bin{}, false
}
