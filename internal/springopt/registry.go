package springopt

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// Registry stores spring options keyed by (brand, model family, name).
// UpsertOption must be idempotent: the first stored modification set wins
// and later writes for the same key only raise the confidence.
type Registry interface {
	LookupOption(ctx context.Context, scope model.Scope, name string) (*model.SpringOption, error)
	UpsertOption(ctx context.Context, opt model.SpringOption) error
}

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu   sync.RWMutex
	opts map[string]model.SpringOption
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{opts: make(map[string]model.SpringOption)}
}

// LookupOption returns a copy of the stored option, or nil when missing.
func (r *MemoryRegistry) LookupOption(_ context.Context, scope model.Scope, name string) (*model.SpringOption, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	opt, ok := r.opts[model.OptionKey(scope, name)]
	if !ok {
		return nil, nil
	}
	opt.Modifications = opt.Modifications.Clone()
	return &opt, nil
}

// UpsertOption implements Registry.
func (r *MemoryRegistry) UpsertOption(_ context.Context, opt model.SpringOption) error {
	if err := validOption(opt); err != nil {
		return err
	}
	key := opt.RegistryKey()
	opt.Confidence = model.Clamp(opt.Confidence)

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.opts[key]; ok {
		if opt.Confidence > cur.Confidence {
			cur.Confidence = opt.Confidence
			r.opts[key] = cur
		}
		return nil
	}
	opt.Modifications = opt.Modifications.Clone()
	r.opts[key] = opt
	return nil
}

// Len returns the number of stored options.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.opts)
}

// List returns all options ordered by registry key.
func (r *MemoryRegistry) List() []model.SpringOption {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.opts))
	for k := range r.opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]model.SpringOption, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.opts[k])
	}
	return out
}

func validOption(opt model.SpringOption) error {
	if opt.Scope.Brand == "" || opt.Scope.ModelFamily == "" || opt.Name == "" {
		return eris.Errorf("springopt: option %q needs brand, model family and name", opt.Name)
	}
	return nil
}

// KnownFile is the YAML layout of a known-options seed file.
type KnownFile struct {
	Options []KnownOption `yaml:"options"`
}

// KnownOption is one seed entry.
type KnownOption struct {
	Name          string                `yaml:"name"`
	Brand         string                `yaml:"brand"`
	ModelFamily   string                `yaml:"model_family"`
	Confidence    float64               `yaml:"confidence"`
	Modifications model.ModificationSet `yaml:"modifications"`
}

// LoadKnown reads a seed file of manufacturer-documented options.
// Confidence defaults to KnownConfidence.
func LoadKnown(r io.Reader) ([]model.SpringOption, error) {
	var f KnownFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, eris.Wrap(err, "springopt: decode known options")
	}

	out := make([]model.SpringOption, 0, len(f.Options))
	for i, k := range f.Options {
		conf := k.Confidence
		if conf <= 0 {
			conf = KnownConfidence
		}
		opt := model.SpringOption{
			Name:          k.Name,
			Scope:         model.Scope{Brand: k.Brand, ModelFamily: k.ModelFamily},
			Modifications: k.Modifications,
			Confidence:    model.Clamp(conf),
			Provenance:    model.ProvenanceKnown,
		}
		if err := validOption(opt); err != nil {
			return nil, eris.Wrapf(err, "springopt: known option %d", i)
		}
		out = append(out, opt)
	}
	return out, nil
}

// Seed upserts options into reg.
func Seed(ctx context.Context, reg Registry, opts []model.SpringOption) error {
	for _, opt := range opts {
		if err := reg.UpsertOption(ctx, opt); err != nil {
			return eris.Wrapf(err, "springopt: seed %q", opt.Name)
		}
	}
	return nil
}
