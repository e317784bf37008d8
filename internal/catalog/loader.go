package catalog

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// File is the on-disk catalog layout.
type File struct {
	Models []model.BaseCatalogModel `yaml:"models"`
}

// LoadYAML decodes catalog models from r.
func LoadYAML(r io.Reader) ([]model.BaseCatalogModel, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "catalog: decode yaml")
	}
	return f.Models, nil
}

// LoadFile reads a YAML catalog file and builds its index.
func LoadFile(path string) (*Index, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open %s", path)
	}
	defer fh.Close() //nolint:errcheck

	models, err := LoadYAML(fh)
	if err != nil {
		return nil, err
	}
	return NewIndex(models)
}
