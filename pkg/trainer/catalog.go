package trainer

import (
	"fmt"
	"sync"

	"github.com/mimir-aip/mimir-automl/pkg/models"
)

// ovaSuffix names the one-versus-all wrapper of a binary algorithm
const ovaSuffix = "Ova"

// Entry is one registered trainer
type Entry struct {
	Name      models.TrainerName
	Kind      models.TrainerKind
	Extension Extension
}

// Catalog maps trainer names to extensions and back. It is immutable once
// built and safe for concurrent use.
type Catalog struct {
	entries []Entry
	byName  map[models.TrainerName]Entry
	names   map[Extension]models.TrainerName
}

// NewCatalog registers every algorithm under its own name and wraps each
// binary algorithm in a one-versus-all extension named <name>Ova
func NewCatalog(algorithms ...Algorithm) (*Catalog, error) {
	c := &Catalog{
		byName: make(map[models.TrainerName]Entry),
		names:  make(map[Extension]models.TrainerName),
	}

	for _, alg := range algorithms {
		ext := NewAlgorithmExtension(alg, c)
		if err := c.register(alg.Name, alg.Kind, ext); err != nil {
			return nil, err
		}
		if alg.Kind == models.TrainerKindBinary {
			ova := NewOvaExtension(ext, c)
			if err := c.register(alg.Name+ovaSuffix, models.TrainerKindOva, ova); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (c *Catalog) register(name models.TrainerName, kind models.TrainerKind, ext Extension) error {
	if _, ok := c.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTrainer, name)
	}
	e := Entry{Name: name, Kind: kind, Extension: ext}
	c.entries = append(c.entries, e)
	c.byName[name] = e
	c.names[ext] = name
	return nil
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := NewCatalog(Algorithms()...)
	if err != nil {
		panic(err)
	}
	return c
})

// DefaultCatalog returns the process-wide catalog of every built-in trainer
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}

// TrainerName resolves the name an extension was registered under. The
// lookup is by identity; an equal but separately built extension is not
// registered.
func (c *Catalog) TrainerName(ext Extension) (models.TrainerName, error) {
	if c != nil {
		if name, ok := c.names[ext]; ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %T", ErrUnregisteredTrainer, ext)
}

// Lookup returns the extension registered under name
func (c *Catalog) Lookup(name models.TrainerName) (Extension, error) {
	e, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredTrainer, name)
	}
	return e.Extension, nil
}

// Kind returns how the named trainer produces its classifier
func (c *Catalog) Kind(name models.TrainerName) (models.TrainerKind, error) {
	e, ok := c.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnregisteredTrainer, name)
	}
	return e.Kind, nil
}

// Entries returns the registered trainers in registration order
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Names returns the registered trainer names in registration order
func (c *Catalog) Names() []models.TrainerName {
	names := make([]models.TrainerName, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// Multiclass returns the names of the trainers that produce a multiclass
// classifier: one-versus-all wrappers and native multiclass algorithms
func (c *Catalog) Multiclass() []models.TrainerName {
	var names []models.TrainerName
	for _, e := range c.entries {
		if e.Kind != models.TrainerKindBinary {
			names = append(names, e.Name)
		}
	}
	return names
}
