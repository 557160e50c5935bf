// Package content loads the game's datasets: rules, traits, events and
// localized strings. Datasets are embedded YAML files; a directory may
// override any of them by providing a file with the same name.
package content

import (
	"bytes"
	"embed"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"

	apperrors "github.com/tatianab/life-restart/internal/errors"
	"github.com/tatianab/life-restart/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed data
var embedded embed.FS

// Dataset keys.
const (
	KeyRules  = "rules"
	KeyTraits = "traits"
	KeyEvents = "events"
)

// Loader resolves datasets by key, searching an override directory before
// the embedded data.
type Loader struct {
	layers []fs.FS
}

// NewLoader creates a loader. An empty dir uses only the embedded data.
func NewLoader(dir string) *Loader {
	base, err := fs.Sub(embedded, "data")
	if err != nil {
		panic(err) // the embed pattern guarantees the directory
	}
	l := &Loader{layers: []fs.FS{base}}
	if dir != "" {
		l.layers = append([]fs.FS{os.DirFS(dir)}, l.layers...)
	}
	return l
}

// NewLoaderFS creates a loader over the given filesystems in search order.
func NewLoaderFS(layers ...fs.FS) *Loader {
	return &Loader{layers: layers}
}

// Load decodes the dataset key into v. Unknown fields are rejected.
func (l *Loader) Load(key string, v any) error {
	name := path.Clean(key) + ".yaml"
	for _, layer := range l.layers {
		data, err := fs.ReadFile(layer, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return datasetError("read dataset", key, err)
		}

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("dataset is empty")
			}
			return datasetError("decode dataset", key, err)
		}
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeConfigInvalid, "dataset not found",
		map[string]string{"dataset": key})
}

// Bundle is the full, validated content set.
type Bundle struct {
	Rules   Rules
	Traits  []models.Trait
	Events  []Event
	Strings *Strings
	Locale  string
}

// Load reads and validates every dataset. locale is matched against the
// available string tables.
func Load(l *Loader, locale string) (*Bundle, error) {
	var rules Rules
	if err := l.Load(KeyRules, &rules); err != nil {
		return nil, err
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	var traits struct {
		Traits []models.Trait `yaml:"traits"`
	}
	if err := l.Load(KeyTraits, &traits); err != nil {
		return nil, err
	}
	if err := validateTraits(traits.Traits, rules.Traits.Pull); err != nil {
		return nil, err
	}

	var events struct {
		Events []Event `yaml:"events"`
	}
	if err := l.Load(KeyEvents, &events); err != nil {
		return nil, err
	}
	if err := validateEvents(events.Events); err != nil {
		return nil, err
	}

	loc := MatchLocale(locale)
	strs, err := LoadStrings(l, loc)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Rules:   rules,
		Traits:  traits.Traits,
		Events:  events.Events,
		Strings: strs,
		Locale:  loc,
	}, nil
}

func validateTraits(traits []models.Trait, pull int) error {
	if len(traits) < pull {
		return apperrors.WithMetadata(apperrors.CodeConfigInvalid, "trait pool smaller than pull count",
			map[string]string{"traits": itoa(len(traits)), "pull": itoa(pull)})
	}
	for _, t := range traits {
		for s := range t.Effects {
			if !s.Valid() {
				return apperrors.WithMetadata(apperrors.CodeConfigInvalid, "trait effect on unknown stat",
					map[string]string{"trait": t.ID, "stat": string(s)})
			}
		}
	}
	return nil
}

func datasetError(msg, key string, cause error) error {
	e := apperrors.Wrap(apperrors.CodeConfigInvalid, msg, cause)
	e.Metadata = map[string]string{"dataset": key}
	return e
}
