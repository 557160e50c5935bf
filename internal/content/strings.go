package content

import (
	"bytes"
	"text/template"

	apperrors "github.com/tatianab/life-restart/internal/errors"
	"github.com/tatianab/life-restart/internal/models"
	"golang.org/x/text/language"
)

// Message template names.
const (
	MsgTraitTrigger    = "trait_trigger"
	MsgYear            = "year"
	MsgDied            = "died"
	MsgDiedOfAge       = "died_of_age"
	MsgAllocationTotal = "allocation_total"
	MsgGuide           = "guide"
)

var locales = []struct {
	tag  language.Tag
	file string
}{
	{language.English, "en"},
	{language.SimplifiedChinese, "zh-CN"},
}

var localeMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(locales))
	for i, l := range locales {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

// MatchLocale picks the closest available string table for a locale
// preference such as "zh-CN" or "en-GB,en;q=0.8". Unknown or malformed
// preferences fall back to English.
func MatchLocale(pref string) string {
	tags, _, err := language.ParseAcceptLanguage(pref)
	if err != nil || len(tags) == 0 {
		return locales[0].file
	}
	_, idx, _ := localeMatcher.Match(tags...)
	return locales[idx].file
}

// Strings is a localized string table.
type Strings struct {
	Stats           map[models.Stat]string `yaml:"stats"`
	Metrics         map[string]string      `yaml:"metrics"`
	Labels          map[string]string      `yaml:"labels"`
	TraitTrigger    string                 `yaml:"trait_trigger"`
	Year            string                 `yaml:"year"`
	Died            string                 `yaml:"died"`
	DiedOfAge       string                 `yaml:"died_of_age"`
	AllocationTotal string                 `yaml:"allocation_total"`
	Guide           string                 `yaml:"guide"`

	tmpl *template.Template
}

// LoadStrings loads and compiles the string table for locale.
func LoadStrings(l *Loader, locale string) (*Strings, error) {
	var s Strings
	if err := l.Load("strings/"+locale, &s); err != nil {
		return nil, err
	}
	if err := s.compile(); err != nil {
		e := apperrors.Wrap(apperrors.CodeConfigInvalid, "compile strings", err)
		e.Metadata = map[string]string{"locale": locale}
		return nil, e
	}
	return &s, nil
}

func (s *Strings) compile() error {
	root := template.New("")
	for name, text := range map[string]string{
		MsgTraitTrigger:    s.TraitTrigger,
		MsgYear:            s.Year,
		MsgDied:            s.Died,
		MsgDiedOfAge:       s.DiedOfAge,
		MsgAllocationTotal: s.AllocationTotal,
		MsgGuide:           s.Guide,
	} {
		if _, err := root.New(name).Parse(text); err != nil {
			return err
		}
	}
	s.tmpl = root
	return nil
}

// Format executes a message template. A message that fails to render, or
// a table not built by LoadStrings, returns the name. Format does not
// modify s and is safe for concurrent use.
func (s *Strings) Format(name string, data any) string {
	if s.tmpl == nil {
		return name
	}
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return name
	}
	return buf.String()
}

// Stat returns the display name of a stat.
func (s *Strings) Stat(st models.Stat) string {
	if n, ok := s.Stats[st]; ok {
		return n
	}
	return string(st)
}

// Metric returns the display name of a summary metric.
func (s *Strings) Metric(m string) string {
	if n, ok := s.Metrics[m]; ok {
		return n
	}
	return m
}

// Label translates a grade label.
func (s *Strings) Label(l string) string {
	if n, ok := s.Labels[l]; ok {
		return n
	}
	return l
}
