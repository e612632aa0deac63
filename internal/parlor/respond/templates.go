package respond

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/elliotchance/pie/v2"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// DefaultBucket is the bucket used when no classification rule matches.
const DefaultBucket = "default"

// ErrInvalidTemplates is returned when a template document is unusable.
var ErrInvalidTemplates = errors.New("invalid templates")

// Rule maps a set of keywords to a bucket. A rule matches when any keyword is
// a substring of the lower-cased message.
type Rule struct {
	Bucket   string   `yaml:"bucket"`
	Keywords []string `yaml:"keywords"`
}

// Templates is the fallback reply catalogue.
type Templates struct {
	DefaultLanguage string                         `yaml:"default_language"`
	Languages       map[string]map[string][]string `yaml:"languages"`
	Rules           []Rule                         `yaml:"rules"`
	Emoji           struct {
		Markers []string `yaml:"markers"`
		Palette []string `yaml:"palette"`
	} `yaml:"emoji"`
}

// DefaultTemplates returns the built-in catalogue.
func DefaultTemplates() *Templates {
	t, err := ParseTemplates(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("respond: built-in templates: %v", err))
	}
	return t
}

// LoadTemplates reads a catalogue from path. An empty path returns the
// built-in catalogue.
func LoadTemplates(path string) (*Templates, error) {
	if path == "" {
		return DefaultTemplates(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates %s: %w", path, err)
	}
	return ParseTemplates(data)
}

// ParseTemplates decodes and validates a YAML catalogue.
func ParseTemplates(data []byte) (*Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Join(ErrInvalidTemplates, err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	for i := range t.Rules {
		t.Rules[i].Keywords = pie.Map(t.Rules[i].Keywords, strings.ToLower)
	}
	return &t, nil
}

// validate guarantees that every lookup can fall back to a non-empty
// default bucket.
func (t *Templates) validate() error {
	if _, ok := t.Languages[t.DefaultLanguage]; !ok {
		return fmt.Errorf("%w: default language %q has no templates", ErrInvalidTemplates, t.DefaultLanguage)
	}
	for lang, buckets := range t.Languages {
		if len(buckets[DefaultBucket]) == 0 {
			return fmt.Errorf("%w: language %q has an empty %q bucket", ErrInvalidTemplates, lang, DefaultBucket)
		}
	}
	for _, r := range t.Rules {
		if r.Bucket == "" || len(r.Keywords) == 0 {
			return fmt.Errorf("%w: rules need a bucket and keywords", ErrInvalidTemplates)
		}
	}
	return nil
}

// Classify returns the bucket for a lower-cased message.
func (t *Templates) Classify(lowered string) string {
	for _, r := range t.Rules {
		if pie.Any(r.Keywords, func(kw string) bool { return strings.Contains(lowered, kw) }) {
			return r.Bucket
		}
	}
	return DefaultBucket
}

// Candidates returns the replies for a language and bucket. Unknown
// languages use the default language; missing or empty buckets use the
// default bucket, which is never empty.
func (t *Templates) Candidates(language, bucket string) []string {
	buckets, ok := t.Languages[language]
	if !ok {
		buckets = t.Languages[t.DefaultLanguage]
	}
	if c := buckets[bucket]; len(c) > 0 {
		return c
	}
	return buckets[DefaultBucket]
}

// HasMarker reports whether reply already carries one of the marker emoji.
func (t *Templates) HasMarker(reply string) bool {
	return pie.Any(t.Emoji.Markers, func(m string) bool { return strings.Contains(reply, m) })
}
