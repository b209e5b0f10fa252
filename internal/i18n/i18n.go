// Package i18n loads the panel's translation catalogs and resolves
// localized strings with ":param" interpolation.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

const (
	// BaseLocale is the source locale every other catalog falls back to.
	BaseLocale = "en"
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
)

//go:embed locales/*.yaml
var embeddedFS embed.FS

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Bundle holds every loaded locale.
type Bundle struct {
	messages map[string]map[string]string
	tags     []language.Tag
	matcher  language.Matcher
	catalog  *catalog.Builder
}

// LoadEmbedded loads the catalogs compiled into the binary.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS loads locales/*.yaml from fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{
		messages: map[string]map[string]string{},
		catalog:  catalog.NewBuilder(),
	}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := b.add(p, file); err != nil {
			return nil, err
		}
	}
	if _, ok := b.messages[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	sort.SliceStable(b.tags, func(i, j int) bool {
		// the base locale leads so the matcher falls back to it
		return b.tags[i].String() == BaseLocale && b.tags[j].String() != BaseLocale
	})
	b.matcher = language.NewMatcher(b.tags)
	return b, nil
}

func (b *Bundle) add(p string, file catalogFile) error {
	locale := strings.TrimSpace(file.Locale)
	fromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if locale == "" {
		return fmt.Errorf("catalog %s: locale is required", p)
	}
	if locale != fromPath {
		return fmt.Errorf("catalog %s: locale %q must match file name %q", p, locale, fromPath)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("catalog %s: messages are required", p)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("catalog %s: parse locale: %w", p, err)
	}
	if _, exists := b.messages[tag.String()]; exists {
		return fmt.Errorf("catalog %s: locale %s loaded twice", p, tag)
	}
	msgs := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		msgs[key] = value
		// printer formats are fmt verbs; catalog text is literal
		if err := b.catalog.SetString(tag, key, strings.ReplaceAll(value, "%", "%%")); err != nil {
			return fmt.Errorf("catalog %s: register %s: %w", p, key, err)
		}
	}
	b.messages[tag.String()] = msgs
	b.tags = append(b.tags, tag)
	return nil
}

// Locales returns the loaded locale identifiers, base locale first.
func (b *Bundle) Locales() []string {
	out := make([]string, len(b.tags))
	for i, tag := range b.tags {
		out[i] = tag.String()
	}
	return out
}

// Match picks the best supported locale for the given preferences, each of
// which may be a tag or an Accept-Language header value.
func (b *Bundle) Match(preferences ...string) language.Tag {
	var wanted []language.Tag
	for _, pref := range preferences {
		pref = strings.TrimSpace(pref)
		if pref == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(pref)
		if err != nil {
			continue
		}
		wanted = append(wanted, tags...)
	}
	if len(wanted) == 0 {
		return b.tags[0]
	}
	_, idx, conf := b.matcher.Match(wanted...)
	if conf == language.No {
		return b.tags[0]
	}
	return b.tags[idx]
}

// ResolveRequest picks a locale from the lang query parameter, then the
// Accept-Language header.
func (b *Bundle) ResolveRequest(r *http.Request) language.Tag {
	if r == nil {
		return b.tags[0]
	}
	if lang := strings.TrimSpace(r.URL.Query().Get(LangParam)); lang != "" {
		if _, _, err := language.ParseAcceptLanguage(lang); err == nil {
			return b.Match(lang)
		}
	}
	return b.Match(r.Header.Get("Accept-Language"))
}

// Localizer returns a translator bound to tag, which should come from Match.
func (b *Bundle) Localizer(tag language.Tag) *Localizer {
	if _, ok := b.messages[tag.String()]; !ok {
		tag = b.Match(tag.String())
	}
	return &Localizer{
		bundle:  b,
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(b.catalog)),
		base:    message.NewPrinter(b.tags[0], message.Catalog(b.catalog)),
	}
}

// Has reports whether key exists for locale without falling back.
func (b *Bundle) Has(locale, key string) bool {
	_, ok := b.messages[locale][key]
	return ok
}

// Localizer translates keys for one locale.
type Localizer struct {
	bundle  *Bundle
	tag     language.Tag
	printer *message.Printer
	base    *message.Printer
}

func (l *Localizer) Locale() string     { return l.tag.String() }
func (l *Localizer) Tag() language.Tag { return l.tag }

// T returns the message for key with ":name" placeholders replaced from
// params. Missing keys fall back to the base locale, then to the key.
func (l *Localizer) T(key string, params map[string]string) string {
	var text string
	switch {
	case l.bundle.Has(l.tag.String(), key):
		text = l.printer.Sprintf(key)
	case l.bundle.Has(l.bundle.tags[0].String(), key):
		text = l.base.Sprintf(key)
	default:
		text = key
	}
	return Interpolate(text, params)
}

// Interpolate replaces ":name" placeholders. Longer names are replaced
// first so ":label" never clobbers ":labels".
func Interpolate(text string, params map[string]string) string {
	if len(params) == 0 {
		return text
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	pairs := make([]string, 0, len(names)*2)
	for _, name := range names {
		pairs = append(pairs, ":"+name, params[name])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
