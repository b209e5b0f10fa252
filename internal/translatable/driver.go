// Package translatable reads and writes per-locale column values. A
// translatable column stores a JSON object of locale to text; the driver
// exposes the active locale's text to forms and merges edits back.
package translatable

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/text/language"

	"panelkit/internal/orm"
)

// Driver edits translatable columns for one active locale.
type Driver struct {
	Store    *orm.Store
	Locale   string
	Fallback string
}

func New(store *orm.Store, locale, fallback string) *Driver {
	return &Driver{Store: store, Locale: locale, Fallback: fallback}
}

// MakeRecord builds an unsaved record of model from form data.
func (d *Driver) MakeRecord(model *orm.Model, data map[string]any) orm.Record {
	rec := d.Store.New(model)
	d.fill(rec, data)
	return rec
}

// UpdateRecord merges form data into rec and saves it.
func (d *Driver) UpdateRecord(ctx context.Context, rec orm.Record, data map[string]any) error {
	d.fill(rec, data)
	if err := rec.Save(ctx); err != nil {
		return fmt.Errorf("update %s: %w", rec.Model().Name, err)
	}
	return nil
}

// RecordAttributes returns rec's attributes with translatable columns
// reduced to the active locale's text.
func (d *Driver) RecordAttributes(rec orm.Record) map[string]any {
	attrs := rec.Attributes()
	for _, col := range rec.Model().Translatable {
		text, ok := d.pick(orm.DecodeTranslations(attrs[col]))
		if !ok {
			attrs[col] = nil
			continue
		}
		attrs[col] = text
	}
	return attrs
}

func (d *Driver) fill(rec orm.Record, data map[string]any) {
	model := rec.Model()
	plain := make(map[string]any, len(data))
	for key, value := range data {
		if !model.IsTranslatable(key) {
			plain[key] = value
			continue
		}
		translations := orm.DecodeTranslations(rec.Get(key))
		switch v := value.(type) {
		case map[string]any, map[string]string:
			// a full locale map replaces the stored one
			translations = orm.DecodeTranslations(v)
		case nil:
			delete(translations, d.Locale)
		default:
			delete(translations, "")
			translations[d.Locale] = fmt.Sprint(v)
		}
		plain[key] = orm.EncodeTranslations(translations)
	}
	rec.Fill(plain)
}

// pick chooses the active locale's text, then the closest available
// locale, then the fallback locale, then any text at all.
func (d *Driver) pick(translations map[string]string) (string, bool) {
	if len(translations) == 0 {
		return "", false
	}
	if text, ok := translations[d.Locale]; ok {
		return text, true
	}
	available := make([]string, 0, len(translations))
	for locale := range translations {
		available = append(available, locale)
	}
	sort.Strings(available)
	var tags []language.Tag
	var keys []string
	for _, locale := range available {
		tag, err := language.Parse(locale)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		keys = append(keys, locale)
	}
	if want, err := language.Parse(d.Locale); err == nil && len(tags) > 0 {
		_, idx, conf := language.NewMatcher(tags).Match(want)
		if conf >= language.High {
			return translations[keys[idx]], true
		}
	}
	if text, ok := translations[d.Fallback]; ok {
		return text, true
	}
	return translations[available[0]], true
}
