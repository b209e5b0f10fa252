package translatable_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelkit/internal/blog"
	"panelkit/internal/orm"
	"panelkit/internal/testkit"
	"panelkit/internal/translatable"
)

func TestMakeAndUpdateKeepOtherLocales(t *testing.T) {
	store := testkit.Store(t)
	ctx := context.Background()

	en := translatable.New(store, "en", "en")
	rec := en.MakeRecord(blog.PostCategory, map[string]any{"name": "News", "slug": "news"})
	require.NoError(t, rec.Save(ctx))

	pt := translatable.New(store, "pt-BR", "en")
	require.NoError(t, pt.UpdateRecord(ctx, rec, map[string]any{"name": "Notícias", "slug": "noticias"}))

	stored, err := store.Find(ctx, blog.PostCategory, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"en": "News", "pt-BR": "Notícias"}, orm.DecodeTranslations(stored.Get("name")))
	assert.Equal(t, "noticias", stored.Get("slug"), "plain columns are written as-is")

	assert.Equal(t, "News", en.RecordAttributes(stored)["name"])
	assert.Equal(t, "Notícias", pt.RecordAttributes(stored)["name"])
}

func TestRecordAttributesFallback(t *testing.T) {
	store := testkit.Store(t)
	rec := store.New(blog.PostCategory)
	rec.Fill(map[string]any{"name": `{"en":"News"}`, "slug": "news"})

	tests := []struct {
		locale string
		want   any
	}{
		{locale: "en", want: "News"},
		{locale: "en-GB", want: "News"},
		{locale: "pt-BR", want: "News"},
	}
	for _, tc := range tests {
		t.Run(tc.locale, func(t *testing.T) {
			d := translatable.New(store, tc.locale, "en")
			assert.Equal(t, tc.want, d.RecordAttributes(rec)["name"])
		})
	}

	rec.Set("name", nil)
	assert.Nil(t, translatable.New(store, "en", "en").RecordAttributes(rec)["name"])
}

func TestLegacyPlainValueIsReplaced(t *testing.T) {
	store := testkit.Store(t)
	rec := store.New(blog.PostCategory)
	rec.Set("name", "Plain")

	d := translatable.New(store, "en", "en")
	assert.Equal(t, "Plain", d.RecordAttributes(rec)["name"])

	rec2 := d.MakeRecord(blog.PostCategory, map[string]any{"name": "Typed"})
	assert.Equal(t, map[string]string{"en": "Typed"}, orm.DecodeTranslations(rec2.Get("name")))
}
