package blog

import (
	"context"
	"fmt"

	"panelkit/internal/orm"
)

// Seed writes demo content into an empty database. It returns the number
// of records written, zero when categories already exist.
func Seed(ctx context.Context, store *orm.Store) (int, error) {
	n, err := store.Count(ctx, PostCategory, orm.WithTrashed)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	written := 0
	save := func(rec orm.Record) error {
		if err := rec.Save(ctx); err != nil {
			return fmt.Errorf("seed %s: %w", rec.Model().Name, err)
		}
		written++
		return nil
	}

	categories := map[string]orm.Record{}
	for _, c := range []struct{ slug, en, pt string }{
		{"news", "News", "Notícias"},
		{"guides", "Guides", "Guias"},
		{"archive", "Archive", "Arquivo"},
	} {
		rec := store.New(PostCategory)
		rec.Fill(map[string]any{
			"name": orm.EncodeTranslations(map[string]string{"en": c.en, "pt-BR": c.pt}),
			"slug": c.slug,
		})
		if err := save(rec); err != nil {
			return written, err
		}
		categories[c.slug] = rec
	}

	ada := store.New(Author)
	ada.Fill(map[string]any{"name": "Ada Lovelace", "email": "ada@example.com"})
	if err := save(ada); err != nil {
		return written, err
	}
	rel, err := orm.Resolve(ada, "profile")
	if err != nil {
		return written, err
	}
	profile := rel.NewRelated()
	profile.Fill(map[string]any{"bio": "Wrote the first program.", "website": "https://example.com/ada"})
	if err := rel.(*orm.HasOne).Save(ctx, profile); err != nil {
		return written, err
	}
	written++

	for _, p := range []struct{ title, category string }{
		{"Welcome to the blog", "news"},
		{"Getting started", "guides"},
	} {
		post := store.New(Post)
		post.Fill(map[string]any{
			"title":            p.title,
			"content":          "Lorem ipsum.",
			"post_category_id": categories[p.category].ID(),
			"author_id":        ada.ID(),
		})
		if err := save(post); err != nil {
			return written, err
		}
		seo, err := orm.Resolve(post, "seo")
		if err != nil {
			return written, err
		}
		meta := seo.NewRelated()
		meta.Fill(map[string]any{"title": p.title + " | Blog"})
		if err := seo.(*orm.MorphOne).Save(ctx, meta); err != nil {
			return written, err
		}
		written++
	}

	if err := categories["archive"].Delete(ctx); err != nil {
		return written, err
	}
	return written, nil
}
