// Package blog is the demo domain served by the panel: categories, posts,
// authors with profiles, and SEO metadata shared by posts and categories.
package blog

import "panelkit/internal/orm"

var (
	PostCategory = &orm.Model{
		Name:         "post_category",
		Table:        "post_categories",
		Columns:      []string{"name", "slug", "description"},
		Required:     []string{"name", "slug"},
		SoftDeletes:  true,
		TitleColumn:  "name",
		Translatable: []string{"name"},
	}

	Post = &orm.Model{
		Name:        "post",
		Table:       "posts",
		Columns:     []string{"title", "content", "post_category_id", "author_id"},
		Required:    []string{"title"},
		SoftDeletes: true,
		TitleColumn: "title",
	}

	Author = &orm.Model{
		Name:        "author",
		Table:       "authors",
		Columns:     []string{"name", "email"},
		Required:    []string{"name", "email"},
		TitleColumn: "name",
	}

	AuthorProfile = &orm.Model{
		Name:    "author_profile",
		Table:   "author_profiles",
		Columns: []string{"author_id", "bio", "website"},
	}

	SEOMeta = &orm.Model{
		Name:        "seo_meta",
		Table:       "seo_meta",
		Columns:     []string{"seoable_type", "seoable_id", "title", "description"},
		TitleColumn: "title",
	}
)

func init() {
	Post.BelongsTo("category", PostCategory, "post_category_id")
	Post.BelongsTo("author", Author, "author_id")
	Post.MorphOne("seo", SEOMeta, "seoable")
	PostCategory.MorphOne("seo", SEOMeta, "seoable")
	Author.HasOne("profile", AuthorProfile, "author_id")
}
