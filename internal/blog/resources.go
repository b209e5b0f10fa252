package blog

import (
	"strings"
	"unicode"

	"panelkit/internal/form"
	"panelkit/internal/resource"
)

// Resources returns the blog's admin resources.
func Resources() []*resource.Resource {
	return []*resource.Resource{
		PostCategoryResource(),
		PostResource(),
		AuthorResource(),
	}
}

// Registry builds the registry of the blog resources.
func Registry() (*resource.Registry, error) {
	return resource.NewRegistry(Resources()...)
}

func seoGroup() *form.Group {
	return form.NewGroup(
		&form.Field{Name: "title", Label: "SEO title"},
		&form.Field{Name: "description", Label: "SEO description"},
	).Relationship("seo")
}

func PostCategoryResource() *resource.Resource {
	return &resource.Resource{
		Slug:            "post-categories",
		Model:           PostCategory,
		Label:           "resources.post_categories.label",
		PluralLabel:     "resources.post_categories.plural_label",
		NavigationGroup: "navigation.groups.blog",
		NavigationIcon:  "heroicon-o-rectangle-stack",
		NavigationSort:  2,
		Columns:         []string{"name", "slug", "deleted_at"},
		Form: func() []form.Component {
			return []form.Component{
				&form.Field{Name: "name", Label: "Name", Required: true},
				&form.Field{Name: "slug", Label: "Slug", Required: true},
				&form.Field{Name: "description", Label: "Description"},
				seoGroup(),
			}
		},
		Pages: map[string]resource.PageRoute{
			"index":  resource.Route(resource.Index, "/"),
			"create": resource.Route(resource.Create, "/create"),
			"view":   resource.Route(resource.View, "/{record}"),
			"edit":   resource.Route(resource.Edit, "/{record}/edit"),
		},
	}
}

func PostResource() *resource.Resource {
	return &resource.Resource{
		Slug:            "posts",
		Model:           Post,
		Label:           "resources.posts.label",
		PluralLabel:     "resources.posts.plural_label",
		NavigationGroup: "navigation.groups.blog",
		NavigationIcon:  "heroicon-o-document-text",
		NavigationSort:  1,
		Columns:         []string{"title", "post_category_id", "deleted_at"},
		Form: func() []form.Component {
			return []form.Component{
				&form.Field{Name: "title", Label: "Title", Required: true},
				&form.Field{Name: "content", Label: "Content"},
				form.NewGroup(
					&form.Field{Name: "name", Label: "Category", Required: true},
					&form.Field{Name: "slug", Label: "Category slug"},
				).Relationship("category").
					MutateRelationshipDataBeforeCreateUsing(withSlug),
				form.NewGroup(
					&form.Field{Name: "name", Label: "Author", Required: true},
					&form.Field{Name: "email", Label: "Author email", Required: true},
				).Relationship("author"),
				seoGroup(),
			}
		},
		Pages: map[string]resource.PageRoute{
			"index":  resource.Route(resource.Index, "/"),
			"create": resource.Route(resource.Create, "/create"),
			"edit":   resource.Route(resource.Edit, "/{record}/edit"),
		},
	}
}

func AuthorResource() *resource.Resource {
	return &resource.Resource{
		Slug:            "authors",
		Model:           Author,
		Label:           "resources.authors.label",
		PluralLabel:     "resources.authors.plural_label",
		NavigationGroup: "navigation.groups.people",
		NavigationIcon:  "heroicon-o-user",
		Columns:         []string{"name", "email"},
		Form: func() []form.Component {
			return []form.Component{
				&form.Field{Name: "name", Label: "Name", Required: true},
				&form.Field{Name: "email", Label: "Email", Required: true},
				form.NewGroup(
					&form.Field{Name: "bio", Label: "Bio"},
					&form.Field{Name: "website", Label: "Website"},
				).Relationship("profile"),
			}
		},
		Pages: map[string]resource.PageRoute{
			"index":  resource.Route(resource.Index, "/"),
			"create": resource.Route(resource.Create, "/create"),
			"view":   resource.Route(resource.View, "/{record}"),
			"edit":   resource.Route(resource.Edit, "/{record}/edit"),
		},
	}
}

// withSlug fills a blank slug from the name.
func withSlug(data map[string]any) map[string]any {
	if s, _ := data["slug"].(string); strings.TrimSpace(s) != "" {
		return data
	}
	name, _ := data["name"].(string)
	data["slug"] = Slugify(name)
	return data
}

// Slugify lowercases s and joins its letter and digit runs with dashes.
func Slugify(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, "-")
}
