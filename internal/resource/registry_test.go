package resource_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"panelkit/internal/blog"
	"panelkit/internal/i18n"
	"panelkit/internal/resource"
	"panelkit/internal/testkit"
)

func TestPostCategoryRoutes(t *testing.T) {
	reg, err := resource.NewRegistry(blog.PostCategoryResource())
	require.NoError(t, err)

	assert.Equal(t, []resource.RouteInfo{
		{Name: "post-categories.index", Resource: "post-categories", Page: "index", Kind: resource.Index, Path: "/post-categories"},
		{Name: "post-categories.create", Resource: "post-categories", Page: "create", Kind: resource.Create, Path: "/post-categories/create"},
		{Name: "post-categories.view", Resource: "post-categories", Page: "view", Kind: resource.View, Path: "/post-categories/{record}"},
		{Name: "post-categories.edit", Resource: "post-categories", Page: "edit", Kind: resource.Edit, Path: "/post-categories/{record}/edit"},
	}, reg.Routes())

	url, err := reg.URL("post-categories", "edit", "abc")
	require.NoError(t, err)
	assert.Equal(t, "/post-categories/abc/edit", url)
}

func TestRegistryLookups(t *testing.T) {
	reg, err := blog.Registry()
	require.NoError(t, err)

	res, route, err := reg.Page("posts", "create")
	require.NoError(t, err)
	assert.Equal(t, blog.Post, res.Model)
	assert.Equal(t, resource.Route(resource.Create, "/create"), route)

	_, err = reg.Resource("comments")
	assert.True(t, errors.Is(err, resource.ErrUnknownResource))
	_, _, err = reg.Page("posts", "view")
	assert.True(t, errors.Is(err, resource.ErrUnknownPage))

	name, ok := res.PageOfKind(resource.Edit)
	assert.True(t, ok)
	assert.Equal(t, "edit", name)
	_, ok = res.PageOfKind(resource.View)
	assert.False(t, ok)
}

func TestNewRegistryRejectsBadConfig(t *testing.T) {
	valid := func() *resource.Resource {
		return &resource.Resource{
			Slug:  "tags",
			Model: blog.PostCategory,
			Pages: map[string]resource.PageRoute{"index": resource.Route(resource.Index, "/")},
		}
	}
	tests := []struct {
		name   string
		mutate func(r *resource.Resource)
		dup    bool
	}{
		{name: "duplicate slug", dup: true},
		{name: "bad slug", mutate: func(r *resource.Resource) { r.Slug = "Tags!" }},
		{name: "no model", mutate: func(r *resource.Resource) { r.Model = nil }},
		{name: "empty page name", mutate: func(r *resource.Resource) { r.Pages[" "] = resource.Route(resource.Create, "/create") }},
		{name: "unknown kind", mutate: func(r *resource.Resource) { r.Pages["x"] = resource.Route("board", "/board") }},
		{name: "relative path", mutate: func(r *resource.Resource) { r.Pages["create"] = resource.Route(resource.Create, "create") }},
		{name: "shared path", mutate: func(r *resource.Resource) { r.Pages["list"] = resource.Route(resource.Index, "/") }},
		{name: "edit without record", mutate: func(r *resource.Resource) { r.Pages["edit"] = resource.Route(resource.Edit, "/edit") }},
		{name: "create with record", mutate: func(r *resource.Resource) { r.Pages["create"] = resource.Route(resource.Create, "/{record}/create") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			resources := []*resource.Resource{r}
			if tt.dup {
				resources = append(resources, valid())
			} else {
				tt.mutate(r)
			}
			_, err := resource.NewRegistry(resources...)
			assert.Error(t, err)
		})
	}

	_, err := resource.NewRegistry(valid(), nil)
	assert.Error(t, err)
	_, err = resource.NewRegistry(valid())
	assert.NoError(t, err)
}

func TestNavigationGroupsAndSorts(t *testing.T) {
	reg, err := blog.Registry()
	require.NoError(t, err)
	bundle, err := i18n.LoadEmbedded()
	require.NoError(t, err)

	nav := reg.Navigation(bundle.Localizer(language.MustParse("pt-BR")))
	assert.Equal(t, []resource.NavigationGroup{
		{Label: "Blog", Items: []resource.NavigationItem{
			{Resource: "posts", Label: "Publicações", Icon: "heroicon-o-document-text", URL: "/posts"},
			{Resource: "post-categories", Label: "Categorias", Icon: "heroicon-o-rectangle-stack", URL: "/post-categories"},
		}},
		{Label: "Pessoas", Items: []resource.NavigationItem{
			{Resource: "authors", Label: "Autores", Icon: "heroicon-o-user", URL: "/authors"},
		}},
	}, nav)

	keys := reg.Navigation(nil)
	require.Len(t, keys, 2)
	assert.Equal(t, "navigation.groups.blog", keys[0].Label)
}

func TestRecordTitleColumn(t *testing.T) {
	store := testkit.Store(t)
	author := store.New(blog.Author)
	author.Fill(map[string]any{"name": "ada", "email": "ada@example.com"})
	require.NoError(t, author.Save(context.Background()))

	res := blog.AuthorResource()
	assert.Equal(t, "ada", res.RecordTitle(author))
	res.RecordTitleColumn = "email"
	assert.Equal(t, "ada@example.com", res.RecordTitle(author))
	assert.Equal(t, "", res.RecordTitle(nil))
}
