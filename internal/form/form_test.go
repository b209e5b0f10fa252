package form_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelkit/internal/blog"
	"panelkit/internal/form"
	"panelkit/internal/orm"
	"panelkit/internal/testkit"
	"panelkit/internal/translatable"
)

type driverHost struct {
	driver form.TranslatableContentDriver
}

func (h driverHost) TranslatableContentDriver() form.TranslatableContentDriver { return h.driver }

func postForm(store *orm.Store, host form.Host, category *form.Group) *form.Container {
	return form.New(host, store, blog.Post,
		&form.Field{Name: "title", Required: true},
		&form.Field{Name: "content"},
		category,
	)
}

func categoryGroup() *form.Group {
	return form.NewGroup(
		&form.Field{Name: "name", Required: true},
		&form.Field{Name: "slug", Required: true},
		&form.Field{Name: "description"},
	).Relationship("category")
}

// createPost follows the create page: dehydrate, save the record, then its
// relationships.
func createPost(t *testing.T, store *orm.Store, c *form.Container) orm.Record {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.Validate())
	rec := store.New(blog.Post)
	rec.Fill(c.State(true))
	require.NoError(t, rec.Save(ctx))
	c.SetRecord(rec)
	require.NoError(t, c.SaveRelationships(ctx))
	return rec
}

func count(t *testing.T, store *orm.Store, m *orm.Model) int {
	t.Helper()
	n, err := store.Count(context.Background(), m, orm.WithTrashed)
	require.NoError(t, err)
	return n
}

func TestBelongsToCreatesAndAssociatesOwner(t *testing.T) {
	store := testkit.Store(t)
	ctx := context.Background()

	creates := 0
	group := categoryGroup().MutateRelationshipDataBeforeCreateUsing(func(data map[string]any) map[string]any {
		creates++
		data["description"] = "created from a post"
		return data
	})
	c := postForm(store, nil, group)
	require.NoError(t, c.Fill(ctx, nil))
	assert.Equal(t, form.Absent, group.Resolution())

	c.SetState(map[string]any{
		"title":    "Hello",
		"category": map[string]any{"name": "News", "slug": "news"},
	})
	post := createPost(t, store, c)

	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, count(t, store, blog.PostCategory))
	assert.Equal(t, form.Present, group.Resolution())

	saved, err := store.Find(ctx, blog.Post, post.ID())
	require.NoError(t, err)
	category, err := store.First(ctx, blog.PostCategory, map[string]any{"slug": "news"})
	require.NoError(t, err)
	assert.Equal(t, category.ID(), saved.Get("post_category_id"))
	assert.Equal(t, "created from a post", category.Get("description"))
}

func TestDehydratedStateSkipsRelationshipGroups(t *testing.T) {
	store := testkit.Store(t)
	c := form.New(nil, store, blog.Post,
		&form.Field{Name: "title"},
		&form.Field{Name: "confirm", Transient: true},
		form.NewGroup(&form.Field{Name: "content"}),
		categoryGroup(),
	)
	require.NoError(t, c.Fill(context.Background(), nil))
	c.SetState(map[string]any{
		"title":    "Hello",
		"content":  "Body",
		"confirm":  true,
		"category": map[string]any{"name": "News"},
	})

	assert.Equal(t, map[string]any{"title": "Hello", "content": "Body"}, c.State(true))
	raw := c.State(false)
	assert.Equal(t, true, raw["confirm"])
	assert.Equal(t, "News", raw["category"].(map[string]any)["name"])
}

func TestHasOneCreatesBeforeChildrenOnce(t *testing.T) {
	store := testkit.Store(t)
	ctx := context.Background()

	author := store.New(blog.Author)
	author.Fill(map[string]any{"name": "ada", "email": "ada@example.com"})
	require.NoError(t, author.Save(ctx))

	creates, saves := 0, 0
	profile := form.NewGroup(&form.Field{Name: "bio"}, &form.Field{Name: "website"}).
		Relationship("profile").
		MutateRelationshipDataBeforeCreateUsing(func(data map[string]any) map[string]any {
			creates++
			return data
		}).
		MutateRelationshipDataBeforeSaveUsing(func(data map[string]any) map[string]any {
			saves++
			return data
		})
	c := form.New(nil, store, blog.Author, &form.Field{Name: "name"}, &form.Field{Name: "email"}, profile)
	c.SetRecord(author)
	require.NoError(t, c.Fill(ctx, author.Attributes()))
	assert.Equal(t, "ada", c.State(true)["name"])

	c.SetState(map[string]any{"profile": map[string]any{"bio": "Mathematician"}})
	require.NoError(t, c.SaveRelationships(ctx))

	assert.Equal(t, 1, creates)
	assert.Equal(t, 0, saves)
	assert.Equal(t, 1, count(t, store, blog.AuthorProfile))
	stored, err := store.First(ctx, blog.AuthorProfile, map[string]any{"author_id": author.ID()})
	require.NoError(t, err)
	assert.Equal(t, "Mathematician", stored.Get("bio"))

	// A second save on the same form updates the profile it created.
	c.SetState(map[string]any{"profile": map[string]any{"bio": "Analyst"}})
	require.NoError(t, c.SaveRelationships(ctx))
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, saves)
	assert.Equal(t, 1, count(t, store, blog.AuthorProfile))
	stored, err = store.Find(ctx, blog.AuthorProfile, stored.ID())
	require.NoError(t, err)
	assert.Equal(t, "Analyst", stored.Get("bio"))
}

func TestMorphOneCreatesThroughRelationship(t *testing.T) {
	store := testkit.Store(t)
	ctx := context.Background()

	seo := form.NewGroup(&form.Field{Name: "title"}, &form.Field{Name: "description"}).Relationship("seo")
	c := postForm(store, nil, seo)
	require.NoError(t, c.Fill(ctx, nil))
	c.SetState(map[string]any{
		"title": "Hello",
		"seo":   map[string]any{"title": "Hello | Blog"},
	})
	post := createPost(t, store, c)

	assert.Equal(t, 1, count(t, store, blog.SEOMeta))
	meta, err := store.First(ctx, blog.SEOMeta, map[string]any{"seoable_id": post.ID()})
	require.NoError(t, err)
	assert.Equal(t, blog.Post.Name, meta.Get("seoable_type"))
	assert.Equal(t, "Hello | Blog", meta.Get("title"))
}

func TestExistingRecordIsUpdatedInPlace(t *testing.T) {
	store := testkit.Store(t)
	ctx := context.Background()

	category := store.New(blog.PostCategory)
	category.Fill(map[string]any{"name": "News", "slug": "news"})
	require.NoError(t, category.Save(ctx))
	post := store.New(blog.Post)
	post.Fill(map[string]any{"title": "Hello", "post_category_id": category.ID()})
	require.NoError(t, post.Save(ctx))

	group := categoryGroup().
		MutateRelationshipDataBeforeFillUsing(func(data map[string]any) map[string]any {
			data["description"] = "filled"
			return data
		}).
		MutateRelationshipDataBeforeSaveUsing(func(data map[string]any) map[string]any {
			data["slug"] = "updates"
			return data
		})
	c := postForm(store, nil, group)
	c.SetRecord(post)
	require.NoError(t, c.Fill(ctx, post.Attributes()))
	require.Equal(t, form.Present, group.Resolution())

	nested := c.State(false)["category"].(map[string]any)
	assert.Equal(t, "News", nested["name"])
	assert.Equal(t, "filled", nested["description"])

	c.SetState(map[string]any{"category": map[string]any{"name": "Updates"}})
	require.NoError(t, c.SaveRelationships(ctx))

	assert.Equal(t, 1, count(t, store, blog.PostCategory))
	reloaded, err := store.Find(ctx, blog.PostCategory, category.ID())
	require.NoError(t, err)
	assert.Equal(t, "Updates", reloaded.Get("name"))
	assert.Equal(t, "updates", reloaded.Get("slug"))
}

func TestClearingCacheReResolves(t *testing.T) {
	store := testkit.Store(t)
	ctx := context.Background()

	post := store.New(blog.Post)
	post.Fill(map[string]any{"title": "Hello"})
	require.NoError(t, post.Save(ctx))

	group := categoryGroup()
	c := postForm(store, nil, group)
	c.SetRecord(post)
	require.NoError(t, c.Fill(ctx, post.Attributes()))
	require.Equal(t, form.Absent, group.Resolution())

	category := store.New(blog.PostCategory)
	category.Fill(map[string]any{"name": "News", "slug": "news"})
	require.NoError(t, category.Save(ctx))
	post.Set("post_category_id", category.ID())
	require.NoError(t, post.Save(ctx))

	rec, err := group.CachedExistingRecord(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	group.ClearCachedExistingRecord()
	assert.Equal(t, form.Unresolved, group.Resolution())
	rec, err = group.CachedExistingRecord(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, category.ID(), rec.ID())

	require.NoError(t, group.FillFromRelationship(ctx))
	assert.Equal(t, "News", c.State(false)["category"].(map[string]any)["name"])
}

func TestTrashedOwnerCountsAsAbsent(t *testing.T) {
	store := testkit.Store(t)
	ctx := context.Background()

	category := store.New(blog.PostCategory)
	category.Fill(map[string]any{"name": "News", "slug": "news"})
	require.NoError(t, category.Save(ctx))
	post := store.New(blog.Post)
	post.Fill(map[string]any{"title": "Hello", "post_category_id": category.ID()})
	require.NoError(t, post.Save(ctx))
	require.NoError(t, category.Delete(ctx))

	group := categoryGroup()
	c := postForm(store, nil, group)
	c.SetRecord(post)
	require.NoError(t, c.Fill(ctx, post.Attributes()))
	assert.Equal(t, form.Absent, group.Resolution())
	assert.Nil(t, c.State(false)["category"].(map[string]any)["name"])
}

func TestUnknownRelationshipIsNoop(t *testing.T) {
	store := testkit.Store(t)
	ctx := context.Background()

	group := form.NewGroup(&form.Field{Name: "note", Default: "n/a"}).Relationship("missing")
	c := postForm(store, nil, group)
	require.NoError(t, c.Fill(ctx, nil))
	assert.Nil(t, group.Relation())
	assert.Equal(t, "n/a", c.State(false)["missing"].(map[string]any)["note"])

	c.SetState(map[string]any{"title": "Hello"})
	createPost(t, store, c)
	assert.Equal(t, 1, count(t, store, blog.Post))
}

func TestValidateReportsNestedPaths(t *testing.T) {
	store := testkit.Store(t)
	c := postForm(store, nil, categoryGroup())
	require.NoError(t, c.Fill(context.Background(), nil))
	c.SetState(map[string]any{"title": " ", "category": map[string]any{"name": "News"}})

	err := c.Validate()
	var verr *form.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{
		"title":         "is required",
		"category.slug": "is required",
	}, verr.Fields)
	assert.EqualError(t, err, "invalid form: category.slug is required, title is required")
}

func TestTranslatableDriverRoundTrip(t *testing.T) {
	store := testkit.Store(t)
	ctx := context.Background()
	host := driverHost{driver: translatable.New(store, "pt-BR", "en")}

	group := categoryGroup()
	c := postForm(store, host, group)
	require.NoError(t, c.Fill(ctx, nil))
	c.SetState(map[string]any{
		"title":    "Olá",
		"category": map[string]any{"name": "Notícias", "slug": "noticias"},
	})
	createPost(t, store, c)

	category, err := store.First(ctx, blog.PostCategory, map[string]any{"slug": "noticias"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pt-BR": "Notícias"}, orm.DecodeTranslations(category.Get("name")))

	english := driverHost{driver: translatable.New(store, "en", "pt-BR")}
	edit := postForm(store, english, categoryGroup())
	post, err := store.First(ctx, blog.Post, map[string]any{"title": "Olá"})
	require.NoError(t, err)
	edit.SetRecord(post)
	require.NoError(t, edit.Fill(ctx, post.Attributes()))
	assert.Equal(t, "Notícias", edit.State(false)["category"].(map[string]any)["name"])

	edit.SetState(map[string]any{"category": map[string]any{"name": "News"}})
	require.NoError(t, edit.SaveRelationships(ctx))
	category, err = store.Find(ctx, blog.PostCategory, category.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pt-BR": "Notícias", "en": "News"}, orm.DecodeTranslations(category.Get("name")))
}
