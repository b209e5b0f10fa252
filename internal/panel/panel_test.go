package panel_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"panelkit/internal/action"
	"panelkit/internal/blog"
	"panelkit/internal/config"
	"panelkit/internal/events"
	"panelkit/internal/form"
	"panelkit/internal/i18n"
	"panelkit/internal/orm"
	"panelkit/internal/panel"
	"panelkit/internal/resource"
	"panelkit/internal/testkit"
)

func newPanel(t *testing.T) panel.Panel {
	t.Helper()
	reg, err := blog.Registry()
	require.NoError(t, err)
	bundle, err := i18n.LoadEmbedded()
	require.NoError(t, err)
	p := panel.New(testkit.OpenDB(t), config.Default(), reg, bundle, zerolog.Nop())
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.Store.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return p
}

var (
	en = panel.Request{Actor: "alice", Locale: language.English}
	pt = panel.Request{Actor: "alice", Locale: language.MustParse("pt-BR")}
)

func actionNames(views []action.View) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Name
	}
	return out
}

func eventTypes(t *testing.T, p panel.Panel) []string {
	t.Helper()
	list, err := p.AuditEvents(context.Background(), events.Filter{})
	require.NoError(t, err)
	out := make([]string, len(list))
	for i, e := range list {
		out[len(list)-1-i] = e.Type
	}
	return out
}

func TestCreatePageRenders(t *testing.T) {
	p := newPanel(t)
	view, err := p.Page(context.Background(), en, "post-categories", "create", "")
	require.NoError(t, err)

	assert.Equal(t, "Create post category", view.Title)
	assert.Equal(t, resource.Create, view.Kind)
	assert.Equal(t, []string{"create", "createAnother", "cancel"}, actionNames(view.FormActions))
	assert.Equal(t, "/admin/post-categories", view.FormActions[2].URL)
	assert.Empty(t, view.HeaderActions)
	require.NotNil(t, view.Form)
	require.Len(t, view.Form.Groups, 1)
	assert.Equal(t, "seo", view.Form.Groups[0].Relationship)
	assert.Nil(t, view.Record)
}

func TestCreateUpdateAndAudit(t *testing.T) {
	p := newPanel(t)
	ctx := context.Background()

	created, err := p.CreateRecord(ctx, pt, "post-categories", map[string]any{
		"name": "Notícias",
		"slug": "news",
	})
	require.NoError(t, err)
	require.NotNil(t, created.Record)
	assert.Equal(t, "Notícias", created.Record.Title)
	assert.Equal(t, []action.Notification{{Status: action.StatusSuccess, Title: "Criado"}}, created.Notifications)

	id := created.Record.ID
	updated, err := p.UpdateRecord(ctx, en, "post-categories", id, map[string]any{"name": "News"})
	require.NoError(t, err)
	assert.Equal(t, "News", updated.Record.Title)

	rec, err := p.Store.Find(ctx, blog.PostCategory, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pt-BR": "Notícias", "en": "News"}, orm.DecodeTranslations(rec.Get("name")))

	view, err := p.Page(ctx, pt, "post-categories", "edit", id)
	require.NoError(t, err)
	assert.Equal(t, "Notícias", view.Form.State["name"])
	assert.Equal(t, []string{"delete"}, actionNames(view.HeaderActions))

	assert.Equal(t, []string{events.RecordCreated, events.RecordUpdated}, eventTypes(t, p))
}

func TestCallActionLifecycle(t *testing.T) {
	p := newPanel(t)
	ctx := context.Background()
	created, err := p.CreateRecord(ctx, en, "posts", map[string]any{
		"title":    "Hello",
		"category": map[string]any{"name": "Launch Notes"},
		"author":   map[string]any{"name": "ada", "email": "ada@example.com"},
	})
	require.NoError(t, err)
	id := created.Record.ID

	category, err := p.Store.First(ctx, blog.PostCategory, map[string]any{"slug": "launch-notes"})
	require.NoError(t, err)
	post, err := p.Store.Find(ctx, blog.Post, id)
	require.NoError(t, err)
	assert.Equal(t, category.ID(), post.Get("post_category_id"))

	_, err = p.CallAction(ctx, en, "posts", id, action.RestoreName)
	assert.ErrorIs(t, err, action.ErrHidden)

	res, err := p.CallAction(ctx, en, "posts", id, action.DeleteName)
	require.NoError(t, err)
	assert.Equal(t, "success", res.Outcome)
	assert.True(t, res.Record.Trashed)

	actions, err := p.RecordActions(ctx, en, "posts", id)
	require.NoError(t, err)
	assert.Equal(t, []string{"restore", "forceDelete"}, actionNames(actions))
	assert.Equal(t, "Restore Hello", actions[0].Modal.Heading)

	res, err = p.CallAction(ctx, en, "posts", id, action.RestoreName)
	require.NoError(t, err)
	assert.Equal(t, []action.Notification{{Status: action.StatusSuccess, Title: "Restored"}}, res.Notifications)
	assert.False(t, res.Record.Trashed)

	_, err = p.CallAction(ctx, en, "posts", id, action.DeleteName)
	require.NoError(t, err)
	res, err = p.CallAction(ctx, en, "posts", id, action.ForceDeleteName)
	require.NoError(t, err)
	assert.Nil(t, res.Record)

	_, err = p.CallAction(ctx, en, "posts", id, action.DeleteName)
	assert.ErrorIs(t, err, orm.ErrNotFound)

	assert.Equal(t, []string{
		events.RecordCreated,
		"action.delete.success",
		"action.restore.success",
		"action.delete.success",
		"action.forceDelete.success",
	}, eventTypes(t, p))
}

func TestListRecords(t *testing.T) {
	p := newPanel(t)
	ctx := context.Background()
	_, err := blog.Seed(ctx, p.Store)
	require.NoError(t, err)

	live, err := p.ListRecords(ctx, en, "post-categories", panel.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, live.Total)
	for _, rec := range live.Records {
		assert.Equal(t, []string{"delete"}, actionNames(rec.Actions))
		assert.Contains(t, rec.Attributes, "slug")
		assert.NotContains(t, rec.Attributes, "description")
	}

	trashed, err := p.ListRecords(ctx, pt, "post-categories", panel.ListOptions{Trashed: orm.OnlyTrashed})
	require.NoError(t, err)
	require.Len(t, trashed.Records, 1)
	assert.Equal(t, "Arquivo", trashed.Records[0].Title)
	assert.Equal(t, []string{"restore", "forceDelete"}, actionNames(trashed.Records[0].Actions))

	paged, err := p.ListRecords(ctx, en, "post-categories", panel.ListOptions{Trashed: orm.WithTrashed, Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, paged.Total)
	assert.Len(t, paged.Records, 1)

	index, err := p.Page(ctx, en, "post-categories", "index", "")
	require.NoError(t, err)
	require.NotNil(t, index.Records)
	assert.Equal(t, 2, index.Records.Total)
	assert.Equal(t, []string{"create"}, actionNames(index.HeaderActions))
}

func TestNavigationAndLookups(t *testing.T) {
	p := newPanel(t)
	nav := p.Navigation(en)
	require.Len(t, nav, 2)
	assert.Equal(t, "Blog", nav[0].Label)
	assert.Equal(t, "/admin/posts", nav[0].Items[0].URL)

	_, err := p.Page(context.Background(), en, "comments", "index", "")
	assert.ErrorIs(t, err, resource.ErrUnknownResource)
	_, err = p.Page(context.Background(), en, "posts", "view", "x")
	assert.ErrorIs(t, err, resource.ErrUnknownPage)
}

func TestFailedCreateRollsBack(t *testing.T) {
	p := newPanel(t)
	ctx := context.Background()

	_, err := p.CreateRecord(ctx, en, "posts", map[string]any{
		"title":    "Hello",
		"category": map[string]any{"name": "!!!"},
		"author":   map[string]any{"name": "ada", "email": "ada@example.com"},
	})
	var verr orm.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "slug", verr.Column)

	for _, m := range []*orm.Model{blog.Post, blog.PostCategory, blog.Author} {
		n, err := p.Store.Count(ctx, m, orm.WithTrashed)
		require.NoError(t, err)
		assert.Zero(t, n, m.Name)
	}
	assert.Empty(t, eventTypes(t, p))

	created, err := p.CreateRecord(ctx, en, "posts", map[string]any{
		"title":    "Hello",
		"category": map[string]any{"name": "Launch"},
		"author":   map[string]any{"name": "ada", "email": "ada@example.com"},
	})
	require.NoError(t, err)
	n, err := p.Store.Count(ctx, blog.Post, orm.WithTrashed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{events.RecordCreated}, eventTypes(t, p))

	_, err = p.Store.Find(ctx, blog.Post, created.Record.ID)
	require.NoError(t, err)
}

func TestPostRequiresInlineAuthor(t *testing.T) {
	p := newPanel(t)
	_, err := p.CreateRecord(context.Background(), en, "posts", map[string]any{
		"title":    "Hello",
		"category": map[string]any{"name": "Launch"},
	})
	var verr *form.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, map[string]string{
		"author.name":  "is required",
		"author.email": "is required",
	}, verr.Fields)
	assert.Empty(t, eventTypes(t, p))
}

func TestActionHeadingsUseRequestLocale(t *testing.T) {
	p := newPanel(t)
	ctx := context.Background()
	created, err := p.CreateRecord(ctx, pt, "post-categories", map[string]any{"name": "Zeitung", "slug": "zeitung"})
	require.NoError(t, err)
	id := created.Record.ID
	_, err = p.UpdateRecord(ctx, en, "post-categories", id, map[string]any{"name": "Alpha"})
	require.NoError(t, err)
	_, err = p.CallAction(ctx, pt, "post-categories", id, action.DeleteName)
	require.NoError(t, err)

	view, err := p.Page(ctx, pt, "post-categories", "view", id)
	require.NoError(t, err)
	assert.Equal(t, "Zeitung", view.Record.Title)
	require.Equal(t, []string{"edit", "restore", "forceDelete"}, actionNames(view.HeaderActions))
	assert.Equal(t, "Restaurar Zeitung", view.HeaderActions[1].Modal.Heading)
	assert.Equal(t, "Excluir permanentemente Zeitung", view.HeaderActions[2].Modal.Heading)

	rows, err := p.RecordActions(ctx, pt, "post-categories", id)
	require.NoError(t, err)
	assert.Equal(t, "Restaurar Zeitung", rows[0].Modal.Heading)

	rows, err = p.RecordActions(ctx, en, "post-categories", id)
	require.NoError(t, err)
	assert.Equal(t, "Restore Alpha", rows[0].Modal.Heading)
}

func TestUnsupportedActionLogsWarning(t *testing.T) {
	authors := blog.AuthorResource()
	authors.HeaderActions = func(resource.Kind) []*action.Action {
		purge := action.ForceDelete()
		purge.Visible = nil
		return []*action.Action{purge}
	}
	reg, err := resource.NewRegistry(authors)
	require.NoError(t, err)
	bundle, err := i18n.LoadEmbedded()
	require.NoError(t, err)
	var buf bytes.Buffer
	p := panel.New(testkit.OpenDB(t), config.Default(), reg, bundle, zerolog.New(&buf))
	ctx := context.Background()

	created, err := p.CreateRecord(ctx, en, "authors", map[string]any{
		"name":    "Grace",
		"email":   "grace@example.com",
		"profile": map[string]any{"bio": "Compilers"},
	})
	require.NoError(t, err)
	buf.Reset()

	_, err = p.CallAction(ctx, en, "authors", created.Record.ID, action.ForceDeleteName)
	assert.ErrorIs(t, err, action.ErrUnsupported)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.NotContains(t, buf.String(), `"level":"error"`)
	assert.Equal(t, []string{events.RecordCreated}, eventTypes(t, p))
}
