package action_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"panelkit/internal/action"
	"panelkit/internal/blog"
	"panelkit/internal/i18n"
	"panelkit/internal/orm"
	"panelkit/internal/testkit"
)

type testHost struct {
	loc   *i18n.Localizer
	notes []action.Notification
}

func (h *testHost) Localizer() action.Localizer  { return h.loc }
func (h *testHost) Notify(n action.Notification) { h.notes = append(h.notes, n) }
func (h *testHost) last() action.Notification    { return h.notes[len(h.notes)-1] }

func newHost(t *testing.T, tag language.Tag) *testHost {
	t.Helper()
	bundle, err := i18n.LoadEmbedded()
	require.NoError(t, err)
	return &testHost{loc: bundle.Localizer(tag)}
}

// trashedOnly reports a trashed state but cannot be restored or force deleted.
type trashedOnly struct {
	orm.Record
}

func (trashedOnly) Trashed() bool { return true }

func newPost(t *testing.T, store *orm.Store, title string) orm.Record {
	t.Helper()
	rec := store.New(blog.Post)
	rec.Fill(map[string]any{"title": title})
	require.NoError(t, rec.Save(context.Background()))
	return rec
}

func TestSoftDeleteActionsHiddenWithoutTrashedState(t *testing.T) {
	store := testkit.Store(t)
	host := newHost(t, language.English)
	ctx := context.Background()

	author := store.New(blog.Author)
	author.Fill(map[string]any{"name": "ada", "email": "ada@example.com"})
	require.NoError(t, author.Save(ctx))
	post := newPost(t, store, "Hello")

	for _, rec := range []orm.Record{author, post} {
		for _, a := range []*action.Action{action.Restore(), action.ForceDelete()} {
			a.Mount(host).For(rec)
			assert.False(t, a.IsVisible(), "%s on %s", a.Name, rec.Model().Name)
			assert.ErrorIs(t, a.Call(ctx), action.ErrHidden)
		}
		assert.True(t, action.Delete().For(rec).IsVisible())
	}
	assert.Empty(t, host.notes)
}

func TestDeleteThenRestore(t *testing.T) {
	store := testkit.Store(t)
	host := newHost(t, language.English)
	ctx := context.Background()
	post := newPost(t, store, "Hello")

	del := action.Delete().Mount(host).For(post)
	require.NoError(t, del.Call(ctx))
	assert.Equal(t, action.OutcomeSuccess, del.Outcome())
	assert.Equal(t, action.Notification{Status: action.StatusSuccess, Title: "Deleted"}, host.last())

	_, err := store.Find(ctx, blog.Post, post.ID())
	require.ErrorIs(t, err, orm.ErrNotFound)
	assert.False(t, action.Delete().For(post).IsVisible())

	restore := action.Restore().Mount(host).For(post)
	require.True(t, restore.IsVisible())
	require.NoError(t, restore.Call(ctx))
	assert.Equal(t, action.OutcomeSuccess, restore.Outcome())
	assert.Equal(t, action.Notification{Status: action.StatusSuccess, Title: "Restored"}, host.last())

	found, err := store.Find(ctx, blog.Post, post.ID())
	require.NoError(t, err)
	assert.False(t, found.(orm.Trashable).Trashed())
}

func TestRestoreWithoutCapabilityFails(t *testing.T) {
	store := testkit.Store(t)
	host := newHost(t, language.English)
	ctx := context.Background()
	post := newPost(t, store, "Hello")
	before := post.Attributes()

	restore := action.Restore().Mount(host).For(trashedOnly{post})
	require.True(t, restore.IsVisible())
	require.NoError(t, restore.Call(ctx))

	assert.Equal(t, action.OutcomeFailure, restore.Outcome())
	require.Len(t, host.notes, 1)
	assert.Equal(t, action.StatusDanger, host.notes[0].Status)
	assert.Equal(t, "This record cannot be restored", host.notes[0].Title)

	found, err := store.Find(ctx, blog.Post, post.ID())
	require.NoError(t, err)
	assert.Equal(t, before, found.Attributes())
}

func TestForceDeleteRemovesTrashedRow(t *testing.T) {
	store := testkit.Store(t)
	host := newHost(t, language.English)
	ctx := context.Background()
	post := newPost(t, store, "Hello")
	require.NoError(t, post.Delete(ctx))

	fd := action.ForceDelete().Mount(host).For(post)
	require.NoError(t, fd.Call(ctx))
	assert.Equal(t, action.OutcomeSuccess, fd.Outcome())

	_, err := store.FindWithTrashed(ctx, blog.Post, post.ID())
	assert.ErrorIs(t, err, orm.ErrNotFound)
}

func TestForceDeleteWithoutCapability(t *testing.T) {
	store := testkit.Store(t)
	host := newHost(t, language.English)
	post := newPost(t, store, "Hello")

	fd := action.ForceDelete().Mount(host).For(trashedOnly{post})
	err := fd.Call(context.Background())
	assert.ErrorIs(t, err, action.ErrUnsupported)
	assert.Equal(t, action.OutcomeNone, fd.Outcome())
	assert.Empty(t, host.notes)
}

func TestUsingReplacesProcess(t *testing.T) {
	store := testkit.Store(t)
	host := newHost(t, language.English)
	ctx := context.Background()
	post := newPost(t, store, "Hello")
	require.NoError(t, post.Delete(ctx))

	var got orm.Record
	restore := action.Restore().Mount(host).For(post)
	restore.Using = func(_ context.Context, rec orm.Record) error {
		got = rec
		return nil
	}
	require.NoError(t, restore.Call(ctx))
	assert.Same(t, post, got)
	assert.Equal(t, action.OutcomeSuccess, restore.Outcome())

	_, err := store.Find(ctx, blog.Post, post.ID())
	assert.ErrorIs(t, err, orm.ErrNotFound)

	boom := errors.New("boom")
	restore = action.Restore().Mount(host).For(post)
	restore.Using = func(context.Context, orm.Record) error { return boom }
	assert.ErrorIs(t, restore.Call(ctx), boom)
	assert.Equal(t, action.OutcomeNone, restore.Outcome())
}

func TestViewResolvesDefaults(t *testing.T) {
	store := testkit.Store(t)
	ctx := context.Background()
	post := newPost(t, store, "Hello")
	require.NoError(t, post.Delete(ctx))

	tests := []struct {
		name  string
		tag   language.Tag
		build func() *action.Action
		want  action.View
	}{
		{
			name:  "restore en",
			tag:   language.English,
			build: action.Restore,
			want: action.View{
				Name: "restore", Label: "Restore", GroupedIcon: "heroicon-m-arrow-uturn-left", Color: "secondary",
				RequiresConfirmation: true,
				Modal: &action.Modal{
					Heading:     "Restore Hello",
					Description: "Are you sure you would like to do this?",
					SubmitLabel: "Restore",
				},
			},
		},
		{
			name:  "force delete pt-BR",
			tag:   language.MustParse("pt-BR"),
			build: action.ForceDelete,
			want: action.View{
				Name: "forceDelete", Label: "Excluir permanentemente", GroupedIcon: "heroicon-m-trash", Color: "danger",
				RequiresConfirmation: true,
				Modal: &action.Modal{
					Heading:     "Excluir permanentemente Hello",
					Description: "Este registro será removido para sempre.",
					SubmitLabel: "Excluir",
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.build().Mount(newHost(t, tt.tag)).For(post)
			assert.Equal(t, tt.want, a.View())
		})
	}
}

func TestMountKeepsFirstHost(t *testing.T) {
	first := newHost(t, language.English)
	second := newHost(t, language.English)
	a := action.Restore().Mount(first).Mount(second)
	assert.Same(t, first, a.Host())

	assert.ErrorIs(t, action.Delete().Call(context.Background()), action.ErrUnbound)
}
