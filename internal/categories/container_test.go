package categories

import (
	"context"
	"errors"
	"strconv"
	"testing"

	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	nextID  int
	deletes int
	fail    error
}

func (f *fakeBackend) ListCategories(context.Context) ([]models.Category, error) {
	return []models.Category{{ID: "10", Name: "کتاب"}}, f.fail
}

func (f *fakeBackend) CreateCategory(_ context.Context, name string) (models.Category, error) {
	if f.fail != nil {
		return models.Category{}, f.fail
	}
	f.nextID++
	return models.Category{ID: "c" + strconv.Itoa(f.nextID), Name: name}, nil
}

func (f *fakeBackend) UpdateCategory(_ context.Context, id, name string) (models.Category, error) {
	return models.Category{ID: id, Name: name}, f.fail
}

func (f *fakeBackend) DeleteCategory(context.Context, string) error {
	if f.fail != nil {
		return f.fail
	}
	f.deletes++
	return nil
}

type catalog map[string][]string

func (c catalog) InCategory(name string) []string { return c[name] }

func seed() []models.Category {
	return []models.Category{
		{ID: "1", Name: "گوشی هوشمند"},
		{ID: "2", Name: "لپ تاپ"},
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(nil, catalog{}, notify.Reporter{}); err == nil {
		t.Fatalf("expected error for missing backend")
	}
	if _, err := New(&fakeBackend{}, nil, notify.Reporter{}); err == nil {
		t.Fatalf("expected error for missing catalog")
	}
}

func TestAddRejectsDuplicateName(t *testing.T) {
	c, err := New(&fakeBackend{}, catalog{}, notify.Reporter{}, seed()...)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Add(ctx, "لپ تاپ")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	_, err = c.Add(ctx, "   ")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Len(t, c.List(), 2)

	created, err := c.Add(ctx, " لوازم جانبی ")
	require.NoError(t, err)
	assert.Equal(t, "لوازم جانبی", created.Name)
	require.Len(t, c.List(), 3)
}

func TestRemoveGuardsReferencedCategory(t *testing.T) {
	be := &fakeBackend{}
	products := catalog{"گوشی هوشمند": {"p1"}}
	inbox := notify.NewInbox(0)
	c, err := New(be, products, notify.Reporter{Sink: inbox}, seed()...)
	require.NoError(t, err)
	ctx := context.Background()

	err = c.Remove(ctx, "1")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Len(t, c.List(), 2)
	assert.Zero(t, be.deletes)

	require.NoError(t, c.Remove(ctx, "2"))
	assert.Len(t, c.List(), 1)

	delete(products, "گوشی هوشمند")
	require.NoError(t, c.Remove(ctx, "1"))
	assert.Empty(t, c.List())

	require.NoError(t, c.Remove(ctx, "missing"))
	assert.Equal(t, 2, be.deletes)

	notices := inbox.Drain()
	require.Len(t, notices, 3)
	assert.Equal(t, notify.LevelError, notices[0].Level)
}

func TestEditRenamesAndReportsOldName(t *testing.T) {
	c, err := New(&fakeBackend{}, catalog{}, notify.Reporter{}, seed()...)
	require.NoError(t, err)
	ctx := context.Background()

	_, found, err := c.Edit(ctx, "1", "لپ تاپ")
	require.True(t, found)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	oldName, found, err := c.Edit(ctx, "1", "لپ تاپ")
	require.Error(t, err)
	assert.Empty(t, oldName)

	oldName, found, err = c.Edit(ctx, "1", "موبایل")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "گوشی هوشمند", oldName)
	got, _ := c.Get("1")
	assert.Equal(t, "موبایل", got.Name)

	// Renaming to its own name is allowed.
	_, _, err = c.Edit(ctx, "1", "موبایل")
	require.NoError(t, err)

	_, found, err = c.Edit(ctx, "404", "جدید")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBackendFailureLeavesStateUnchanged(t *testing.T) {
	be := &fakeBackend{fail: errors.New("boom")}
	c, err := New(be, catalog{}, notify.Reporter{}, seed()...)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Add(ctx, "جدید")
	require.Error(t, err)
	_, _, err = c.Edit(ctx, "1", "جدید")
	require.Error(t, err)
	require.Error(t, c.Remove(ctx, "2"))
	require.Error(t, c.Load(ctx))

	assert.Equal(t, seed(), c.List())
}

func TestLoadReplacesList(t *testing.T) {
	c, err := New(&fakeBackend{}, catalog{}, notify.Reporter{}, seed()...)
	require.NoError(t, err)
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, []models.Category{{ID: "10", Name: "کتاب"}}, c.List())
}
