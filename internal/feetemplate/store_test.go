package feetemplate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/haulrate/internal/catalog"
	"github.com/Simplici0/haulrate/internal/db"
	"github.com/Simplici0/haulrate/internal/migrations"
	"github.com/Simplici0/haulrate/internal/seed"
)

func newTemplateStore(t *testing.T) (*Store, *catalog.Store) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "templates-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, migrations.Up(database, "../../migrations"))
	_, err = seed.Run(database)
	require.NoError(t, err)

	return NewStore(database), catalog.NewStore(database)
}

func TestStoreCreateGetUpdate(t *testing.T) {
	store, materials := newTemplateStore(t)
	ctx := context.Background()

	m, err := materials.GetByName(ctx, "Mixed C&D Debris")
	require.NoError(t, err)

	d := validDraft()
	d.AutoMinimumCharge = true
	tmpl, err := ParseDraft(d)
	require.NoError(t, err)
	tmpl.MaterialID = m.ID

	created, err := store.Create(ctx, tmpl)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "C&D Disposal", got.Name)
	assert.True(t, got.AutoMinimumCharge())
	assert.True(t, got.Plan.RatePerUnit.Equal(tmpl.Plan.RatePerUnit))

	got.Name = "C&D Disposal (2025)"
	got.Plan.OverageFee = got.Plan.OverageFee.Add(got.Plan.OverageFee)
	_, err = store.Update(ctx, got.ID, got)
	require.NoError(t, err)

	updated, err := store.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, "C&D Disposal (2025)", updated.Name)
	assert.Equal(t, "50", updated.Plan.OverageFee.String())

	list, err := store.List(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	none, err := store.List(ctx, m.ID+1000)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoreRejectsUnknownMaterial(t *testing.T) {
	store, _ := newTemplateStore(t)

	tmpl, err := ParseDraft(validDraft())
	require.NoError(t, err)
	tmpl.MaterialID = 4242

	_, err = store.Create(context.Background(), tmpl)
	require.ErrorIs(t, err, catalog.ErrMaterialNotFound)
}

func TestStoreMissingTemplate(t *testing.T) {
	store, _ := newTemplateStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, 77)
	require.ErrorIs(t, err, ErrTemplateNotFound)

	tmpl, err := ParseDraft(validDraft())
	require.NoError(t, err)
	_, err = store.Update(ctx, 77, tmpl)
	require.ErrorIs(t, err, ErrTemplateNotFound)
}
