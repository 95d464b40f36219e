package tenantctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithAndFrom(t *testing.T) {
	ctx := With(context.Background(), "tenant-1")

	got, ok := From(ctx)
	assert.True(t, ok)
	assert.Equal(t, "tenant-1", got)
	assert.Equal(t, "tenant-1", MustFrom(ctx))
}

func TestUnsetContext(t *testing.T) {
	got, ok := From(context.Background())
	assert.False(t, ok)
	assert.Empty(t, got)
	assert.Empty(t, MustFrom(context.Background()))
}

func TestEmptyTenantTreatedAsUnset(t *testing.T) {
	ctx := With(context.Background(), "")
	_, ok := From(ctx)
	assert.False(t, ok)
}

func TestChildScopesDoNotLeakAcross(t *testing.T) {
	base := context.Background()
	a := With(base, "tenant-a")
	b := With(base, "tenant-b")

	assert.Equal(t, "tenant-a", MustFrom(a))
	assert.Equal(t, "tenant-b", MustFrom(b))
	_, ok := From(base)
	assert.False(t, ok)
}
