package frame

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id, mesh uint64) RenderItem {
	return RenderItem{ObjectID: id, Mesh: mesh, Transform: mgl32.Ident4(), LastTransform: mgl32.Ident4()}
}

func TestAddRenderItemRejectsDuplicate(t *testing.T) {
	s := NewScene()
	require.NoError(t, s.AddRenderItem(item(1, 10)))

	err := s.AddRenderItem(item(1, 99))
	assert.ErrorIs(t, err, ErrDuplicateID)

	got, ok := s.RenderItem(1)
	require.True(t, ok)
	assert.Equal(t, uint64(10), got.Mesh, "existing entry must be unchanged")
	assert.Len(t, s.RenderItems(), 1)
}

func TestDelRenderItemMissing(t *testing.T) {
	s := NewScene()
	require.NoError(t, s.AddRenderItem(item(1, 10)))

	assert.ErrorIs(t, s.DelRenderItem(2), ErrNotFound)
	assert.Len(t, s.RenderItems(), 1)

	require.NoError(t, s.DelRenderItem(1))
	assert.Empty(t, s.RenderItems())
	assert.ErrorIs(t, s.DelRenderItem(1), ErrNotFound)
}

func TestCollectionKeepsInsertionOrder(t *testing.T) {
	s := NewScene()
	for id := uint64(1); id <= 5; id++ {
		require.NoError(t, s.AddPointLight(PointLight{ID: id, Radius: float32(id)}))
	}
	require.NoError(t, s.DelPointLight(3))
	require.NoError(t, s.AddPointLight(PointLight{ID: 3}))

	var ids []uint64
	for _, l := range s.PointLights() {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []uint64{1, 2, 4, 5, 3}, ids)

	// index stays consistent after the shift
	l, ok := s.PointLight(5)
	require.True(t, ok)
	assert.Equal(t, float32(5), l.Radius)
}

func TestLightsStartUnshadowed(t *testing.T) {
	s := NewScene()
	require.NoError(t, s.AddPointLight(PointLight{ID: 1, ShadowIndex: 3}))
	require.NoError(t, s.AddDirectionLight(DirectionLight{ID: 1, ShadowIndex: 2}))
	assert.Equal(t, NoShadow, s.PointLights()[0].ShadowIndex)
	assert.Equal(t, NoShadow, s.DirectionLights()[0].ShadowIndex)
}

func TestDuplicateLightIDs(t *testing.T) {
	s := NewScene()
	require.NoError(t, s.AddDirectionLight(DirectionLight{ID: 7, Color: mgl32.Vec3{1, 0, 0}}))
	assert.ErrorIs(t, s.AddDirectionLight(DirectionLight{ID: 7}), ErrDuplicateID)
	l, _ := s.DirectionLight(7)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, l.Color)

	// point and direction ids live in separate namespaces
	assert.NoError(t, s.AddPointLight(PointLight{ID: 7}))
}

func TestClear(t *testing.T) {
	s := NewScene()
	require.NoError(t, s.AddRenderItem(item(1, 1)))
	require.NoError(t, s.AddPointLight(PointLight{ID: 1}))
	require.NoError(t, s.AddDirectionLight(DirectionLight{ID: 1}))

	s.ClearRenderItems()
	s.ClearPointLights()
	s.ClearDirectionLights()

	assert.Empty(t, s.RenderItems())
	assert.Empty(t, s.PointLights())
	assert.Empty(t, s.DirectionLights())
	assert.NoError(t, s.AddRenderItem(item(1, 1)), "ids are free again after clear")
}
