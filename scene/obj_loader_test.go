package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `# quad
o quad
v -1 0 -1
v 1 0 -1
v 1 0 1
v -1 0 1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 4/4 3/3 2/2
o tri
v 0 2 0
v 1 2 0
v 0 3 0
vn 0 0 1
f -3//1 -2//1 -1//1
`

func writeOBJ(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "m.obj")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadOBJObjects(t *testing.T) {
	meshes, err := LoadModel(writeOBJ(t, quadOBJ))
	require.NoError(t, err)
	require.Len(t, meshes, 2)

	quad := meshes[0]
	assert.Equal(t, "quad", quad.Name)
	assert.Len(t, quad.Vertices, 4)
	assert.Equal(t, 6, quad.IndexCount(), "fan triangulated")
	for _, v := range quad.Vertices {
		assert.InDelta(t, 1.0, v.Normal.Y(), 1e-5, "generated normals face up")
	}
	assert.Equal(t, mgl32.Vec3{-1, 0, -1}, quad.Bounds.Min)
	assert.Equal(t, mgl32.Vec3{1, 0, 1}, quad.Bounds.Max)

	tri := meshes[1]
	assert.Equal(t, "tri", tri.Name)
	assert.Equal(t, 3, tri.IndexCount())
	assert.Equal(t, mgl32.Vec3{0, 2, 0}, tri.Vertices[0].Position, "negative index resolved")
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, tri.Vertices[0].Normal)
}

func TestParseFaceVertex(t *testing.T) {
	cases := []struct {
		tok  string
		want faceVertex
	}{
		{"3", faceVertex{2, -1, -1}},
		{"3/2", faceVertex{2, 1, -1}},
		{"3//1", faceVertex{2, -1, 0}},
		{"3/2/1", faceVertex{2, 1, 0}},
		{"-1/-1/-1", faceVertex{9, 4, 1}},
		{"x", faceVertex{-1, -1, -1}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, parseFaceVertex(c.tok, 10, 5, 2), c.tok)
	}
}

func TestLoadOBJEmpty(t *testing.T) {
	_, err := LoadOBJ(writeOBJ(t, "# nothing\nv 0 0 0\n"))
	assert.Error(t, err)
}

func TestLoadModelUnsupported(t *testing.T) {
	_, err := LoadModel("mesh.fbx")
	assert.Error(t, err)
}
