package scene

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/core"
)

// objFace is an already-triangulated face (three vertex references).
type objFace struct {
	vIdx, vtIdx, vnIdx [3]int // 0-based position / UV / normal indices (-1 = absent)
}

// LoadOBJ parses a Wavefront .obj file and returns one Mesh per object/group.
// Material libraries are ignored.
func LoadOBJ(path string) ([]*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj %q: %w", path, err)
	}
	defer f.Close()

	var positions []mgl32.Vec3
	var normals []mgl32.Vec3
	var uvs []mgl32.Vec2

	type objObject struct {
		name  string
		faces []objFace
	}

	var objects []objObject
	cur := &objObject{name: "default"}

	parseVec := func(fields []string, n int) []float32 {
		out := make([]float32, n)
		for i := 0; i < n && i+1 < len(fields); i++ {
			v, _ := strconv.ParseFloat(fields[i+1], 32)
			out[i] = float32(v)
		}
		return out
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				continue
			}
			p := parseVec(fields, 3)
			positions = append(positions, mgl32.Vec3{p[0], p[1], p[2]})

		case "vn":
			if len(fields) < 4 {
				continue
			}
			n := parseVec(fields, 3)
			normals = append(normals, mgl32.Vec3{n[0], n[1], n[2]})

		case "vt":
			if len(fields) < 3 {
				continue
			}
			t := parseVec(fields, 2)
			uvs = append(uvs, mgl32.Vec2{t[0], t[1]})

		case "o", "g":
			if len(cur.faces) > 0 {
				objects = append(objects, *cur)
			}
			name := "default"
			if len(fields) > 1 {
				name = fields[1]
			}
			cur = &objObject{name: name}

		case "f":
			if len(fields) < 4 {
				continue
			}
			var fverts []faceVertex
			for _, tok := range fields[1:] {
				fverts = append(fverts, parseFaceVertex(tok, len(positions), len(uvs), len(normals)))
			}
			// Fan triangulation: 0-1-2, 0-2-3, 0-3-4, ...
			for i := 1; i+1 < len(fverts); i++ {
				f0, f1, f2 := fverts[0], fverts[i], fverts[i+1]
				cur.faces = append(cur.faces, objFace{
					vIdx:  [3]int{f0.v, f1.v, f2.v},
					vtIdx: [3]int{f0.vt, f1.vt, f2.vt},
					vnIdx: [3]int{f0.vn, f1.vn, f2.vn},
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan obj: %w", err)
	}

	if len(cur.faces) > 0 {
		objects = append(objects, *cur)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("no geometry found in %q", path)
	}

	meshes := make([]*Mesh, 0, len(objects))
	for _, obj := range objects {
		meshes = append(meshes, buildMeshFromOBJ(obj.name, obj.faces, positions, normals, uvs))
	}
	return meshes, nil
}

type faceVertex struct{ v, vt, vn int }

// parseFaceVertex parses one face vertex token: "v", "v/vt", "v//vn", "v/vt/vn".
// Returns 0-based indices (-1 if absent). Negative OBJ indices are relative to
// the current end of each pool.
func parseFaceVertex(tok string, nv, nvt, nvn int) faceVertex {
	parseIdx := func(s string, count int) int {
		if s == "" {
			return -1
		}
		n, err := strconv.Atoi(s)
		switch {
		case err != nil || n == 0:
			return -1
		case n > 0:
			return n - 1
		default:
			return count + n
		}
	}
	parts := strings.Split(tok, "/")
	res := faceVertex{v: -1, vt: -1, vn: -1}
	if len(parts) > 0 {
		res.v = parseIdx(parts[0], nv)
	}
	if len(parts) > 1 {
		res.vt = parseIdx(parts[1], nvt)
	}
	if len(parts) > 2 {
		res.vn = parseIdx(parts[2], nvn)
	}
	return res
}

// buildMeshFromOBJ converts parsed face data into a deduplicated Mesh.
func buildMeshFromOBJ(name string, faces []objFace, positions, normals []mgl32.Vec3, uvs []mgl32.Vec2) *Mesh {
	vertMap := map[faceVertex]uint32{}
	var vertices []core.Vertex
	var indices []uint32

	at := func(i, n int) bool { return i >= 0 && i < n }
	hasNormals := len(normals) > 0

	for _, face := range faces {
		for c := 0; c < 3; c++ {
			k := faceVertex{face.vIdx[c], face.vtIdx[c], face.vnIdx[c]}
			if idx, ok := vertMap[k]; ok {
				indices = append(indices, idx)
				continue
			}
			v := core.Vertex{Normal: mgl32.Vec3{0, 1, 0}}
			if at(k.v, len(positions)) {
				v.Position = positions[k.v]
			}
			if at(k.vn, len(normals)) {
				v.Normal = normals[k.vn]
			}
			if at(k.vt, len(uvs)) {
				v.UV = uvs[k.vt]
			}
			idx := uint32(len(vertices))
			vertices = append(vertices, v)
			vertMap[k] = idx
			indices = append(indices, idx)
		}
	}

	if !hasNormals {
		generateNormals(vertices, indices)
	}

	m := CreateMeshFromData(name, vertices, indices)
	ComputeTangents(m)
	return m
}

// generateNormals computes area-weighted normals and writes them to the vertex slice.
func generateNormals(vertices []core.Vertex, indices []uint32) {
	accum := make([]mgl32.Vec3, len(vertices))

	tri := func(i0, i1, i2 uint32) {
		v0 := vertices[i0].Position
		v1 := vertices[i1].Position
		v2 := vertices[i2].Position
		n := v1.Sub(v0).Cross(v2.Sub(v0))
		accum[i0] = accum[i0].Add(n)
		accum[i1] = accum[i1].Add(n)
		accum[i2] = accum[i2].Add(n)
	}
	if len(indices) > 0 {
		for i := 0; i+2 < len(indices); i += 3 {
			tri(indices[i], indices[i+1], indices[i+2])
		}
	} else {
		for i := 0; i+2 < len(vertices); i += 3 {
			tri(uint32(i), uint32(i+1), uint32(i+2))
		}
	}
	for i := range vertices {
		if accum[i].LenSqr() > 0 {
			vertices[i].Normal = accum[i].Normalize()
		}
	}
}
