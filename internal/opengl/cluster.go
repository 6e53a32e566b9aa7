package opengl

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/internal/cluster"
	"pbr-engine/internal/config"
	"pbr-engine/internal/logger"
	"pbr-engine/internal/pass"
)

// cullGroupSize is the binner workgroup width and the shared-memory light
// batch length.
const cullGroupSize = 128

// countersSize is the byte size of the binner's cursor, overflow and
// cell-capped counters.
const countersSize = 12

// ClusterPass builds the cluster AABBs and bins point lights into them on
// the GPU.
type ClusterPass struct {
	grid     cluster.Grid
	capacity int

	buildProg *Program
	cullProg  *Program

	aabbs    *storageBuffer
	lights   *storageBuffer
	cells    *storageBuffer
	indices  *storageBuffer
	counters *storageBuffer

	builtProj  mgl32.Mat4
	built      bool
	dispatched bool

	// LastOverflow is the dropped-index count reported by the previous
	// dispatch. LastCellCapped counts lights dropped by the per-cell limit.
	LastOverflow   int
	LastCellCapped int
	cappedWarned   bool
	lightCount     int
}

// ── Shaders ───────────────────────────────────────────────────────────────────

const clusterCommonSrc = `
struct AABB {
    vec4 minPoint;
    vec4 maxPoint;
};
struct Light {
    vec3  position;
    int   shadowIdx;
    vec3  color;
    float radius;
};
struct LightGrid {
    uint offset;
    uint count;
};
`

// clusterBuildSrc computes one cell's view-space AABB per workgroup from the
// tile corners on the near plane, pushed out to the slice's depth planes.
const clusterBuildSrc = `
#version 430 core
layout(local_size_x = 1, local_size_y = 1, local_size_z = 1) in;
` + clusterCommonSrc + `
layout(std430, binding = 0) writeonly buffer ClusterAABBs { AABB clusters[]; };

uniform mat4  invProj;
uniform vec2  screenSize;
uniform float tileSize;
uniform float zNear;
uniform float zFar;
uniform uvec3 gridSize;

vec3 screenToView(vec2 screen) {
    vec4 ndc = vec4(screen / screenSize * 2.0 - 1.0, -1.0, 1.0);
    vec4 v   = invProj * ndc;
    return v.xyz / v.w;
}

vec3 intersectZPlane(vec3 p, float z) {
    return p * (z / p.z);
}

float sliceDepth(uint k) {
    return zNear * pow(zFar / zNear, float(k) / float(gridSize.z));
}

void main() {
    uvec3 id    = gl_WorkGroupID;
    uint  index = id.x + id.y * gridSize.x + id.z * gridSize.x * gridSize.y;

    vec3 minView = screenToView(vec2(id.xy) * tileSize);
    vec3 maxView = screenToView(vec2(id.xy + 1u) * tileSize);

    float nearZ = -sliceDepth(id.z);
    float farZ  = -sliceDepth(id.z + 1u);

    vec3 a = intersectZPlane(minView, nearZ);
    vec3 b = intersectZPlane(maxView, nearZ);
    vec3 c = intersectZPlane(minView, farZ);
    vec3 d = intersectZPlane(maxView, farZ);

    clusters[index].minPoint = vec4(min(min(a, b), min(c, d)), 0.0);
    clusters[index].maxPoint = vec4(max(max(a, b), max(c, d)), 0.0);
}
` + "\x00"

// clusterCullSrc bins unshadowed point lights. Each invocation owns one cell;
// the workgroup stages lights through shared memory in batches, then every
// cell claims its index range from the global cursor with atomicAdd.
var clusterCullSrc = fmt.Sprintf(`
#version 430 core
#define GROUP_SIZE %d
#define MAX_CELL_LIGHTS %d
layout(local_size_x = GROUP_SIZE) in;
`+clusterCommonSrc+`
layout(std430, binding = %d) readonly  buffer ClusterAABBs { AABB clusters[]; };
layout(std430, binding = %d) readonly  buffer Lights       { Light lights[]; };
layout(std430, binding = %d) writeonly buffer Grid         { LightGrid grid[]; };
layout(std430, binding = %d) writeonly buffer Indices      { uint lightIndices[]; };
layout(std430, binding = %d) buffer Counters {
    uint cursor;
    uint overflow;
    uint cellCapped;
};

uniform mat4 view;
uniform uint lightCount;
uniform uint clusterCount;
uniform uint capacity;

shared vec4 sharedSpheres[GROUP_SIZE];
shared int  sharedShadow[GROUP_SIZE];

bool sphereIntersectsAABB(vec4 sphere, AABB box) {
    vec3 c = sphere.xyz;
    vec3 d = max(box.minPoint.xyz - c, vec3(0.0)) + max(c - box.maxPoint.xyz, vec3(0.0));
    return dot(d, d) <= sphere.w * sphere.w;
}

void main() {
    uint cell   = gl_GlobalInvocationID.x;
    bool active = cell < clusterCount;

    AABB box;
    if (active) box = clusters[cell];

    uint visible[MAX_CELL_LIGHTS];
    uint count = 0u;
    uint total = 0u;

    for (uint base = 0u; base < lightCount; base += GROUP_SIZE) {
        uint li = base + gl_LocalInvocationIndex;
        if (li < lightCount) {
            Light l = lights[li];
            sharedSpheres[gl_LocalInvocationIndex] = vec4((view * vec4(l.position, 1.0)).xyz, l.radius);
            sharedShadow[gl_LocalInvocationIndex]  = l.shadowIdx;
        }
        barrier();

        uint batch = min(uint(GROUP_SIZE), lightCount - base);
        if (active) {
            for (uint j = 0u; j < batch; j++) {
                if (sharedShadow[j] >= 0) continue;
                if (sphereIntersectsAABB(sharedSpheres[j], box)) {
                    if (count < MAX_CELL_LIGHTS) visible[count++] = base + j;
                    total++;
                }
            }
        }
        barrier();
    }

    if (!active) return;

    if (total > count) atomicAdd(cellCapped, total - count);

    uint offset = atomicAdd(cursor, count);
    uint stored = count;
    if (offset >= capacity) {
        stored = 0u;
    } else if (offset + stored > capacity) {
        stored = capacity - offset;
    }
    if (stored < count) atomicAdd(overflow, count - stored);

    for (uint i = 0u; i < stored; i++) {
        lightIndices[offset + i] = visible[i];
    }
    grid[cell] = LightGrid(offset, stored);
}
`+"\x00",
	cullGroupSize, cluster.MaxCellLights,
	pass.BindingClusterAABBs, pass.BindingLights, pass.BindingLightGrid,
	pass.BindingLightIndices, pass.BindingCounters)

// ── Constructor ───────────────────────────────────────────────────────────────

func newClusterPass(cfg config.Config) (*ClusterPass, error) {
	build, err := newComputeProgram("cluster build", clusterBuildSrc)
	if err != nil {
		return nil, err
	}
	cull, err := newComputeProgram("cluster cull", clusterCullSrc)
	if err != nil {
		build.Destroy()
		return nil, err
	}

	c := &ClusterPass{
		buildProg: build,
		cullProg:  cull,
		capacity:  cfg.Cluster.IndexCapacity,
		lights:    newStorageBuffer(pass.BindingLights, 0),
		counters:  newStorageBuffer(pass.BindingCounters, countersSize),
		indices:   newStorageBuffer(pass.BindingLightIndices, cfg.Cluster.IndexCapacity*4),
	}
	c.Resize(cfg)
	return c, nil
}

// Resize rebuilds the grid for new viewport or cluster settings.
func (c *ClusterPass) Resize(cfg config.Config) {
	c.grid = cluster.NewGrid(cluster.Params{
		Width:    cfg.Width,
		Height:   cfg.Height,
		TileSize: cfg.Cluster.TileSize,
		Slices:   cfg.Cluster.Slices,
		ZNear:    cfg.ZNear,
		ZFar:     cfg.ZFar,
	})
	n := c.grid.Count()
	if c.aabbs == nil {
		c.aabbs = newStorageBuffer(pass.BindingClusterAABBs, n*int(unsafe.Sizeof(cluster.AABB{})))
		c.cells = newStorageBuffer(pass.BindingLightGrid, n*int(unsafe.Sizeof(cluster.LightGrid{})))
	} else {
		c.aabbs.alloc(n * int(unsafe.Sizeof(cluster.AABB{})))
		c.cells.alloc(n * int(unsafe.Sizeof(cluster.LightGrid{})))
	}
	c.built = false
}

func (c *ClusterPass) Grid() cluster.Grid { return c.grid }
func (c *ClusterPass) Capacity() int      { return c.capacity }

// ── Stage one: AABBs ──────────────────────────────────────────────────────────

// Build recomputes the cell bounds when proj differs from the last build.
// The depth slices follow proj's near and far planes.
func (c *ClusterPass) Build(proj mgl32.Mat4) {
	if c.built && proj.ApproxEqual(c.builtProj) {
		return
	}
	// Slice between the camera's own planes; the config values are only a
	// fallback for non-perspective matrices.
	if near, far, ok := cluster.ClipPlanes(proj); ok {
		c.grid = c.grid.WithPlanes(near, far)
	}
	g := c.grid
	p := c.buildProg
	p.Use()
	p.SetMat4("invProj", proj.Inv())
	p.SetVec2("screenSize", mgl32.Vec2{float32(g.Width), float32(g.Height)})
	p.SetFloat("tileSize", float32(g.TileSize))
	p.SetFloat("zNear", g.ZNear)
	p.SetFloat("zFar", g.ZFar)
	gl.Uniform3ui(p.Loc("gridSize"), uint32(g.TilesX), uint32(g.TilesY), uint32(g.Slices))

	c.aabbs.bind()
	gl.DispatchCompute(uint32(g.TilesX), uint32(g.TilesY), uint32(g.Slices))
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)

	c.builtProj = proj
	c.built = true
	logger.Logger().Debug("cluster grid built", "tiles_x", g.TilesX, "tiles_y", g.TilesY, "slices", g.Slices)
}

// ── Stage two: binning ────────────────────────────────────────────────────────

// Bin uploads lights and dispatches the binner. The counters written by the
// previous dispatch are read first; an overflow grows the index buffer
// before this frame runs.
func (c *ClusterPass) Bin(view mgl32.Mat4, lights []cluster.Light) {
	if c.dispatched {
		c.collectOverflow()
	}

	size := len(lights) * int(unsafe.Sizeof(cluster.Light{}))
	if size > 0 {
		c.lights.upload(unsafe.Pointer(&lights[0]), size)
	}
	c.lightCount = len(lights)

	zero := [3]uint32{}
	c.counters.upload(unsafe.Pointer(&zero[0]), countersSize)

	p := c.cullProg
	p.Use()
	p.SetMat4("view", view)
	p.SetUint("lightCount", uint32(len(lights)))
	p.SetUint("clusterCount", uint32(c.grid.Count()))
	p.SetUint("capacity", uint32(c.capacity))

	c.bindAll()
	groups := (c.grid.Count() + cullGroupSize - 1) / cullGroupSize
	gl.DispatchCompute(uint32(groups), 1, 1)
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
	c.dispatched = true
}

// collectOverflow reads the previous dispatch's counters. The index buffer
// only grows when the cursor ran past it; per-cell drops are reported once.
func (c *ClusterPass) collectOverflow() {
	var counters [3]uint32
	c.counters.read(unsafe.Pointer(&counters[0]), countersSize)
	required, overflow, capped := int(counters[0]), int(counters[1]), int(counters[2])
	c.LastOverflow = overflow
	c.LastCellCapped = capped

	if capped > 0 && !c.cappedWarned {
		logger.Logger().Warn("cluster cell light limit reached",
			"dropped", capped, "limit", cluster.MaxCellLights)
		c.cappedWarned = true
	}
	if overflow == 0 {
		return
	}
	grown := cluster.GrowCapacity(c.capacity, required)
	if grown <= c.capacity {
		return
	}
	logger.Logger().Warn("cluster index overflow",
		"dropped", overflow, "required", required, "capacity", c.capacity, "grown", grown)
	c.capacity = grown
	c.indices.alloc(grown * 4)
}

// bindAll binds every cluster buffer for the binner or the lighting pass.
func (c *ClusterPass) bindAll() {
	c.aabbs.bind()
	c.lights.bind()
	c.cells.bind()
	c.indices.bind()
	c.counters.bind()
}

// ── Validation ────────────────────────────────────────────────────────────────

// Validate reads the GPU grid back and compares it with the CPU binner run
// on the GPU's own AABBs. It returns the number of cells whose light sets
// differ. Only meaningful right after Bin, before the next frame's lights
// are uploaded.
func (c *ClusterPass) Validate(view mgl32.Mat4, lights []cluster.Light) (int, error) {
	if !c.dispatched {
		return 0, fmt.Errorf("cluster: nothing dispatched yet")
	}
	n := c.grid.Count()
	cells := make([]cluster.AABB, n)
	c.aabbs.read(unsafe.Pointer(&cells[0]), n*int(unsafe.Sizeof(cluster.AABB{})))
	grid := make([]cluster.LightGrid, n)
	c.cells.read(unsafe.Pointer(&grid[0]), n*int(unsafe.Sizeof(cluster.LightGrid{})))
	indices := make([]uint32, c.capacity)
	c.indices.read(unsafe.Pointer(&indices[0]), c.capacity*4)

	want := cluster.Bin(cells, lights, view, c.capacity)
	if want.Overflow > 0 {
		return 0, fmt.Errorf("cluster: validation needs capacity %d", c.capacity+want.Overflow)
	}

	mismatched := 0
	for i := range grid {
		got := indexSet(indices, grid[i])
		exp := want.Lights(i)
		if len(got) != len(exp) {
			mismatched++
			continue
		}
		for _, li := range exp {
			if !got[li] {
				mismatched++
				break
			}
		}
	}
	return mismatched, nil
}

func indexSet(indices []uint32, g cluster.LightGrid) map[uint32]bool {
	set := make(map[uint32]bool, g.Count)
	end := min(int(g.Offset+g.Count), len(indices))
	for i := int(g.Offset); i < end; i++ {
		set[indices[i]] = true
	}
	return set
}

func (c *ClusterPass) Destroy() {
	c.buildProg.Destroy()
	c.cullProg.Destroy()
	for _, b := range []*storageBuffer{c.aabbs, c.lights, c.cells, c.indices, c.counters} {
		b.Destroy()
	}
}
