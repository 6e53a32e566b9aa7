package opengl

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/core"
	"pbr-engine/internal/cluster"
	"pbr-engine/internal/config"
	"pbr-engine/internal/frame"
	"pbr-engine/internal/logger"
	"pbr-engine/internal/pass"
	"pbr-engine/internal/resource"
)

// passes is every GPU object the renderer owns. It is created and destroyed
// as a unit so Reload can rebuild it without touching resources.
type passes struct {
	exec     *executor
	cube     *unitCube
	clusters *ClusterPass
	shadows  *ShadowPass
	gbuffer  *GBuffer
	ssao     *SSAO
	lighting *LightingPass
	skybox   *Skybox
	ibl      *IBL
	taa      *TAABuffers
	present  *Present
}

func newPasses(cfg config.Config) (p *passes, err error) {
	p = &passes{exec: newExecutor(), cube: newUnitCube()}
	defer func() {
		if err != nil {
			p.Destroy()
			p = nil
		}
	}()

	if p.clusters, err = newClusterPass(cfg); err != nil {
		return
	}
	if p.shadows, err = newShadowPass(cfg.Shadow); err != nil {
		return
	}
	if p.gbuffer, err = newGBuffer(cfg.Width, cfg.Height); err != nil {
		return
	}
	if p.ssao, err = NewSSAO(cfg.SSAO, cfg.Width, cfg.Height); err != nil {
		return
	}
	if p.lighting, err = newLightingPass(); err != nil {
		return
	}
	if p.skybox, err = NewSkybox(p.cube); err != nil {
		return
	}
	if p.ibl, err = newIBL(cfg.IBL, p.cube); err != nil {
		return
	}
	if p.taa, err = newTAABuffers(cfg.Width, cfg.Height, p.gbuffer.DepthTex); err != nil {
		return
	}
	p.present, err = newPresent(cfg.Exposure)
	return
}

func (p *passes) Destroy() {
	if p.present != nil {
		p.present.Destroy()
	}
	if p.taa != nil {
		p.taa.Destroy()
	}
	if p.ibl != nil {
		p.ibl.Destroy()
	}
	if p.skybox != nil {
		p.skybox.Destroy()
	}
	if p.lighting != nil {
		p.lighting.Destroy()
	}
	if p.ssao != nil {
		p.ssao.Destroy()
	}
	if p.gbuffer != nil {
		p.gbuffer.Destroy()
	}
	if p.shadows != nil {
		p.shadows.Destroy()
	}
	if p.clusters != nil {
		p.clusters.Destroy()
	}
	p.cube.Destroy()
	p.exec.Destroy()
}

// skyMaps are the resource ids behind the IBL textures. The cubes and the
// LUT are reallocated only when the IBL sizes change; a new sky swaps just
// the equirect source.
type skyMaps struct {
	equirect    uint64
	environment uint64
	irradiance  uint64
	prefilter   uint64
	brdf        uint64
}

// materialDefaults stand in for material ids that are 0 or failed to load.
type materialDefaults [5]uint64

// Renderer is the clustered-deferred frame renderer. It must be created,
// used and destroyed on the thread that owns the GL context.
type Renderer struct {
	cfg       config.Config
	resources *resource.Manager
	scene     *frame.Scene
	taa       *frame.TAA
	gpu       *passes

	view, proj   mgl32.Mat4
	camPos       mgl32.Vec3
	prevViewProj mgl32.Mat4
	hasPrev      bool

	skyPath  string
	sky      skyMaps
	defaults materialDefaults

	clusterLights []cluster.Light
	stats         frame.Stats
}

// NewRenderer initialises GL and creates every pass. cfg must be valid.
func NewRenderer(cfg config.Config) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, d := range pass.All() {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	logger.Logger().Info("renderer init",
		"gl", gl.GoStr(gl.GetString(gl.VERSION)),
		"width", cfg.Width, "height", cfg.Height)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.TEXTURE_CUBE_MAP_SEAMLESS)

	gpu, err := newPasses(cfg)
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		cfg:       cfg,
		resources: resource.NewManager(backend{}),
		scene:     frame.NewScene(),
		taa:       frame.NewTAA(cfg.TAA.BlendRatio, cfg.TAA.JitterStrength),
		gpu:       gpu,
		view:      mgl32.Ident4(),
		proj:      mgl32.Ident4(),
	}
	rm := r.resources
	r.defaults = materialDefaults{
		rm.GenSolidTexture(core.ColorWhite),
		rm.GenSolidTexture(core.ColorFlatNormal),
		rm.GenSolidTexture(core.ColorBlack),
		rm.GenSolidTexture(core.Color{R: 0.5, G: 0.5, B: 0.5, A: 1}),
		rm.GenSolidTexture(core.ColorWhite),
	}
	r.sky = newSkyMaps(rm, cfg.IBL)
	return r, nil
}

func newSkyMaps(rm *resource.Manager, cfg config.IBLConfig) skyMaps {
	return skyMaps{
		environment: rm.GenTextureCube(cfg.SkyboxSize, 3, true, true),
		irradiance:  rm.GenTextureCube(cfg.IrradianceSize, 3, true, false),
		prefilter:   rm.GenTextureCube(cfg.PrefilterSize, 3, true, true),
		brdf:        rm.GenTexture2D(cfg.BRDFSize, cfg.BRDFSize, 2, true),
	}
}

// resize reallocates the procedural IBL targets at the sizes in cfg. The
// equirect source is kept.
func (m *skyMaps) resize(rm *resource.Manager, cfg config.IBLConfig) {
	for _, id := range []uint64{m.environment, m.irradiance, m.prefilter, m.brdf} {
		_ = rm.Release(id)
	}
	equirect := m.equirect
	*m = newSkyMaps(rm, cfg)
	m.equirect = equirect
}

// Resources is the manager every render item id refers to.
func (r *Renderer) Resources() *resource.Manager { return r.resources }

// Config returns the active configuration.
func (r *Renderer) Config() config.Config { return r.cfg }

// Stats describes the last rendered frame.
func (r *Renderer) Stats() frame.Stats { return r.stats }

// ── Environment ───────────────────────────────────────────────────────────────

// SetPbrSkyBox sets the equirectangular HDR environment. An empty path turns
// image-based lighting and the skybox off. PrepareRender must run before the
// new sky is used.
func (r *Renderer) SetPbrSkyBox(path string) {
	if path == r.skyPath {
		return
	}
	r.skyPath = path
	r.gpu.ibl.Reset()
	r.sky.equirect = 0
	if path != "" {
		r.sky.equirect = r.resources.GenTexture2DFromFile(path,
			resource.WithHDR(true), resource.WithFlipVertical(true), resource.WithMipmap(false))
	}
}

// PrepareRender runs the IBL precompute for the current sky. A sky that
// fails to load leaves IBL off and returns the error; rendering still works.
func (r *Renderer) PrepareRender() error {
	if r.sky.equirect == 0 || r.gpu.ibl.Ready() {
		return nil
	}
	rm := r.resources
	src := rm.Texture2D(r.sky.equirect, true)
	if src == nil || src.Handle == 0 {
		return fmt.Errorf("environment %q: not loaded", r.skyPath)
	}
	maps := iblMaps{equirect: src.Handle}
	for _, c := range []struct {
		dst *uint32
		id  uint64
	}{
		{&maps.environment, r.sky.environment},
		{&maps.irradiance, r.sky.irradiance},
		{&maps.prefilter, r.sky.prefilter},
	} {
		if cube := rm.TextureCube(c.id, true); cube != nil {
			*c.dst = cube.Handle
		}
	}
	if lut := rm.Texture2D(r.sky.brdf, true); lut != nil {
		maps.brdf = lut.Handle
	}
	if err := r.gpu.ibl.Compute(r.gpu.exec, maps); err != nil {
		return fmt.Errorf("environment %q: %w", r.skyPath, err)
	}
	return nil
}

// ── Camera ────────────────────────────────────────────────────────────────────

// SetCameraTrans sets this frame's camera. It must be called before every
// DoRender; without it the last matrices (identity at start) are reused.
func (r *Renderer) SetCameraTrans(view, projection mgl32.Mat4, pos mgl32.Vec3) {
	r.view, r.proj, r.camPos = view, projection, pos
}

// ── Scene mutation ────────────────────────────────────────────────────────────

func (r *Renderer) AddRenderItem(item frame.RenderItem) error { return r.scene.AddRenderItem(item) }
func (r *Renderer) DelRenderItem(id uint64) error             { return r.scene.DelRenderItem(id) }
func (r *Renderer) ClearRenderItem()                          { r.scene.ClearRenderItems() }

func (r *Renderer) AddPointLight(l frame.PointLight) error { return r.scene.AddPointLight(l) }
func (r *Renderer) DelPointLight(id uint64) error          { return r.scene.DelPointLight(id) }
func (r *Renderer) ClearPointLight()                       { r.scene.ClearPointLights() }

func (r *Renderer) AddDirectionLight(l frame.DirectionLight) error {
	return r.scene.AddDirectionLight(l)
}
func (r *Renderer) DelDirectionLight(id uint64) error { return r.scene.DelDirectionLight(id) }
func (r *Renderer) ClearDirectionLight()              { r.scene.ClearDirectionLights() }

// Scene exposes the registered items and lights, e.g. to read shadow slots
// after a frame.
func (r *Renderer) Scene() *frame.Scene { return r.scene }

// ── Options ───────────────────────────────────────────────────────────────────

// SetOptions applies the runtime knobs. Nothing is reallocated.
func (r *Renderer) SetOptions(rt config.Runtime) {
	r.cfg = r.cfg.WithRuntime(rt)
	r.taa.BlendRatio = r.cfg.TAA.BlendRatio
	r.taa.JitterStrength = r.cfg.TAA.JitterStrength
	r.gpu.present.Exposure = r.cfg.Exposure
}

// Resize reallocates every screen-sized target and rebuilds the cluster
// grid. TAA history is dropped.
func (r *Renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("resize %dx%d: %w", width, height, config.ErrInvalid)
	}
	r.cfg.Width, r.cfg.Height = width, height
	g := r.gpu
	if err := g.gbuffer.Resize(width, height); err != nil {
		return err
	}
	if err := g.ssao.Resize(width, height); err != nil {
		return err
	}
	if err := g.taa.Resize(width, height, g.gbuffer.DepthTex); err != nil {
		return err
	}
	g.clusters.Resize(r.cfg)
	r.taa.Reset()
	logger.Logger().Debug("renderer resized", "width", width, "height", height)
	return nil
}

// Reload destroys every pass and re-creates them from cfg. Resources,
// registered items and lights survive; the sky must be prepared again.
func (r *Renderer) Reload(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	gpu, err := newPasses(cfg)
	if err != nil {
		return err
	}
	r.gpu.Destroy()
	r.gpu = gpu
	if cfg.IBL != r.cfg.IBL {
		r.sky.resize(r.resources, cfg.IBL)
	}
	r.cfg = cfg
	r.taa = frame.NewTAA(cfg.TAA.BlendRatio, cfg.TAA.JitterStrength)
	r.hasPrev = false
	logger.Logger().Info("renderer reloaded")
	return r.PrepareRender()
}

// ── Frame ─────────────────────────────────────────────────────────────────────

// resolveTexture returns the GL handle of a 2D texture id, or of fallback
// when id is 0 or did not load.
func (r *Renderer) resolveTexture(id, fallback uint64) uint32 {
	if id != 0 {
		if t := r.resources.Texture2D(id, true); t != nil && t.Handle != 0 {
			return t.Handle
		}
	}
	if t := r.resources.Texture2D(fallback, true); t != nil {
		return t.Handle
	}
	return 0
}

// collectDraws loads every item's model and material on first use.
func (r *Renderer) collectDraws() ([]gbufferDraw, []shadowCaster) {
	var draws []gbufferDraw
	var casters []shadowCaster
	for _, item := range r.scene.RenderItems() {
		model := r.resources.Model(item.Mesh, true)
		if model == nil || len(model.Meshes) == 0 {
			continue
		}
		var textures [5]uint32
		for i, id := range [5]uint64{item.Albedo, item.Normal, item.Metallic, item.Roughness, item.AO} {
			textures[i] = r.resolveTexture(id, r.defaults[i])
		}
		for _, mesh := range model.Meshes {
			draws = append(draws, gbufferDraw{
				mesh:      mesh,
				textures:  textures,
				model:     item.Transform,
				prevModel: item.LastTransform,
			})
			casters = append(casters, shadowCaster{mesh: mesh, model: item.Transform})
		}
	}
	return draws, casters
}

// DoRender runs every pass for one frame and presents to the default
// framebuffer. The pass order is fixed: each pass reads what the previous
// ones wrote.
func (r *Renderer) DoRender() {
	g := r.gpu
	cfg := r.cfg

	viewProj := r.proj.Mul4(r.view)
	if !r.hasPrev {
		r.prevViewProj = viewProj
	}
	jitteredProj := frame.JitterProjection(r.proj, r.taa.NDCJitter(cfg.Width, cfg.Height))

	// 1-2. Cluster AABBs (on projection change) and binning.
	points := r.scene.PointLights()
	dirs := r.scene.DirectionLights()
	usedPoint, usedDir := frame.AssignShadowSlots(points, dirs, cfg.Shadow)
	in := frame.BuildLighting(r.scene, g.ibl.Ready(), cfg.SSAO.Enabled)
	in.SetFlatAmbient(cfg.Ambient)
	g.clusters.Build(r.proj)
	g.clusters.Bin(r.view, in.ClusterLights)
	r.clusterLights = in.ClusterLights

	draws, casters := r.collectDraws()

	// 3. Shadows.
	if usedPoint+usedDir > 0 {
		g.shadows.Render(g.exec, points, dirs, casters)
	}

	// 4. Geometry.
	g.gbuffer.Render(g.exec, gbufferCamera{
		view:         r.view,
		viewProj:     jitteredProj.Mul4(r.view),
		unjittered:   viewProj,
		prevViewProj: r.prevViewProj,
	}, draws)

	// 5. Ambient occlusion.
	if in.SSAO {
		g.ssao.RunPasses(g.exec, g.gbuffer, jitteredProj)
	} else {
		g.ssao.Clear()
	}

	// 6. Lighting into the jittered target.
	current := g.taa.currentTarget()
	g.lighting.Render(g.exec, current, g.gbuffer, lightingFrame{
		inputs:   in,
		camPos:   r.camPos,
		shadow:   cfg.Shadow,
		ssaoTex:  g.ssao.BlurTex,
		ibl:      g.ibl,
		shadows:  g.shadows,
		clusters: g.clusters,
	})

	// 7. Skybox behind everything drawn.
	if g.ibl.Ready() {
		g.skybox.Draw(g.exec, current, r.view, jitteredProj, g.ibl.Environment)
	}

	// 8-9. Temporal resolve and present.
	g.taa.Resolve(g.exec, r.taa, g.gbuffer.Target(pass.GVelocity))
	g.present.Blit(g.exec, g.taa.Resolved, cfg.Width, cfg.Height)

	r.stats = frame.Stats{
		Frame:             r.taa.Frame(),
		Items:             len(r.scene.RenderItems()),
		PointLights:       len(points),
		DirectionLights:   len(dirs),
		ShadowedPoint:     usedPoint,
		ShadowedDirection: usedDir,
		ClusteredLights:   in.Clustered,
		ClusterOverflow:   g.clusters.LastOverflow,
		ClusterCellCapped: g.clusters.LastCellCapped,
		ClusterCapacity:   g.clusters.Capacity(),
	}
	r.prevViewProj = viewProj
	r.hasPrev = true
	r.taa.Advance()
}

// ValidateClusters compares the GPU light grid of the last frame with the
// CPU binner and returns the number of mismatched cells.
func (r *Renderer) ValidateClusters() (int, error) {
	if !r.hasPrev {
		return 0, errors.New("no frame rendered yet")
	}
	return r.gpu.clusters.Validate(r.view, r.clusterLights)
}

// Destroy releases every GPU object and resource handle.
func (r *Renderer) Destroy() {
	r.gpu.Destroy()
	r.resources.Close()
	logger.Logger().Info("renderer destroyed")
}
