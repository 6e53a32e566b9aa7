package opengl

import (
	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/internal/pass"
	"pbr-engine/internal/resource"
)

// ── Shaders ───────────────────────────────────────────────────────────────────

const gbufferVertSrc = `
#version 430 core
layout(location = 0) in vec3 inPosition;
layout(location = 1) in vec3 inNormal;
layout(location = 2) in vec2 inUV;
layout(location = 3) in vec3 inTangent;
layout(location = 4) in vec3 inBitangent;

uniform mat4 model;
uniform mat4 prevModel;
uniform mat4 view;
uniform mat4 viewProj;       // jittered
uniform mat4 unjitteredViewProj;
uniform mat4 prevViewProj;   // unjittered, previous frame

out vec3 fragWorldPos;
out vec3 fragViewPos;
out vec2 fragUV;
out mat3 fragTBN;
out vec4 currClip;
out vec4 prevClip;

void main() {
    vec4 world = model * vec4(inPosition, 1.0);
    fragWorldPos = world.xyz;
    fragViewPos  = (view * world).xyz;
    fragUV       = inUV;

    mat3 normalMat = transpose(inverse(mat3(model)));
    vec3 N = normalize(normalMat * inNormal);
    vec3 T = normalize(normalMat * inTangent);
    T = normalize(T - dot(T, N) * N);
    vec3 B = cross(N, T);
    if (dot(B, normalMat * inBitangent) < 0.0) B = -B;
    fragTBN = mat3(T, B, N);

    currClip = unjitteredViewProj * world;
    prevClip = prevViewProj * (prevModel * vec4(inPosition, 1.0));
    gl_Position = viewProj * world;
}
` + "\x00"

const gbufferFragSrc = `
#version 430 core
in vec3 fragWorldPos;
in vec3 fragViewPos;
in vec2 fragUV;
in mat3 fragTBN;
in vec4 currClip;
in vec4 prevClip;

layout(location = 0) out vec4 gPositionAO;
layout(location = 1) out vec4 gAlbedoRoughness;
layout(location = 2) out vec4 gNormalMetallic;
layout(location = 3) out vec4 gViewPosition;
layout(location = 4) out vec4 gViewNormal;
layout(location = 5) out vec2 gVelocity;

uniform sampler2D albedoMap;
uniform sampler2D normalMap;
uniform sampler2D metallicMap;
uniform sampler2D roughnessMap;
uniform sampler2D aoMap;
uniform mat4 view;

void main() {
    vec3 albedo = pow(texture(albedoMap, fragUV).rgb, vec3(2.2));
    float metallic  = texture(metallicMap, fragUV).r;
    float roughness = texture(roughnessMap, fragUV).r;
    float ao        = texture(aoMap, fragUV).r;

    vec3 tn = texture(normalMap, fragUV).rgb * 2.0 - 1.0;
    vec3 N  = normalize(fragTBN * tn);

    gPositionAO      = vec4(fragWorldPos, ao);
    gAlbedoRoughness = vec4(albedo, roughness);
    gNormalMetallic  = vec4(N, metallic);
    // w = 1 marks covered pixels; the clear leaves 0.
    gViewPosition    = vec4(fragViewPos, 1.0);
    gViewNormal      = vec4(normalize(mat3(view) * N), 0.0);

    vec2 curr = currClip.xy / currClip.w;
    vec2 prev = prevClip.xy / prevClip.w;
    gVelocity = (curr - prev) * 0.5;
}
` + "\x00"

// ── G-buffer ──────────────────────────────────────────────────────────────────

// GBuffer holds the geometry pass attachments. The depth texture is shared
// with the lighting target so the skybox can depth test against it.
type GBuffer struct {
	FBO      uint32
	Targets  [pass.GBufferTargets]uint32
	DepthTex uint32

	width, height int32
	prog          *Program
}

// gbufferDraw is one render item resolved to GL handles.
type gbufferDraw struct {
	mesh      resource.MeshHandle
	textures  [5]uint32
	model     mgl32.Mat4
	prevModel mgl32.Mat4
}

// gbufferCamera carries the matrices the geometry pass needs.
type gbufferCamera struct {
	view         mgl32.Mat4
	viewProj     mgl32.Mat4
	unjittered   mgl32.Mat4
	prevViewProj mgl32.Mat4
}

var materialInputs = [5]string{pass.InAlbedo, pass.InNormal, pass.InMetallic, pass.InRoughness, pass.InAO}

func newGBuffer(width, height int) (*GBuffer, error) {
	prog, err := newProgram("gbuffer", gbufferVertSrc, gbufferFragSrc)
	if err != nil {
		return nil, err
	}
	prog.bindSamplers(&pass.GBuffer)
	g := &GBuffer{prog: prog}
	if err := g.alloc(width, height); err != nil {
		g.Destroy()
		return nil, err
	}
	return g, nil
}

func formatInternal(f pass.Format) int32 {
	switch f {
	case pass.FormatRG16F:
		return gl.RG16F
	case pass.FormatR16F:
		return gl.R16F
	case pass.FormatDepth32F:
		return gl.DEPTH_COMPONENT32F
	}
	return gl.RGBA16F
}

func (g *GBuffer) alloc(width, height int) error {
	g.width, g.height = int32(width), int32(height)

	gl.GenFramebuffers(1, &g.FBO)
	gl.BindFramebuffer(gl.FRAMEBUFFER, g.FBO)

	var drawBuffers [pass.GBufferTargets]uint32
	for i, ts := range pass.GBufferLayout {
		g.Targets[i] = newColorTarget(formatInternal(ts.Format), g.width, g.height)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0+uint32(i), gl.TEXTURE_2D, g.Targets[i], 0)
		drawBuffers[i] = gl.COLOR_ATTACHMENT0 + uint32(i)
	}
	gl.DrawBuffers(int32(len(drawBuffers)), &drawBuffers[0])

	g.DepthTex = newDepthTarget(g.width, g.height)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, g.DepthTex, 0)

	err := checkFramebuffer("gbuffer")
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return err
}

func (g *GBuffer) free() {
	deleteFramebuffers(&g.FBO)
	for i := range g.Targets {
		deleteTextures(&g.Targets[i])
	}
	deleteTextures(&g.DepthTex)
}

// Resize reallocates every attachment.
func (g *GBuffer) Resize(width, height int) error {
	g.free()
	return g.alloc(width, height)
}

// Target returns the texture of attachment t.
func (g *GBuffer) Target(t pass.GBufferTarget) uint32 { return g.Targets[t] }

func (g *GBuffer) target() target { return target{g.FBO, g.width, g.height} }

// Render fills every attachment. Each draw rebinds its own material units.
func (g *GBuffer) Render(exec *executor, cam gbufferCamera, draws []gbufferDraw) {
	exec.run(&pass.GBuffer, g.prog, g.target(), nil, func() {
		p := g.prog
		p.SetMat4("view", cam.view)
		p.SetMat4("viewProj", cam.viewProj)
		p.SetMat4("unjitteredViewProj", cam.unjittered)
		p.SetMat4("prevViewProj", cam.prevViewProj)
		for _, d := range draws {
			for i, name := range materialInputs {
				gl.ActiveTexture(gl.TEXTURE0 + uint32(pass.GBuffer.Unit(name)))
				gl.BindTexture(gl.TEXTURE_2D, d.textures[i])
			}
			p.SetMat4("model", d.model)
			p.SetMat4("prevModel", d.prevModel)
			drawMesh(d.mesh)
		}
	})
}

func (g *GBuffer) Destroy() {
	g.free()
	g.prog.Destroy()
}
