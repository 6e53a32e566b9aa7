package opengl

import (
	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/internal/config"
	"pbr-engine/internal/frame"
	"pbr-engine/internal/pass"
)

// SSAO computes screen-space ambient occlusion from the G-buffer view-space
// position and normal, then box-blurs it into BlurTex for the lighting pass.
type SSAO struct {
	// aoFBO/aoTex: raw per-pixel occlusion (R16F, full-res)
	aoFBO uint32
	aoTex uint32

	// blurFBO/BlurTex: box-blurred occlusion sampled by lighting
	blurFBO uint32
	BlurTex uint32

	width, height int32

	ssaoProg *Program
	blurProg *Program

	// 4×4 rotation noise texture
	noiseTex uint32

	kernel []mgl32.Vec3
	Radius float32
	Bias   float32
}

// ── Shaders ───────────────────────────────────────────────────────────────────

// ssaoFragSrc accumulates hemisphere occlusion around each G-buffer sample
// using a precomputed kernel rotated by the tiled noise texture.
const ssaoFragSrc = `
#version 430 core
in  vec2 fragUV;
out float outAO;

uniform sampler2D gViewPosition;
uniform sampler2D gViewNormal;
uniform sampler2D noiseMap;
uniform vec3  kernel[64];
uniform int   kernelSize;
uniform mat4  proj;
uniform float radius;
uniform float bias;
uniform vec2  noiseScale;     // vec2(screenW/4, screenH/4) for tiling

void main() {
    vec4 P = texture(gViewPosition, fragUV);
    // Background pixels are never written by the geometry pass.
    if (P.w == 0.0) { outAO = 1.0; return; }

    vec3 pos = P.xyz;
    vec3 N   = normalize(texture(gViewNormal, fragUV).xyz);

    vec3 rnd = texture(noiseMap, fragUV * noiseScale).xyz;
    rnd.z = 0.0;

    // Gram-Schmidt TBN to rotate the kernel to the surface hemisphere
    vec3 T   = normalize(rnd - N * dot(rnd, N));
    vec3 B   = cross(N, T);
    mat3 TBN = mat3(T, B, N);

    float occ = 0.0;
    for (int i = 0; i < kernelSize; i++) {
        vec3 s = pos + TBN * kernel[i] * radius;

        vec4 off = proj * vec4(s, 1.0);
        off.xyz /= off.w;
        vec2 suv = clamp(off.xy * 0.5 + 0.5, 0.001, 0.999);

        vec4 geo = texture(gViewPosition, suv);
        if (geo.w == 0.0) continue;

        // Range check prevents occlusion from distant geometry
        float rng = smoothstep(0.0, 1.0, radius / max(abs(pos.z - geo.z), 0.0001));

        // View space looks down -Z: larger z is closer to the camera.
        occ += (geo.z >= s.z + bias ? 1.0 : 0.0) * rng;
    }

    outAO = 1.0 - occ / float(kernelSize);
}
` + "\x00"

// ssaoBlurFragSrc applies a 4×4 box blur matching the noise tile.
const ssaoBlurFragSrc = `
#version 430 core
in  vec2 fragUV;
out float outAO;

uniform sampler2D sourceMap;

void main() {
    vec2 texel  = 1.0 / vec2(textureSize(sourceMap, 0));
    float result = 0.0;
    for (int x = -2; x < 2; x++) {
        for (int y = -2; y < 2; y++) {
            result += texture(sourceMap, fragUV + vec2(x, y) * texel).r;
        }
    }
    outAO = result / 16.0;
}
` + "\x00"

// ── Constructor ───────────────────────────────────────────────────────────────

// NewSSAO creates the SSAO shaders, kernel, noise texture, and output FBOs.
func NewSSAO(cfg config.SSAOConfig, width, height int) (*SSAO, error) {
	s := &SSAO{
		kernel: frame.SSAOKernel(cfg.KernelSize, 42),
		Radius: cfg.Radius,
		Bias:   cfg.Bias,
	}

	var err error
	if s.ssaoProg, err = newProgram("ssao", ppVertSrc, ssaoFragSrc); err != nil {
		return nil, err
	}
	if s.blurProg, err = newProgram("ssao blur", ppVertSrc, ssaoBlurFragSrc); err != nil {
		s.Destroy()
		return nil, err
	}
	s.ssaoProg.bindSamplers(&pass.SSAO)
	s.blurProg.bindSamplers(&pass.SSAOBlur)

	s.generateNoise()
	if err := s.allocFBOs(width, height); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

func (s *SSAO) generateNoise() {
	noise := frame.SSAONoise(7)
	gl.GenTextures(1, &s.noiseTex)
	gl.BindTexture(gl.TEXTURE_2D, s.noiseTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA16F, frame.SSAONoiseSize, frame.SSAONoiseSize, 0,
		gl.RGB, gl.FLOAT, gl.Ptr(noise))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

func (s *SSAO) allocFBOs(width, height int) error {
	s.width, s.height = int32(width), int32(height)

	newTarget := func(fbo, tex *uint32, tag string) error {
		*tex = newTexture2D(gl.R16F, gl.RED, gl.FLOAT, s.width, s.height, gl.LINEAR, gl.CLAMP_TO_EDGE)
		gl.GenFramebuffers(1, fbo)
		gl.BindFramebuffer(gl.FRAMEBUFFER, *fbo)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, *tex, 0)
		err := checkFramebuffer(tag)
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		return err
	}
	if err := newTarget(&s.aoFBO, &s.aoTex, "ssao"); err != nil {
		return err
	}
	return newTarget(&s.blurFBO, &s.BlurTex, "ssao blur")
}

func (s *SSAO) freeFBOs() {
	deleteFramebuffers(&s.aoFBO, &s.blurFBO)
	deleteTextures(&s.aoTex, &s.BlurTex)
}

// Resize reallocates the SSAO FBOs at the new resolution.
func (s *SSAO) Resize(width, height int) error {
	s.freeFBOs()
	return s.allocFBOs(width, height)
}

func (s *SSAO) Destroy() {
	s.freeFBOs()
	deleteTextures(&s.noiseTex)
	s.ssaoProg.Destroy()
	s.blurProg.Destroy()
}

// ── Render passes ─────────────────────────────────────────────────────────────

// RunPasses executes the SSAO and blur passes. proj must be the projection
// the G-buffer was rendered with, jitter included. On return BlurTex holds
// the blurred occlusion factor.
func (s *SSAO) RunPasses(exec *executor, g *GBuffer, proj mgl32.Mat4) {
	exec.run(&pass.SSAO, s.ssaoProg, target{s.aoFBO, s.width, s.height}, []tex{
		{pass.InGViewPosition, g.Target(pass.GViewPosition)},
		{pass.InGViewNormal, g.Target(pass.GViewNormal)},
		{pass.InNoise, s.noiseTex},
	}, func() {
		p := s.ssaoProg
		p.SetVec3Array("kernel", s.kernel)
		p.SetInt("kernelSize", int32(len(s.kernel)))
		p.SetMat4("proj", proj)
		p.SetFloat("radius", s.Radius)
		p.SetFloat("bias", s.Bias)
		p.SetVec2("noiseScale", mgl32.Vec2{
			float32(s.width) / frame.SSAONoiseSize,
			float32(s.height) / frame.SSAONoiseSize,
		})
		exec.fullscreen()
	})

	exec.run(&pass.SSAOBlur, s.blurProg, target{s.blurFBO, s.width, s.height},
		[]tex{{pass.InSource, s.aoTex}}, exec.fullscreen)
}

// Clear fills BlurTex with 1, the value lighting reads when SSAO is off.
func (s *SSAO) Clear() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, s.blurFBO)
	gl.ClearColor(1, 1, 1, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}
