package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/internal/config"
	"pbr-engine/internal/frame"
	"pbr-engine/internal/logger"
	"pbr-engine/internal/pass"
)

// ── Shaders ───────────────────────────────────────────────────────────────────

const captureVertSrc = `
#version 430 core
layout(location = 0) in vec3 inPosition;
uniform mat4 viewProj;
out vec3 fragDir;
void main() {
    fragDir = inPosition;
    gl_Position = viewProj * vec4(inPosition, 1.0);
}
` + "\x00"

const equirectFragSrc = `
#version 430 core
in  vec3 fragDir;
out vec4 outColor;
uniform sampler2D equirectMap;

const vec2 invAtan = vec2(0.1591, 0.3183);

void main() {
    vec3 v = normalize(fragDir);
    vec2 uv = vec2(atan(v.z, v.x), asin(v.y)) * invAtan + 0.5;
    outColor = vec4(texture(equirectMap, uv).rgb, 1.0);
}
` + "\x00"

const irradianceFragSrc = `
#version 430 core
in  vec3 fragDir;
out vec4 outColor;
uniform samplerCube environmentMap;

const float PI = 3.14159265359;

void main() {
    vec3 N     = normalize(fragDir);
    vec3 up    = abs(N.y) < 0.999 ? vec3(0.0, 1.0, 0.0) : vec3(0.0, 0.0, 1.0);
    vec3 right = normalize(cross(up, N));
    up         = cross(N, right);

    vec3  irradiance = vec3(0.0);
    float samples    = 0.0;
    const float delta = 0.025;
    for (float phi = 0.0; phi < 2.0 * PI; phi += delta) {
        for (float theta = 0.0; theta < 0.5 * PI; theta += delta) {
            vec3 t = vec3(sin(theta) * cos(phi), sin(theta) * sin(phi), cos(theta));
            vec3 s = t.x * right + t.y * up + t.z * N;
            irradiance += texture(environmentMap, s).rgb * cos(theta) * sin(theta);
            samples++;
        }
    }
    outColor = vec4(PI * irradiance / samples, 1.0);
}
` + "\x00"

const importanceSampleSrc = `
const float PI = 3.14159265359;

float RadicalInverse_VdC(uint bits) {
    bits = (bits << 16u) | (bits >> 16u);
    bits = ((bits & 0x55555555u) << 1u) | ((bits & 0xAAAAAAAAu) >> 1u);
    bits = ((bits & 0x33333333u) << 2u) | ((bits & 0xCCCCCCCCu) >> 2u);
    bits = ((bits & 0x0F0F0F0Fu) << 4u) | ((bits & 0xF0F0F0F0u) >> 4u);
    bits = ((bits & 0x00FF00FFu) << 8u) | ((bits & 0xFF00FF00u) >> 8u);
    return float(bits) * 2.3283064365386963e-10;
}

vec2 Hammersley(uint i, uint n) {
    return vec2(float(i) / float(n), RadicalInverse_VdC(i));
}

vec3 ImportanceSampleGGX(vec2 Xi, vec3 N, float roughness) {
    float a = roughness * roughness;
    float phi = 2.0 * PI * Xi.x;
    float cosTheta = sqrt((1.0 - Xi.y) / (1.0 + (a * a - 1.0) * Xi.y));
    float sinTheta = sqrt(1.0 - cosTheta * cosTheta);
    vec3 H = vec3(cos(phi) * sinTheta, sin(phi) * sinTheta, cosTheta);

    vec3 up      = abs(N.z) < 0.999 ? vec3(0.0, 0.0, 1.0) : vec3(1.0, 0.0, 0.0);
    vec3 tangent = normalize(cross(up, N));
    vec3 bitan   = cross(N, tangent);
    return normalize(tangent * H.x + bitan * H.y + N * H.z);
}
`

const prefilterFragSrc = `
#version 430 core
in  vec3 fragDir;
out vec4 outColor;
uniform samplerCube environmentMap;
uniform float roughness;
uniform float envResolution;

const uint SAMPLE_COUNT = 1024u;
` + importanceSampleSrc + `
float DistributionGGX(float NdH, float roughness) {
    float a  = roughness * roughness;
    float a2 = a * a;
    float d  = NdH * NdH * (a2 - 1.0) + 1.0;
    return a2 / (PI * d * d);
}

void main() {
    vec3 N = normalize(fragDir);
    vec3 V = N;

    vec3  color  = vec3(0.0);
    float weight = 0.0;
    for (uint i = 0u; i < SAMPLE_COUNT; i++) {
        vec2 Xi = Hammersley(i, SAMPLE_COUNT);
        vec3 H  = ImportanceSampleGGX(Xi, N, roughness);
        vec3 L  = normalize(2.0 * dot(V, H) * H - V);
        float NdL = max(dot(N, L), 0.0);
        if (NdL > 0.0) {
            // Sample a lower mip for low-probability directions to avoid
            // bright speckles.
            float NdH = max(dot(N, H), 0.0);
            float pdf = DistributionGGX(NdH, roughness) * NdH / (4.0 * NdH) + 0.0001;
            float saTexel  = 4.0 * PI / (6.0 * envResolution * envResolution);
            float saSample = 1.0 / (float(SAMPLE_COUNT) * pdf + 0.0001);
            float mip = roughness == 0.0 ? 0.0 : 0.5 * log2(saSample / saTexel);

            color  += textureLod(environmentMap, L, mip).rgb * NdL;
            weight += NdL;
        }
    }
    outColor = vec4(color / max(weight, 0.0001), 1.0);
}
` + "\x00"

const brdfFragSrc = `
#version 430 core
in  vec2 fragUV;
out vec2 outBRDF;

const uint SAMPLE_COUNT = 1024u;
` + importanceSampleSrc + `
float GeometrySchlickGGX(float NdV, float roughness) {
    float k = (roughness * roughness) / 2.0;
    return NdV / (NdV * (1.0 - k) + k);
}

void main() {
    float NdV       = max(fragUV.x, 0.001);
    float roughness = fragUV.y;
    vec3 V = vec3(sqrt(1.0 - NdV * NdV), 0.0, NdV);
    vec3 N = vec3(0.0, 0.0, 1.0);

    float A = 0.0;
    float B = 0.0;
    for (uint i = 0u; i < SAMPLE_COUNT; i++) {
        vec2 Xi = Hammersley(i, SAMPLE_COUNT);
        vec3 H  = ImportanceSampleGGX(Xi, N, roughness);
        vec3 L  = normalize(2.0 * dot(V, H) * H - V);
        float NdL = max(L.z, 0.0);
        float NdH = max(H.z, 0.0);
        float VdH = max(dot(V, H), 0.0);
        if (NdL > 0.0) {
            float G     = GeometrySchlickGGX(NdV, roughness) * GeometrySchlickGGX(NdL, roughness);
            float G_Vis = (G * VdH) / (NdH * NdV);
            float Fc    = pow(1.0 - VdH, 5.0);
            A += (1.0 - Fc) * G_Vis;
            B += Fc * G_Vis;
        }
    }
    outBRDF = vec2(A, B) / float(SAMPLE_COUNT);
}
` + "\x00"

// ── IBL ───────────────────────────────────────────────────────────────────────

// IBL holds the image-based lighting maps. The textures are owned by the
// resource manager; IBL only fills them.
type IBL struct {
	Environment uint32
	Irradiance  uint32
	Prefilter   uint32
	BRDF        uint32

	PrefilterMips int

	cfg  config.IBLConfig
	cube *unitCube

	captureFBO uint32
	captureRBO uint32

	equirectProg   *Program
	irradianceProg *Program
	prefilterProg  *Program
	brdfProg       *Program

	brdfDone bool
	ready    bool
}

// iblMaps names the destination textures of one precompute.
type iblMaps struct {
	equirect, environment, irradiance, prefilter, brdf uint32
}

func newIBL(cfg config.IBLConfig, cube *unitCube) (*IBL, error) {
	ibl := &IBL{cfg: cfg, cube: cube, PrefilterMips: cfg.PrefilterMips}

	progs := []struct {
		dst        **Program
		name, vert string
		frag       string
		desc       *pass.Descriptor
	}{
		{&ibl.equirectProg, "equirect", captureVertSrc, equirectFragSrc, &pass.Equirect},
		{&ibl.irradianceProg, "irradiance", captureVertSrc, irradianceFragSrc, &pass.Irradiance},
		{&ibl.prefilterProg, "prefilter", captureVertSrc, prefilterFragSrc, &pass.Prefilter},
		{&ibl.brdfProg, "brdf", ppVertSrc, brdfFragSrc, &pass.BRDF},
	}
	for _, p := range progs {
		prog, err := newProgram(p.name, p.vert, p.frag)
		if err != nil {
			ibl.Destroy()
			return nil, err
		}
		prog.bindSamplers(p.desc)
		*p.dst = prog
	}

	gl.GenFramebuffers(1, &ibl.captureFBO)
	gl.GenRenderbuffers(1, &ibl.captureRBO)
	return ibl, nil
}

// Ready reports whether every map has been computed.
func (ibl *IBL) Ready() bool { return ibl.ready }

// Reset marks the maps stale, e.g. when the sky changes.
func (ibl *IBL) Reset() { ibl.ready = false }

// captureViewProjs returns the six 90 degree views used for every cube face.
func captureViewProjs() [6]mgl32.Mat4 {
	return frame.CubeViewProjs(mgl32.Vec3{}, 0.1, 10)
}

// bindCaptureTarget attaches one cube face mip, sized size x size, with a
// matching depth renderbuffer.
func (ibl *IBL) bindCaptureTarget(cube uint32, face, mip int, size int32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, ibl.captureFBO)
	gl.BindRenderbuffer(gl.RENDERBUFFER, ibl.captureRBO)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, size, size)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, ibl.captureRBO)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0,
		gl.TEXTURE_CUBE_MAP_POSITIVE_X+uint32(face), cube, int32(mip))
}

// renderCube draws all six faces of one mip level of dst.
func (ibl *IBL) renderCube(exec *executor, d *pass.Descriptor, prog *Program, dst uint32, mip int, size int32, src []tex, setup func()) error {
	vps := captureViewProjs()
	for face, vp := range vps {
		ibl.bindCaptureTarget(dst, face, mip, size)
		if err := checkFramebuffer(d.Name); err != nil {
			gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
			return err
		}
		exec.run(d, prog, target{ibl.captureFBO, size, size}, src, func() {
			if setup != nil {
				setup()
			}
			prog.SetMat4("viewProj", vp)
			ibl.cube.draw()
		})
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return nil
}

// Compute fills the environment, irradiance and prefilter cubes from an
// equirectangular HDR texture, and the BRDF LUT on first use.
func (ibl *IBL) Compute(exec *executor, m iblMaps) error {
	if m.equirect == 0 || m.environment == 0 || m.irradiance == 0 || m.prefilter == 0 || m.brdf == 0 {
		return fmt.Errorf("ibl: missing texture %+v", m)
	}
	ibl.ready = false
	cfg := ibl.cfg

	if err := ibl.renderCube(exec, &pass.Equirect, ibl.equirectProg, m.environment, 0,
		int32(cfg.SkyboxSize), []tex{{pass.InEquirect, m.equirect}}, nil); err != nil {
		return err
	}
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, m.environment)
	gl.GenerateMipmap(gl.TEXTURE_CUBE_MAP)
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, 0)

	if err := ibl.renderCube(exec, &pass.Irradiance, ibl.irradianceProg, m.irradiance, 0,
		int32(cfg.IrradianceSize), []tex{{pass.InEnvironment, m.environment}}, nil); err != nil {
		return err
	}

	gl.BindTexture(gl.TEXTURE_CUBE_MAP, m.prefilter)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_MAX_LEVEL, int32(cfg.PrefilterMips-1))
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, 0)
	for mip := 0; mip < cfg.PrefilterMips; mip++ {
		size := int32(cfg.PrefilterSize >> mip)
		roughness := float32(mip) / float32(max(cfg.PrefilterMips-1, 1))
		err := ibl.renderCube(exec, &pass.Prefilter, ibl.prefilterProg, m.prefilter, mip, size,
			[]tex{{pass.InEnvironment, m.environment}}, func() {
				ibl.prefilterProg.SetFloat("roughness", roughness)
				ibl.prefilterProg.SetFloat("envResolution", float32(cfg.SkyboxSize))
			})
		if err != nil {
			return err
		}
	}

	if !ibl.brdfDone {
		gl.BindFramebuffer(gl.FRAMEBUFFER, ibl.captureFBO)
		gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, 0)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, m.brdf, 0)
		if err := checkFramebuffer("brdf"); err != nil {
			gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
			return err
		}
		size := int32(cfg.BRDFSize)
		exec.run(&pass.BRDF, ibl.brdfProg, target{ibl.captureFBO, size, size}, nil, exec.fullscreen)
		ibl.brdfDone = true
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	ibl.Environment, ibl.Irradiance, ibl.Prefilter, ibl.BRDF = m.environment, m.irradiance, m.prefilter, m.brdf
	ibl.ready = true
	logger.Logger().Info("ibl maps computed",
		"skybox", cfg.SkyboxSize, "irradiance", cfg.IrradianceSize,
		"prefilter", cfg.PrefilterSize, "mips", cfg.PrefilterMips)
	return nil
}

func (ibl *IBL) Destroy() {
	deleteFramebuffers(&ibl.captureFBO)
	if ibl.captureRBO != 0 {
		gl.DeleteRenderbuffers(1, &ibl.captureRBO)
		ibl.captureRBO = 0
	}
	ibl.equirectProg.Destroy()
	ibl.irradianceProg.Destroy()
	ibl.prefilterProg.Destroy()
	ibl.brdfProg.Destroy()
}
