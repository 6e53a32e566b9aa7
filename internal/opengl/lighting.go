package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/internal/config"
	"pbr-engine/internal/frame"
	"pbr-engine/internal/pass"
)

// ── Shader ────────────────────────────────────────────────────────────────────

// lightingFragSrc shades every covered G-buffer pixel: direction lights and
// shadowed point lights from uniforms, the remaining point lights from the
// pixel's cluster, plus ambient scaled by material AO and SSAO. The ambient
// is image-based when IBL is ready and the configured flat level otherwise.
var lightingFragSrc = fmt.Sprintf(`
#version 430 core
#define MAX_DIR_LIGHTS   %d
#define MAX_POINT_SHADOW %d
#define MAX_DIR_SHADOW   %d
in  vec2 fragUV;
out vec4 outColor;
`+clusterCommonSrc+`
layout(std430, binding = %d) readonly buffer Lights      { Light lights[]; };
layout(std430, binding = %d) readonly buffer Grid        { LightGrid grid[]; };
layout(std430, binding = %d) readonly buffer Indices     { uint lightIndices[]; };

uniform sampler2D gPositionAO;
uniform sampler2D gAlbedoRoughness;
uniform sampler2D gNormalMetallic;
uniform sampler2D gViewPosition;
uniform samplerCube irradianceMap;
uniform samplerCube prefilterMap;
uniform sampler2D   brdfLUT;
uniform sampler2D   ssaoMap;
uniform samplerCube     pointShadowMaps[MAX_POINT_SHADOW];
uniform sampler2DShadow directionShadowMaps[MAX_DIR_SHADOW];

uniform vec3 camPos;
uniform bool useIBL;
uniform float flatAmbient;
uniform float prefilterMaxLod;

// Direction lights
uniform int  dirCount;
uniform vec3 dirDirection[MAX_DIR_LIGHTS];
uniform vec3 dirColor[MAX_DIR_LIGHTS];
uniform int  dirShadow[MAX_DIR_LIGHTS];
uniform mat4 dirViewProj[MAX_DIR_LIGHTS];

// Shadowed point lights
uniform int   shadowPointCount;
uniform vec3  shadowPointPos[MAX_POINT_SHADOW];
uniform vec3  shadowPointColor[MAX_POINT_SHADOW];
uniform float shadowPointRadius[MAX_POINT_SHADOW];
uniform int   shadowPointSlot[MAX_POINT_SHADOW];
uniform float pointFar;
uniform float shadowBias;

// Cluster grid
uniform uvec3 gridSize;
uniform float tileSize;
uniform float zNear;
uniform float zFar;

// ── PBR helpers (Cook-Torrance BRDF) ─────────────────────────────────────────

const float PI = 3.14159265359;

float DistributionGGX(vec3 N, vec3 H, float roughness) {
    float a  = roughness * roughness;
    float a2 = a * a;
    float NdH = max(dot(N, H), 0.0);
    float d   = NdH * NdH * (a2 - 1.0) + 1.0;
    return a2 / (PI * d * d);
}

float GeometrySchlickGGX(float cosTheta, float roughness) {
    float r = roughness + 1.0;
    float k = (r * r) / 8.0;
    return cosTheta / (cosTheta * (1.0 - k) + k);
}

float GeometrySmith(float NdV, float NdL, float roughness) {
    return GeometrySchlickGGX(NdV, roughness) * GeometrySchlickGGX(NdL, roughness);
}

vec3 FresnelSchlick(float cosTheta, vec3 F0) {
    return F0 + (1.0 - F0) * pow(clamp(1.0 - cosTheta, 0.0, 1.0), 5.0);
}

vec3 FresnelSchlickRoughness(float cosTheta, vec3 F0, float roughness) {
    return F0 + (max(vec3(1.0 - roughness), F0) - F0) * pow(clamp(1.0 - cosTheta, 0.0, 1.0), 5.0);
}

// Evaluate one Cook-Torrance lobe. L = unit vector toward light, rad = light radiance.
vec3 evalPBR(vec3 N, vec3 V, vec3 L, vec3 rad, vec3 albedo, float metallic, float roughness, vec3 F0) {
    float NdL = max(dot(N, L), 0.0);
    if (NdL <= 0.0) return vec3(0.0);

    vec3  H   = normalize(V + L);
    float NdV = max(dot(N, V), 0.0);

    float D  = DistributionGGX(N, H, roughness);
    float G  = GeometrySmith(NdV, NdL, roughness);
    vec3  F  = FresnelSchlick(max(dot(H, V), 0.0), F0);

    vec3 kD       = (vec3(1.0) - F) * (1.0 - metallic);
    vec3 specular = D * G * F / max(4.0 * NdV * NdL, 0.001);

    return (kD * albedo / PI + specular) * rad * NdL;
}

float pointAttenuation(float dist, float radius) {
    float range = max(radius, 0.001);
    float atten = clamp(1.0 - (dist * dist) / (range * range), 0.0, 1.0);
    return atten * atten;
}

// ── Shadows ──────────────────────────────────────────────────────────────────

float directionShadow(int slot, vec3 worldPos, mat4 viewProj) {
    vec4 lp = viewProj * vec4(worldPos, 1.0);
    vec3 p  = lp.xyz / lp.w * 0.5 + 0.5;
    if (p.z > 1.0) return 1.0;
    float ts = 1.0 / float(textureSize(directionShadowMaps[slot], 0).x);
    float shadow = 0.0;
    for (int x = -1; x <= 1; x++) {
        for (int y = -1; y <= 1; y++) {
            shadow += texture(directionShadowMaps[slot],
                vec3(p.xy + vec2(float(x), float(y)) * ts, p.z - shadowBias));
        }
    }
    return shadow / 9.0;
}

float pointShadow(int slot, vec3 worldPos, vec3 lightPos) {
    vec3 d = worldPos - lightPos;
    float current = length(d) / pointFar;
    if (current > 1.0) return 1.0;
    float closest = texture(pointShadowMaps[slot], d).r;
    return current - shadowBias > closest ? 0.0 : 1.0;
}

// ── Clusters ─────────────────────────────────────────────────────────────────

uint clusterIndex(vec2 fragCoord, float viewZ) {
    float depth = -viewZ;
    uint slice = 0u;
    if (depth > zNear) {
        float s = floor(log(depth / zNear) / log(zFar / zNear) * float(gridSize.z));
        slice = uint(clamp(s, 0.0, float(gridSize.z - 1u)));
    }
    uvec2 tile = uvec2(fragCoord / tileSize);
    tile = min(tile, gridSize.xy - 1u);
    return tile.x + tile.y * gridSize.x + slice * gridSize.x * gridSize.y;
}

// ── Main ─────────────────────────────────────────────────────────────────────

void main() {
    vec4 viewPos = texture(gViewPosition, fragUV);
    if (viewPos.w == 0.0) { outColor = vec4(0.0); return; }

    vec4 posAO  = texture(gPositionAO, fragUV);
    vec4 albRgh = texture(gAlbedoRoughness, fragUV);
    vec4 nrmMet = texture(gNormalMetallic, fragUV);

    vec3  P         = posAO.xyz;
    float ao        = posAO.w * texture(ssaoMap, fragUV).r;
    vec3  albedo    = albRgh.rgb;
    float roughness = clamp(albRgh.a, 0.04, 1.0);
    vec3  N         = normalize(nrmMet.xyz);
    float metallic  = nrmMet.w;
    vec3  V         = normalize(camPos - P);
    vec3  F0        = mix(vec3(0.04), albedo, metallic);

    vec3 color = vec3(0.0);

    for (int i = 0; i < dirCount && i < MAX_DIR_LIGHTS; i++) {
        float vis = 1.0;
        int slot = dirShadow[i];
        if (slot >= 0 && slot < MAX_DIR_SHADOW) vis = directionShadow(slot, P, dirViewProj[i]);
        color += evalPBR(N, V, normalize(-dirDirection[i]), dirColor[i] * vis, albedo, metallic, roughness, F0);
    }

    for (int i = 0; i < shadowPointCount && i < MAX_POINT_SHADOW; i++) {
        vec3  toLight = shadowPointPos[i] - P;
        float dist    = length(toLight);
        float vis     = pointShadow(shadowPointSlot[i], P, shadowPointPos[i]);
        vec3  rad     = shadowPointColor[i] * pointAttenuation(dist, shadowPointRadius[i]) * vis;
        color += evalPBR(N, V, toLight / max(dist, 0.0001), rad, albedo, metallic, roughness, F0);
    }

    LightGrid cell = grid[clusterIndex(gl_FragCoord.xy, viewPos.z)];
    for (uint i = 0u; i < cell.count; i++) {
        Light l = lights[lightIndices[cell.offset + i]];
        vec3  toLight = l.position - P;
        float dist    = length(toLight);
        if (dist >= l.radius) continue;
        vec3 rad = l.color * pointAttenuation(dist, l.radius);
        color += evalPBR(N, V, toLight / max(dist, 0.0001), rad, albedo, metallic, roughness, F0);
    }

    if (useIBL) {
        float NdV = max(dot(N, V), 0.0);
        vec3 F  = FresnelSchlickRoughness(NdV, F0, roughness);
        vec3 kD = (vec3(1.0) - F) * (1.0 - metallic);
        vec3 diffuse = texture(irradianceMap, N).rgb * albedo;

        vec3 R = reflect(-V, N);
        vec3 prefiltered = textureLod(prefilterMap, R, roughness * prefilterMaxLod).rgb;
        vec2 brdf = texture(brdfLUT, vec2(NdV, roughness)).rg;
        vec3 specular = prefiltered * (F * brdf.x + brdf.y);

        color += (kD * diffuse + specular) * ao;
    } else {
        color += flatAmbient * albedo * ao;
    }

    outColor = vec4(color, 1.0);
}
`+"\x00",
	config.MaxDirectionLights, config.MaxPointShadowSlots, config.MaxDirectionShadowSlots,
	pass.BindingLights, pass.BindingLightGrid, pass.BindingLightIndices)

// ── Pass ──────────────────────────────────────────────────────────────────────

// LightingPass resolves the G-buffer into HDR radiance.
type LightingPass struct {
	prog *Program
}

func newLightingPass() (*LightingPass, error) {
	prog, err := newProgram("lighting", ppVertSrc, lightingFragSrc)
	if err != nil {
		return nil, err
	}
	prog.bindSamplers(&pass.Lighting)
	return &LightingPass{prog: prog}, nil
}

// lightingFrame is what one lighting draw reads besides the G-buffer.
type lightingFrame struct {
	inputs   frame.LightingInputs
	camPos   mgl32.Vec3
	shadow   config.ShadowConfig
	ssaoTex  uint32
	ibl      *IBL
	shadows  *ShadowPass
	clusters *ClusterPass
}

// Render shades into t, which must share the G-buffer's depth attachment.
func (l *LightingPass) Render(exec *executor, t target, g *GBuffer, f lightingFrame) {
	textures := []tex{
		{pass.InGPositionAO, g.Target(pass.GPositionAO)},
		{pass.InGAlbedoRoughness, g.Target(pass.GAlbedoRoughness)},
		{pass.InGNormalMetallic, g.Target(pass.GNormalMetallic)},
		{pass.InGViewPosition, g.Target(pass.GViewPosition)},
		{pass.InSSAO, f.ssaoTex},
	}
	iblReady := f.ibl != nil && f.ibl.Ready() && f.inputs.Ambient
	if iblReady {
		textures = append(textures,
			tex{pass.InIrradiance, f.ibl.Irradiance},
			tex{pass.InPrefilter, f.ibl.Prefilter},
			tex{pass.InBRDF, f.ibl.BRDF},
		)
	}
	for i := 0; i < config.MaxPointShadowSlots; i++ {
		textures = append(textures, tex{pass.PointShadowInput(i), f.shadows.PointTexture(i)})
	}
	for i := 0; i < config.MaxDirectionShadowSlots; i++ {
		textures = append(textures, tex{pass.DirectionShadowInput(i), f.shadows.DirectionTexture(i)})
	}

	exec.run(&pass.Lighting, l.prog, t, textures, func() {
		p := l.prog
		p.SetVec3("camPos", f.camPos)
		p.SetBool("useIBL", iblReady)
		p.SetFloat("flatAmbient", f.inputs.FlatAmbient)
		if iblReady {
			p.SetFloat("prefilterMaxLod", float32(f.ibl.PrefilterMips-1))
		}
		p.SetFloat("pointFar", f.shadow.PointFar)
		p.SetFloat("shadowBias", f.shadow.Bias)

		dirs := f.inputs.Directions
		p.SetInt("dirCount", int32(len(dirs)))
		for i, d := range dirs {
			p.SetVec3(fmt.Sprintf("dirDirection[%d]", i), d.Direction)
			p.SetVec3(fmt.Sprintf("dirColor[%d]", i), d.Color)
			p.SetInt(fmt.Sprintf("dirShadow[%d]", i), int32(d.ShadowIndex))
			p.SetMat4(fmt.Sprintf("dirViewProj[%d]", i), d.ViewProj)
		}

		pts := f.inputs.ShadowedPoints
		p.SetInt("shadowPointCount", int32(len(pts)))
		for i, pl := range pts {
			p.SetVec3(fmt.Sprintf("shadowPointPos[%d]", i), pl.Position)
			p.SetVec3(fmt.Sprintf("shadowPointColor[%d]", i), pl.Color)
			p.SetFloat(fmt.Sprintf("shadowPointRadius[%d]", i), pl.Radius)
			p.SetInt(fmt.Sprintf("shadowPointSlot[%d]", i), int32(pl.ShadowIndex))
		}

		grid := f.clusters.Grid()
		gl.Uniform3ui(p.Loc("gridSize"), uint32(grid.TilesX), uint32(grid.TilesY), uint32(grid.Slices))
		p.SetFloat("tileSize", float32(grid.TileSize))
		p.SetFloat("zNear", grid.ZNear)
		p.SetFloat("zFar", grid.ZFar)
		f.clusters.bindAll()

		exec.fullscreen()
	})
}

func (l *LightingPass) Destroy() { l.prog.Destroy() }
