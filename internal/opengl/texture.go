package opengl

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"

	"pbr-engine/core"
	"pbr-engine/internal/resource"
	"pbr-engine/scene"
)

// backend uploads resource manager data. It must be called with the GL
// context current.
type backend struct{}

var _ resource.Backend = backend{}

// textureFormat maps a channel count to GL formats: 16F for HDR, 8-bit
// otherwise.
func textureFormat(channels int, hdr bool) (internal int32, format, xtype uint32) {
	formats := [4]uint32{gl.RED, gl.RG, gl.RGB, gl.RGBA}
	ldr := [4]int32{gl.R8, gl.RG8, gl.RGB8, gl.RGBA8}
	float := [4]int32{gl.R16F, gl.RG16F, gl.RGB16F, gl.RGBA16F}

	i := min(max(channels, 1), 4) - 1
	if hdr {
		return float[i], formats[i], gl.FLOAT
	}
	return ldr[i], formats[i], gl.UNSIGNED_BYTE
}

func (backend) UploadTexture2D(img *scene.Image, mipmap bool) (uint32, error) {
	var data unsafe.Pointer
	switch {
	case img.HDR() && len(img.Float) > 0:
		data = gl.Ptr(img.Float)
	case len(img.Pixels) > 0:
		data = gl.Ptr(img.Pixels)
	default:
		return 0, fmt.Errorf("texture %q has no pixel data", img.Name)
	}

	internal, format, xtype := textureFormat(img.Channels, img.HDR())

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(img.Width), int32(img.Height), 0, format, xtype, data)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 4)

	wrap := int32(gl.REPEAT)
	if img.HDR() {
		wrap = gl.CLAMP_TO_EDGE
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrap)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	if mipmap {
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
		gl.GenerateMipmap(gl.TEXTURE_2D)
	} else {
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return id, nil
}

func (backend) AllocTexture2D(width, height, channels int, hdr bool) (uint32, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("texture size %dx%d", width, height)
	}
	internal, format, xtype := textureFormat(channels, hdr)
	return newTexture2D(internal, format, xtype, int32(width), int32(height), gl.LINEAR, gl.CLAMP_TO_EDGE), nil
}

func (backend) AllocTextureCube(size, channels int, hdr, mipmap bool) (uint32, error) {
	if size <= 0 {
		return 0, fmt.Errorf("cube size %d", size)
	}
	internal, format, xtype := textureFormat(channels, hdr)

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, id)
	for face := uint32(0); face < 6; face++ {
		gl.TexImage2D(gl.TEXTURE_CUBE_MAP_POSITIVE_X+face, 0, internal, int32(size), int32(size), 0, format, xtype, nil)
	}
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_R, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	if mipmap {
		gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
		gl.GenerateMipmap(gl.TEXTURE_CUBE_MAP)
	} else {
		gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	}
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, 0)
	return id, nil
}

// UploadMesh creates the VAO with attribute locations 0..4 matching
// core.Vertex field order.
func (backend) UploadMesh(mesh *scene.Mesh) (resource.MeshHandle, error) {
	if len(mesh.Vertices) == 0 {
		return resource.MeshHandle{}, fmt.Errorf("mesh %q has no vertices", mesh.Name)
	}
	stride := int32(unsafe.Sizeof(core.Vertex{}))

	h := resource.MeshHandle{IndexCount: int32(mesh.IndexCount()), Bounds: mesh.Bounds}

	gl.GenVertexArrays(1, &h.VAO)
	gl.GenBuffers(1, &h.VBO)
	gl.BindVertexArray(h.VAO)

	gl.BindBuffer(gl.ARRAY_BUFFER, h.VBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(mesh.Vertices)*int(stride), gl.Ptr(mesh.Vertices), gl.STATIC_DRAW)

	var v core.Vertex
	attrs := []struct {
		size int32
		off  uintptr
	}{
		{3, unsafe.Offsetof(v.Position)},
		{3, unsafe.Offsetof(v.Normal)},
		{2, unsafe.Offsetof(v.UV)},
		{3, unsafe.Offsetof(v.Tangent)},
		{3, unsafe.Offsetof(v.Bitangent)},
	}
	for loc, a := range attrs {
		gl.EnableVertexAttribArray(uint32(loc))
		gl.VertexAttribPointerWithOffset(uint32(loc), a.size, gl.FLOAT, false, stride, a.off)
	}

	if len(mesh.Indices) > 0 {
		gl.GenBuffers(1, &h.EBO)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, h.EBO)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(mesh.Indices)*4, gl.Ptr(mesh.Indices), gl.STATIC_DRAW)
	}

	gl.BindVertexArray(0)
	return h, nil
}

func (backend) DeleteTexture(handle uint32) {
	gl.DeleteTextures(1, &handle)
}

func (backend) DeleteMesh(h resource.MeshHandle) {
	if h.EBO != 0 {
		gl.DeleteBuffers(1, &h.EBO)
	}
	gl.DeleteBuffers(1, &h.VBO)
	gl.DeleteVertexArrays(1, &h.VAO)
}

// drawMesh issues the draw call for an uploaded mesh.
func drawMesh(h resource.MeshHandle) {
	if h.VAO == 0 {
		return
	}
	gl.BindVertexArray(h.VAO)
	if h.EBO != 0 {
		gl.DrawElements(gl.TRIANGLES, h.IndexCount, gl.UNSIGNED_INT, nil)
	} else {
		gl.DrawArrays(gl.TRIANGLES, 0, h.IndexCount)
	}
	gl.BindVertexArray(0)
}

// newTexture2D allocates an empty 2D texture with one filter and wrap mode.
func newTexture2D(internal int32, format, xtype uint32, w, h int32, filter, wrap int32) uint32 {
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, w, h, 0, format, xtype, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrap)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return id
}

// newColorTarget allocates a screen-sized float color attachment.
func newColorTarget(internal int32, w, h int32) uint32 {
	format := uint32(gl.RGBA)
	switch internal {
	case gl.RG16F:
		format = gl.RG
	case gl.R16F:
		format = gl.RED
	}
	return newTexture2D(internal, format, gl.FLOAT, w, h, gl.NEAREST, gl.CLAMP_TO_EDGE)
}

// newDepthTarget allocates a sampleable DEPTH_COMPONENT32F texture.
func newDepthTarget(w, h int32) uint32 {
	return newTexture2D(gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT, w, h, gl.NEAREST, gl.CLAMP_TO_EDGE)
}

// checkFramebuffer reports an incomplete currently bound framebuffer.
func checkFramebuffer(tag string) error {
	if st := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); st != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("%s FBO incomplete: status=0x%X", tag, st)
	}
	return nil
}

func deleteTextures(ids ...*uint32) {
	for _, id := range ids {
		if *id != 0 {
			gl.DeleteTextures(1, id)
			*id = 0
		}
	}
}

func deleteFramebuffers(ids ...*uint32) {
	for _, id := range ids {
		if *id != 0 {
			gl.DeleteFramebuffers(1, id)
			*id = 0
		}
	}
}
