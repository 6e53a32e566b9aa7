package opengl

import (
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"
)

// storageBuffer is a shader storage buffer bound to a fixed binding point.
type storageBuffer struct {
	id      uint32
	size    int
	binding uint32
}

// minBufferSize keeps empty buffers bindable.
const minBufferSize = 32

func newStorageBuffer(binding uint32, size int) *storageBuffer {
	b := &storageBuffer{binding: binding}
	gl.GenBuffers(1, &b.id)
	b.alloc(size)
	return b
}

func (b *storageBuffer) alloc(size int) {
	size = max(size, minBufferSize)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, b.id)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	b.size = size
}

// ensure grows the buffer to at least size bytes. Contents are discarded on
// growth.
func (b *storageBuffer) ensure(size int) {
	if size > b.size {
		b.alloc(size)
	}
}

func (b *storageBuffer) upload(data unsafe.Pointer, size int) {
	b.ensure(size)
	if size == 0 {
		return
	}
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, b.id)
	gl.BufferSubData(gl.SHADER_STORAGE_BUFFER, 0, size, data)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
}

func (b *storageBuffer) read(data unsafe.Pointer, size int) {
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, b.id)
	gl.GetBufferSubData(gl.SHADER_STORAGE_BUFFER, 0, min(size, b.size), data)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
}

func (b *storageBuffer) bind() {
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, b.binding, b.id)
}

func (b *storageBuffer) Destroy() {
	if b != nil && b.id != 0 {
		gl.DeleteBuffers(1, &b.id)
		b.id = 0
	}
}
