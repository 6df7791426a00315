// Package mempool recycles the per-line buffers of the recognition models.
// A label is recognized line by line, so the same few tensor sizes come back
// for every line of every photo.
package mempool

import "sync"

const step = 1024

var (
	float32Pools sync.Map // size class -> *sync.Pool of []float32
	boolPools    sync.Map // size class -> *sync.Pool of []bool
)

// sizeClass rounds n up to a multiple of step, minimum step.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func pool(pools *sync.Map, cls int, alloc func(int) any) *sync.Pool {
	if p, ok := pools.Load(cls); ok {
		return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
	}
	p, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any { return alloc(cls) }})
	return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// GetFloat32 returns a buffer of length n. Its contents are undefined; the
// caller overwrites every element and hands it back with PutFloat32.
func GetFloat32(n int) []float32 {
	cls := sizeClass(n)
	buf, ok := pool(&float32Pools, cls, func(c int) any { return make([]float32, c) }).Get().([]float32)
	if !ok || cap(buf) < cls {
		buf = make([]float32, cls)
	}
	return buf[:n]
}

// PutFloat32 returns a buffer obtained from GetFloat32. Nil is ignored.
func PutFloat32(buf []float32) {
	if buf == nil || cap(buf) < step {
		return
	}
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		return
	}
	pool(&float32Pools, cls, func(c int) any { return make([]float32, c) }).Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetBool returns a zeroed buffer of length n.
func GetBool(n int) []bool {
	cls := sizeClass(n)
	buf, ok := pool(&boolPools, cls, func(c int) any { return make([]bool, c) }).Get().([]bool)
	if !ok || cap(buf) < cls {
		buf = make([]bool, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// PutBool returns a buffer obtained from GetBool. Nil is ignored.
func PutBool(buf []bool) {
	if buf == nil || cap(buf) < step {
		return
	}
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		return
	}
	pool(&boolPools, cls, func(c int) any { return make([]bool, c) }).Put(buf[:cap(buf)]) //nolint:staticcheck
}
