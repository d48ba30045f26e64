//go:build cgo && (linux || darwin)

package graphrt

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

typedef struct {
	int32_t device_type;
	int32_t device_id;
} shim_device;

typedef struct {
	uint8_t code;
	uint8_t bits;
	uint16_t lanes;
} shim_dtype;

typedef struct {
	void* data;
	shim_device device;
	int32_t ndim;
	shim_dtype dtype;
	int64_t* shape;
	int64_t* strides;
	uint64_t byte_offset;
} shim_tensor;

typedef union {
	int64_t v_int64;
	double v_float64;
	void* v_handle;
	const char* v_str;
} shim_value;

typedef int32_t (*shim_packed_fn)(shim_value* args, int* type_codes, int num_args,
                                  shim_value* out_ret_value, int* out_ret_tcode,
                                  void* resource_handle);

static int32_t shim_call_packed(void* fn, shim_value* args, int* type_codes, int num_args) {
	shim_value ret;
	int ret_tcode = 0;
	return ((shim_packed_fn)fn)(args, type_codes, num_args, &ret, &ret_tcode, NULL);
}

static void shim_set_handle(shim_value* v, void* h) {
	v->v_handle = h;
}

static const char* shim_dlerror(void) {
	const char* msg = dlerror();
	return msg ? msg : "unknown dynamic loader error";
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

// argDLTensorHandle is the packed-call type code of a tensor argument.
const argDLTensorHandle = 7

type nativeModule struct {
	path   string
	handle unsafe.Pointer

	mu    sync.Mutex
	funcs map[string]Func
}

var _ Module = (*nativeModule)(nil)

// LoadModule loads a compiled operator library from a shared object. Kernels
// are resolved lazily by symbol name and invoked with the packed C calling
// convention, one tensor handle per argument. Kernels that call back into
// runtime support symbols need those symbols preloaded in the process.
func LoadModule(path string) (Module, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.dlopen(cpath, C.RTLD_LAZY|C.RTLD_LOCAL)
	if handle == nil {
		return nil, fmt.Errorf("dlopen %s: %s", path, C.GoString(C.shim_dlerror()))
	}

	return &nativeModule{
		path:   path,
		handle: handle,
		funcs:  make(map[string]Func),
	}, nil
}

// Function resolves a kernel symbol.
func (m *nativeModule) Function(name string) (Func, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fn, ok := m.funcs[name]; ok {
		return fn, true
	}
	if m.handle == nil {
		return nil, false
	}

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	sym := C.dlsym(m.handle, cname)
	if sym == nil {
		return nil, false
	}

	fn := func(args []*NDArray) error {
		return callPacked(name, sym, args)
	}
	m.funcs[name] = fn
	return fn, true
}

// Close unloads the library. Kernels resolved earlier must not be called afterwards.
func (m *nativeModule) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return nil
	}

	rc := C.dlclose(m.handle)
	m.handle = nil
	clear(m.funcs)

	if rc != 0 {
		return fmt.Errorf("dlclose %s: %s", m.path, C.GoString(C.shim_dlerror()))
	}
	return nil
}

func callPacked(name string, sym unsafe.Pointer, args []*NDArray) error {
	n := len(args)
	if n == 0 {
		if rc := C.shim_call_packed(sym, nil, nil, 0); rc != 0 {
			return fmt.Errorf("kernel %s returned %d", name, int32(rc))
		}
		return nil
	}

	// Tensor descriptors live in C memory and point at pinned Go buffers.
	var pinner runtime.Pinner
	defer pinner.Unpin()

	tensors := (*C.shim_tensor)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(C.shim_tensor{}))))
	values := (*C.shim_value)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(C.shim_value{}))))
	codes := (*C.int)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(C.int(0)))))
	shapes := make([]unsafe.Pointer, 0, n)
	defer func() {
		for _, p := range shapes {
			C.free(p)
		}
		C.free(unsafe.Pointer(codes))
		C.free(unsafe.Pointer(values))
		C.free(unsafe.Pointer(tensors))
	}()

	ts := unsafe.Slice(tensors, n)
	vs := unsafe.Slice(values, n)
	cs := unsafe.Slice(codes, n)

	for i, a := range args {
		t := &ts[i]
		if len(a.Data) > 0 {
			pinner.Pin(&a.Data[0])
			t.data = unsafe.Pointer(&a.Data[0])
		}

		t.device.device_type = C.int32_t(a.Device.Type)
		t.device.device_id = C.int32_t(a.Device.ID)
		t.ndim = C.int32_t(len(a.Shape))
		t.dtype.code = C.uint8_t(a.DType.Code)
		t.dtype.bits = C.uint8_t(a.DType.Bits)
		t.dtype.lanes = C.uint16_t(a.DType.Lanes)

		if len(a.Shape) > 0 {
			shape := C.malloc(C.size_t(len(a.Shape) * 8))
			shapes = append(shapes, shape)
			copy(unsafe.Slice((*int64)(shape), len(a.Shape)), a.Shape)
			t.shape = (*C.int64_t)(shape)
		}

		C.shim_set_handle(&vs[i], unsafe.Pointer(t))
		cs[i] = argDLTensorHandle
	}

	if rc := C.shim_call_packed(sym, values, codes, C.int(n)); rc != 0 {
		return fmt.Errorf("kernel %s returned %d", name, int32(rc))
	}
	return nil
}
