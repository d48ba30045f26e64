package graphrttest

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// kernelSource implements packed-call kernels over DLTensor handles. Each
// failed argument check returns its own code.
const kernelSource = `#include <stdint.h>
#include <stddef.h>

typedef struct { int32_t device_type; int32_t device_id; } dev_t_;
typedef struct { uint8_t code; uint8_t bits; uint16_t lanes; } dtype_t_;
typedef struct {
	void* data;
	dev_t_ device;
	int32_t ndim;
	dtype_t_ dtype;
	int64_t* shape;
	int64_t* strides;
	uint64_t byte_offset;
} tensor_t_;
typedef union { int64_t v_int64; double v_float64; void* v_handle; const char* v_str; } value_t_;

static int64_t count(const tensor_t_* t) {
	int64_t n = 1;
	for (int i = 0; i < t->ndim; i++) n *= t->shape[i];
	return n;
}

static int check(const tensor_t_* t) {
	if (t->data == NULL) return 10;
	if (t->device.device_type != 1 || t->device.device_id != 0) return 11;
	if (t->dtype.code != 2 || t->dtype.bits != 32 || t->dtype.lanes != 1) return 12;
	if (t->strides != NULL || t->byte_offset != 0) return 13;
	return 0;
}

int32_t fused_add(value_t_* args, int* codes, int n, value_t_* ret, int* ret_code, void* res) {
	if (n != 3) return 1;
	for (int i = 0; i < n; i++) {
		if (codes[i] != 7) return 2;
		int rc = check((const tensor_t_*)args[i].v_handle);
		if (rc != 0) return rc;
	}
	const tensor_t_* a = args[0].v_handle;
	const tensor_t_* b = args[1].v_handle;
	tensor_t_* c = args[2].v_handle;
	int64_t na = count(a);
	if (count(b) != na || count(c) != na) return 3;

	const float* x = a->data;
	const float* y = b->data;
	float* z = c->data;
	for (int64_t i = 0; i < na; i++) z[i] = x[i] + y[i];
	return 0;
}

int32_t failing_kernel(value_t_* args, int* codes, int n, value_t_* ret, int* ret_code, void* res) {
	return 42;
}
`

// Kernels exported by BuildKernelLibrary.
const (
	AddKernel     = "fused_add"
	FailingKernel = "failing_kernel"
)

// BuildKernelLibrary compiles the test kernels into a shared object under dir
// and returns its path. The test is skipped when no C compiler is available.
func BuildKernelLibrary(t testing.TB, dir string) string {
	t.Helper()

	cc := os.Getenv("CC")
	if cc == "" {
		cc = "cc"
	}
	if _, err := exec.LookPath(cc); err != nil {
		t.Skipf("no C compiler: %v", err)
	}

	src := filepath.Join(dir, "kernels.c")
	if err := os.WriteFile(src, []byte(kernelSource), 0o644); err != nil {
		t.Fatalf("write kernel source: %v", err)
	}

	lib := filepath.Join(dir, "kernels.so")
	out, err := exec.Command(cc, "-shared", "-fPIC", "-O1", "-o", lib, src).CombinedOutput()
	if err != nil {
		t.Fatalf("compile kernels: %v\n%s", err, out)
	}
	return lib
}
