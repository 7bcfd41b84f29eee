package native

import (
	"unsafe"

	"github.com/vireo-vm/vireo/pkg/runtime"
)

// uintptrOf returns obj's heap address for use as an identity hash, the
// default Object.hashCode() source when a class does not override it. Go
// never moves a heap object behind a live pointer the way a compacting GC
// would (out of scope per spec.md §1), so this address is stable for the
// object's lifetime.
func uintptrOf(obj *runtime.Object) uintptr {
	return uintptr(unsafe.Pointer(obj))
}
