package cwrap

import (
	"sync/atomic"
	"unsafe"
)

// AtomicInt64At views a shared-memory counter slot as an atomic integer. addr
// must point at an 8-byte aligned int64 that outlives every use of the result.
func AtomicInt64At(addr unsafe.Pointer) *atomic.Int64 {
	if addr == nil {
		return nil
	}
	return (*atomic.Int64)(addr)
}
