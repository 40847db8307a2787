package cwrap

// #include <stdlib.h>
import "C"

import "unsafe"

// newToken allocates the C memory whose address identifies a handler
// registration. The memory itself is never read or written.
func newToken() unsafe.Pointer {
	return C.malloc(1)
}

func freeToken(token unsafe.Pointer) {
	C.free(token)
}
