package engine

import "runtime"

// goid returns the numeric id of the calling goroutine, parsed from the
// stack trace header. The id is never reused while the goroutine lives,
// which is the property the thread registry needs.
func goid() uint64 {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)

	// header shape: "goroutine 123 [running]:"
	const prefix = len("goroutine ")
	var id uint64
	for _, c := range buf[prefix:n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
