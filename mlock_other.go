//go:build !linux

package ring

// lockPages is a no-op on platforms with no supported page-locking syscall.
func lockPages(data []byte) bool {
	return false
}

// unlockPages is a no-op on platforms with no supported page-locking syscall.
func unlockPages(data []byte) bool {
	return false
}
