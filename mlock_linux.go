//go:build linux

package ring

import "golang.org/x/sys/unix"

// lockPages pins data in physical memory via mlock(2).
func lockPages(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return unix.Mlock(data) == nil
}

// unlockPages releases a lock previously taken by lockPages via munlock(2).
func unlockPages(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return unix.Munlock(data) == nil
}
