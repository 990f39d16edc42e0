//go:build !(linux || darwin || freebsd || openbsd || netbsd)

package platform

func DisableCoreDumps() error { return nil }
