// Package buildinfo holds version metadata stamped at build time via
// -ldflags, following the convention of linker-stamped version strings
// rather than a generated file.
package buildinfo

import "fmt"

// Version and Date are overridden at build time, e.g.:
//
//	go build -ldflags "-X github.com/rplus-lang/rplus/internal/buildinfo.Version=1.2.3 -X github.com/rplus-lang/rplus/internal/buildinfo.Date=2026-08-06"
var (
	Version = "dev"
	Date    = "unknown"
)

// String renders the version banner printed by `rplus -v`.
func String() string {
	return fmt.Sprintf("rplus %s (built %s)", Version, Date)
}
