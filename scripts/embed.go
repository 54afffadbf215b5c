// Package scripts embeds the Risor lint scripts shipped with jacls.
package scripts

import "embed"

// FS holds lint/*.risor. Each script sees the globals path, decls, warn and
// log; see internal/runtime.
//
//go:embed lint/*.risor
var FS embed.FS
