// Package skilldata embeds the fixer profiles shipped inside the refinery
// binary. Each file under "profiles/" describes the analysis instructions for
// one quality dimension.
package skilldata

import "embed"

// ProfileFS contains the embedded fixer profiles. Walk from "profiles" to
// iterate over all files.
//
//go:embed profiles/*.yml
var ProfileFS embed.FS

// ProfileDir is the root of the profile files inside ProfileFS.
const ProfileDir = "profiles"
