// Package curation loads curation documents and watches them for changes.
//
// A curation document maps catalog entries to the processes that trigger
// their installation. JSON is the canonical format:
//
//	{ "profiles": [ { "workshopId": 42, "profileTriggers": [ { "processName": "game.exe" } ] } ] }
//
// YAML (.yaml, .yml) and TOML (.toml) files with the same field names are
// accepted as well. The format is chosen by file extension; unknown
// extensions are parsed as JSON.
package curation
