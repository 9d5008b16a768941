package util

import "strings"

// ProcessNames returns the distinct process names in names, in first-seen
// order. Blank names never match a process and are dropped. Matching is
// case-sensitive, so "Game.exe" and "game.exe" are both kept. The result is
// never nil.
func ProcessNames(names []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
