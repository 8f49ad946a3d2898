package tracker

import (
	"github.com/morozRed/cmdtrack/internal/fileutil"
	"github.com/morozRed/cmdtrack/internal/registry"
	"github.com/morozRed/cmdtrack/internal/state"
	"github.com/morozRed/cmdtrack/internal/synth"
)

const keyHashLen = 6

// assignKeys returns a naming key per tracked path. The result depends only
// on the set of relative paths, never on the order files were tracked:
//
//	unique base name      src/app.js        -> app
//	clashing base names   src/app.js        -> src-app-js (with lib/app.js)
//	still clashing        a b/c.js          -> a-b-c-js-<hash> (with a-b/c.js)
func assignKeys(files []state.TrackedFile) map[string]string {
	keys := make(map[string]string, len(files))
	rels := make(map[string]string, len(files))

	byBase := make(map[string][]state.TrackedFile, len(files))
	for _, file := range files {
		rels[file.Path] = file.RelPath
		base := synth.KeyFor(file.RelPath)
		byBase[base] = append(byBase[base], file)
	}
	for base, group := range byBase {
		if len(group) == 1 {
			keys[group[0].Path] = base
			continue
		}
		for _, file := range group {
			keys[file.Path] = registry.Normalize(file.RelPath)
		}
	}

	// A path-derived key can still meet another path key or a plain base key.
	byKey := make(map[string][]string, len(keys))
	for path, key := range keys {
		byKey[key] = append(byKey[key], path)
	}
	for key, paths := range byKey {
		if len(paths) == 1 {
			continue
		}
		for _, path := range paths {
			keys[path] = key + "-" + fileutil.HashContent([]byte(rels[path]))[:keyHashLen]
		}
	}
	return keys
}

// disambiguate maps each path's planned names to registered names. A name
// planned by more than one file gets a hash of each claimant's relative path
// appended, so no file's command resolves to another file's action. Like
// assignKeys, the result depends only on the inputs, not on map order.
func disambiguate(planned map[string][]string, rels map[string]string) map[string][]string {
	claims := make(map[string]int)
	for _, names := range planned {
		for _, name := range names {
			claims[name]++
		}
	}

	out := make(map[string][]string, len(planned))
	for path, names := range planned {
		suffix := "-" + fileutil.HashContent([]byte(rels[path]))[:keyHashLen]
		final := make([]string, len(names))
		for i, name := range names {
			final[i] = name
			if claims[name] > 1 {
				final[i] = name + suffix
			}
		}
		out[path] = final
	}
	return out
}
