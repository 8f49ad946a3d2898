package graph

import (
	"path"
	"sort"
	"strings"
	"sync"
)

// Node is one tracked file in the dependency graph.
type Node struct {
	Path         string   `json:"path"`
	RelPath      string   `json:"rel_path"`
	Language     string   `json:"language"`
	Refs         []string `json:"refs,omitempty"`         // raw import references, as extracted
	Dependencies []string `json:"dependencies,omitempty"` // tracked files the refs matched
	Dependents   []string `json:"dependents,omitempty"`   // inverse of Dependencies
	PageRank     float64  `json:"page_rank"`
}

// Reader is the read-only view handed to consumers outside the tracker.
type Reader interface {
	Node(path string) (Node, bool)
	Nodes() []Node
	Dependents(path string) []string
	Dependencies(path string) []string
	Impacted(changed, deleted []string) ([]string, map[string][]string)
	TopNodes(n int) []Node
	Len() int
}

// Graph represents the file-level dependency graph. Forward references are
// set per node; Dependencies, Dependents and PageRank are derived and only
// refreshed by RebuildInverseEdges.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node // path -> node
}

var _ Reader = (*Graph)(nil)

// NewGraph creates a new empty graph
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// Update creates or refreshes the node for path. It reports whether the
// node's forward references changed.
func (g *Graph) Update(filePath, relPath, language string, refs []string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	refs = append([]string(nil), refs...)
	existing, ok := g.nodes[filePath]
	if ok && existing.Language == language && existing.RelPath == relPath && equalStrings(existing.Refs, refs) {
		return false
	}

	node := &Node{Path: filePath, RelPath: relPath, Language: language, Refs: refs}
	if ok {
		node.Dependencies = existing.Dependencies
		node.Dependents = existing.Dependents
		node.PageRank = existing.PageRank
	}
	g.nodes[filePath] = node
	return true
}

// Remove drops the node for path. Other nodes keep stale edges to it until
// the next RebuildInverseEdges.
func (g *Graph) Remove(filePath string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[filePath]; !ok {
		return false
	}
	delete(g.nodes, filePath)
	return true
}

// Clear removes every node.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[string]*Node)
}

// RebuildInverseEdges resolves every node's references against the other
// nodes and recomputes dependents and PageRank from scratch. Matching is
// textual and approximate.
func (g *Graph) RebuildInverseEdges() {
	g.mu.Lock()
	defer g.mu.Unlock()

	lookup := buildTargetLookup(g.nodes)
	deps := make(map[string]map[string]bool, len(g.nodes))
	inverse := make(map[string]map[string]bool, len(g.nodes))

	for _, node := range g.nodes {
		for _, ref := range node.Refs {
			// Candidates run longest first; stop at the first form that matches.
			for _, candidate := range refCandidates(node.Language, ref) {
				matched := false
				for _, target := range lookup.candidates(node.RelPath, candidate) {
					if target.Path == node.Path || !importMatchesFile(node.RelPath, candidate, target.RelPath) {
						continue
					}
					matched = true
					if deps[node.Path] == nil {
						deps[node.Path] = make(map[string]bool)
					}
					deps[node.Path][target.Path] = true
					if inverse[target.Path] == nil {
						inverse[target.Path] = make(map[string]bool)
					}
					inverse[target.Path][node.Path] = true
				}
				if matched {
					break
				}
			}
		}
	}

	for filePath, node := range g.nodes {
		node.Dependencies = sortedKeys(deps[filePath])
		node.Dependents = sortedKeys(inverse[filePath])
	}
	g.calculatePageRank(20, 0.85)
}

// calculatePageRank computes importance scores for all nodes
func (g *Graph) calculatePageRank(iterations int, dampingFactor float64) {
	n := float64(len(g.nodes))
	if n == 0 {
		return
	}

	// Initialize all nodes with equal rank
	for _, node := range g.nodes {
		node.PageRank = 1.0 / n
	}

	// Iterate
	for i := 0; i < iterations; i++ {
		newRanks := make(map[string]float64, len(g.nodes))

		for id, node := range g.nodes {
			rank := (1 - dampingFactor) / n

			// Sum contributions from files that depend on this one
			for _, inID := range node.Dependents {
				if inNode, ok := g.nodes[inID]; ok {
					outDegree := float64(len(inNode.Dependencies))
					if outDegree > 0 {
						rank += dampingFactor * (inNode.PageRank / outDegree)
					}
				}
			}

			newRanks[id] = rank
		}

		for id, rank := range newRanks {
			g.nodes[id].PageRank = rank
		}
	}
}

// Node returns a copy of the node for path.
func (g *Graph) Node(filePath string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[filePath]
	if !ok {
		return Node{}, false
	}
	return copyNode(node), true
}

// Nodes returns copies of all nodes sorted by path.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		out = append(out, copyNode(node))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (g *Graph) Dependents(filePath string) []string {
	node, ok := g.Node(filePath)
	if !ok {
		return nil
	}
	return node.Dependents
}

func (g *Graph) Dependencies(filePath string) []string {
	node, ok := g.Node(filePath)
	if !ok {
		return nil
	}
	return node.Dependencies
}

func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// TopNodes returns the most depended-upon files by PageRank
func (g *Graph) TopNodes(n int) []Node {
	nodes := g.Nodes()
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].PageRank == nodes[j].PageRank {
			return nodes[i].Path < nodes[j].Path
		}
		return nodes[i].PageRank > nodes[j].PageRank
	})

	if n > len(nodes) || n <= 0 {
		n = len(nodes)
	}
	return nodes[:n]
}

// Impacted walks dependents transitively from the changed and deleted files
// and returns every reached path (seeds included) with the reasons it was
// reached.
func (g *Graph) Impacted(changed, deleted []string) ([]string, map[string][]string) {
	g.mu.RLock()
	reverseDeps := make(map[string][]string, len(g.nodes))
	for filePath, node := range g.nodes {
		reverseDeps[filePath] = append([]string(nil), node.Dependents...)
	}
	g.mu.RUnlock()

	reasons := make(map[string][]string)
	seen := make(map[string]bool)
	queue := make([]string, 0, len(changed)+len(deleted))

	for _, file := range changed {
		queue = append(queue, file)
		seen[file] = true
		reasons[file] = appendReason(reasons[file], "changed")
	}
	for _, file := range deleted {
		if !seen[file] {
			queue = append(queue, file)
		}
		seen[file] = true
		reasons[file] = appendReason(reasons[file], "deleted")
	}

	for len(queue) > 0 {
		file := queue[0]
		queue = queue[1:]

		for _, dependent := range reverseDeps[file] {
			reasons[dependent] = appendReason(reasons[dependent], "depends on "+file)
			if seen[dependent] {
				continue
			}
			seen[dependent] = true
			queue = append(queue, dependent)
		}
	}

	impacted := make([]string, 0, len(seen))
	for file := range seen {
		impacted = append(impacted, file)
		sort.Strings(reasons[file])
	}
	sort.Strings(impacted)
	return impacted, reasons
}

func appendReason(existing []string, reason string) []string {
	for _, item := range existing {
		if item == reason {
			return existing
		}
	}
	return append(existing, reason)
}

// targetLookup indexes nodes by the last path segment an import can end
// with, so each reference is only checked against plausible targets.
type targetLookup struct {
	byKey map[string][]*Node
}

func buildTargetLookup(nodes map[string]*Node) targetLookup {
	lookup := targetLookup{byKey: make(map[string][]*Node)}
	for _, node := range nodes {
		rel := node.RelPath
		base := path.Base(rel)
		keys := []string{base, strings.TrimSuffix(base, path.Ext(base))}
		if dir := path.Dir(rel); dir != "." {
			keys = append(keys, path.Base(dir))
		}
		for _, key := range dedupeAndSort(keys) {
			lookup.byKey[key] = append(lookup.byKey[key], node)
		}
	}
	return lookup
}

func (l targetLookup) candidates(sourceRel, importPath string) []*Node {
	if strings.HasPrefix(importPath, ".") {
		importPath = path.Join(path.Dir(sourceRel), importPath)
	}
	return l.byKey[path.Base(importPath)]
}

// refCandidates rewrites a raw reference into slash-separated forms that
// importMatchesFile understands. Dotted and "::" module paths expand to
// every prefix so "pkg.models.User" can match pkg/models.py.
func refCandidates(language, ref string) []string {
	ref = strings.TrimSpace(strings.Trim(ref, `"'`))
	if ref == "" {
		return nil
	}

	switch language {
	case "python":
		dots := len(ref) - len(strings.TrimLeft(ref, "."))
		if dots > 0 {
			prefix := "./"
			if dots > 1 {
				prefix = strings.Repeat("../", dots-1)
			}
			rest := strings.ReplaceAll(ref[dots:], ".", "/")
			if rest == "" {
				return nil
			}
			return []string{prefix + rest}
		}
		return prefixes(strings.Split(ref, "."))
	case "java", "kotlin":
		return prefixes(strings.Split(ref, "."))
	case "rust":
		parts := strings.Split(ref, "::")
		for len(parts) > 0 && (parts[0] == "crate" || parts[0] == "self" || parts[0] == "super") {
			parts = parts[1:]
		}
		return prefixes(parts)
	case "php":
		return prefixes(strings.Split(strings.TrimPrefix(ref, `\`), `\`))
	}
	return []string{ref}
}

func prefixes(parts []string) []string {
	out := make([]string, 0, len(parts))
	for i := len(parts); i > 0; i-- {
		joined := strings.Join(parts[:i], "/")
		if joined != "" {
			out = append(out, joined)
		}
	}
	return out
}

// importMatchesFile reports whether importPath, as written in sourceFile,
// plausibly refers to targetFile. All paths are slash-separated and
// relative to the tracking root.
func importMatchesFile(sourceFile, importPath, targetFile string) bool {
	targetNoExt := strings.TrimSuffix(targetFile, path.Ext(targetFile))
	targetDir := path.Dir(targetFile)
	targetBase := strings.TrimSuffix(path.Base(targetFile), path.Ext(targetFile))

	if strings.HasPrefix(importPath, ".") {
		resolved := path.Join(path.Dir(sourceFile), importPath)
		return resolved == targetFile || resolved == targetNoExt || resolved == targetDir
	}

	normalizedImport := strings.TrimPrefix(importPath, "/")

	return normalizedImport == targetFile ||
		normalizedImport == targetNoExt ||
		normalizedImport == targetDir ||
		normalizedImport == targetBase ||
		normalizedImport == path.Base(targetFile) ||
		strings.HasSuffix(targetFile, "/"+normalizedImport) ||
		strings.HasSuffix(targetNoExt, "/"+normalizedImport) ||
		strings.HasSuffix(normalizedImport, "/"+targetNoExt) ||
		(targetDir != "." && strings.HasSuffix(normalizedImport, "/"+targetDir)) ||
		strings.HasSuffix(normalizedImport, "/"+targetBase)
}

func copyNode(node *Node) Node {
	out := *node
	out.Refs = append([]string(nil), node.Refs...)
	out.Dependencies = append([]string(nil), node.Dependencies...)
	out.Dependents = append([]string(nil), node.Dependents...)
	return out
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func dedupeAndSort(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
