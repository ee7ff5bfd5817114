package scene

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/leandrowiemesfilho/fbx2gltf/internal/config"
)

// Scene is the scene graph rebuilt from a converted glTF file.
type Scene struct {
	Name       string
	Generator  string
	Roots      []*Node
	Meshes     int
	Materials  int
	Images     int
	Skins      int
	Animations []*Animation
}

// Node is one node of the scene graph.
type Node struct {
	Name     string
	Mesh     string
	Skinned  bool
	Children []*Node
}

// Load reads a .gltf or .glb file and builds its scene graph, applying the
// animation options to every animation it contains.
func Load(path string, opts config.AnimationOptions) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load glTF %s", path)
	}
	return FromDocument(doc, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), opts)
}

// FromDocument builds a scene graph from a decoded document. fallbackName is
// used when the default scene has no name. A zero FPS keeps the keys as
// authored.
func FromDocument(doc *gltf.Document, fallbackName string, opts config.AnimationOptions) (*Scene, error) {
	if opts.FPS != 0 {
		if err := opts.Validate(); err != nil {
			return nil, err
		}
	}
	s := &Scene{
		Name:      fallbackName,
		Generator: doc.Asset.Generator,
		Meshes:    len(doc.Meshes),
		Materials: len(doc.Materials),
		Images:    len(doc.Images),
		Skins:     len(doc.Skins),
	}

	roots, name := rootNodes(doc)
	if name != "" {
		s.Name = name
	}

	visited := make(map[int]bool, len(doc.Nodes))
	for _, idx := range roots {
		n, err := buildNode(doc, idx, visited)
		if err != nil {
			return nil, err
		}
		if n != nil {
			s.Roots = append(s.Roots, n)
		}
	}

	for i, a := range doc.Animations {
		anim, err := buildAnimation(doc, i, a, opts)
		if err != nil {
			return nil, err
		}
		if anim != nil {
			s.Animations = append(s.Animations, anim)
		}
	}
	return s, nil
}

// Walk visits every node depth first.
func (s *Scene) Walk(fn func(depth int, n *Node)) {
	var walk func(depth int, n *Node)
	walk = func(depth int, n *Node) {
		fn(depth, n)
		for _, c := range n.Children {
			walk(depth+1, c)
		}
	}
	for _, r := range s.Roots {
		walk(0, r)
	}
}

// NodeCount returns the number of nodes reachable from the roots.
func (s *Scene) NodeCount() int {
	count := 0
	s.Walk(func(int, *Node) { count++ })
	return count
}

// rootNodes returns the root node indices of the default scene. Documents
// without scenes fall back to every node that is nobody's child.
func rootNodes(doc *gltf.Document) ([]int, string) {
	if len(doc.Scenes) > 0 {
		sc := doc.Scenes[0]
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			sc = doc.Scenes[*doc.Scene]
		}
		roots := make([]int, 0, len(sc.Nodes))
		for _, idx := range sc.Nodes {
			roots = append(roots, int(idx))
		}
		return roots, sc.Name
	}

	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[int(c)] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots, ""
}

func buildNode(doc *gltf.Document, idx int, visited map[int]bool) (*Node, error) {
	if idx < 0 || idx >= len(doc.Nodes) {
		return nil, errors.Errorf("node index %d out of range", idx)
	}
	if visited[idx] {
		// shared or cyclic reference; the node is already in the graph
		return nil, nil
	}
	visited[idx] = true

	src := doc.Nodes[idx]
	n := &Node{Name: nodeName(doc, idx), Skinned: src.Skin != nil}
	if src.Mesh != nil {
		n.Mesh = meshName(doc, int(*src.Mesh))
	}
	for _, c := range src.Children {
		child, err := buildNode(doc, int(c), visited)
		if err != nil {
			return nil, err
		}
		if child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n, nil
}

func nodeName(doc *gltf.Document, idx int) string {
	if idx >= 0 && idx < len(doc.Nodes) && doc.Nodes[idx].Name != "" {
		return doc.Nodes[idx].Name
	}
	return fmt.Sprintf("node%d", idx)
}

func meshName(doc *gltf.Document, idx int) string {
	if idx >= 0 && idx < len(doc.Meshes) && doc.Meshes[idx].Name != "" {
		return doc.Meshes[idx].Name
	}
	return fmt.Sprintf("mesh%d", idx)
}
