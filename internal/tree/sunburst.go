package tree

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Depth is the number of rings of a planted fingerprint tree.
const Depth = 3

var ErrInvalidTree = errors.New("invalid sunburst tree")

// SunburstTree is a node of a drill-down tree. A node is a leaf iff Children is nil.
type SunburstTree struct {
	Name     string          `json:"name"`
	Children []*SunburstTree `json:"children,omitempty"`

	// Leaf and value annotations.
	Size  int             `json:"size,omitempty"`
	SHA   string          `json:"sha,omitempty"`
	Type  string          `json:"type,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Owner string          `json:"owner,omitempty"`
	URL   string          `json:"url,omitempty"`
}

func (t *SunburstTree) IsLeaf() bool { return t.Children == nil }

// MarshalJSON keeps an empty children list on inner nodes so renderers never
// mistake them for leaves.
func (t SunburstTree) MarshalJSON() ([]byte, error) {
	type node SunburstTree
	if t.Children == nil {
		return json.Marshal(node(t))
	}
	return json.Marshal(struct {
		node
		Children []*SunburstTree `json:"children"`
	}{node(t), t.Children})
}

// Circle states what one ring of the tree represents.
type Circle struct {
	Meaning string `json:"meaning"`
}

type PlantedTree struct {
	Tree    *SunburstTree `json:"tree"`
	Circles []Circle      `json:"circles"`
}

// ValidationError points at the offending node by its path of names from the root.
type ValidationError struct {
	Path   []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%s: %s", ErrInvalidTree, e.Reason)
	}
	return fmt.Sprintf("%s at %s: %s", ErrInvalidTree, strings.Join(e.Path, " > "), e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidTree }

// Validate checks the fixed fingerprint tree shape: exactly Depth circles,
// inner nodes on the first two rings only and positive-size leaves on the last.
func Validate(pt *PlantedTree) error {
	if pt == nil || pt.Tree == nil {
		return &ValidationError{Reason: "tree is nil"}
	}
	if len(pt.Circles) != Depth {
		return &ValidationError{Reason: fmt.Sprintf("expected %d circles, got %d", Depth, len(pt.Circles))}
	}
	if pt.Tree.IsLeaf() {
		return &ValidationError{Path: []string{pt.Tree.Name}, Reason: "root must have a children list"}
	}
	return validateNode(pt.Tree, 1, nil)
}

func validateNode(n *SunburstTree, level int, parent []string) error {
	path := append(append([]string(nil), parent...), n.Name)
	if n.IsLeaf() {
		if level != Depth {
			return &ValidationError{Path: path, Reason: fmt.Sprintf("leaf at level %d, want %d", level, Depth)}
		}
		if n.Size <= 0 {
			return &ValidationError{Path: path, Reason: fmt.Sprintf("leaf size %d is not positive", n.Size)}
		}
		return nil
	}
	if level >= Depth {
		return &ValidationError{Path: path, Reason: fmt.Sprintf("inner node at level %d", level)}
	}
	// Only the root may be empty; a childless value node would cut the tree short.
	if level > 1 && len(n.Children) == 0 {
		return &ValidationError{Path: path, Reason: fmt.Sprintf("inner node at level %d has no children", level)}
	}
	for i, c := range n.Children {
		if c == nil {
			return &ValidationError{Path: path, Reason: fmt.Sprintf("child %d is nil", i)}
		}
		if err := validateNode(c, level+1, path); err != nil {
			return err
		}
	}
	return nil
}

// Visit walks the tree depth first. Returning false from fn skips the node's children.
func Visit(t *SunburstTree, fn func(n *SunburstTree, level int) bool) {
	visit(t, 1, fn)
}

func visit(n *SunburstTree, level int, fn func(*SunburstTree, int) bool) {
	if n == nil || !fn(n, level) {
		return
	}
	for _, c := range n.Children {
		visit(c, level+1, fn)
	}
}

func Leaves(t *SunburstTree) []*SunburstTree {
	var out []*SunburstTree
	Visit(t, func(n *SunburstTree, _ int) bool {
		if n.IsLeaf() {
			out = append(out, n)
		}
		return true
	})
	return out
}

// LeafSize sums the size of every leaf.
func LeafSize(t *SunburstTree) int {
	total := 0
	for _, l := range Leaves(t) {
		total += l.Size
	}
	return total
}
