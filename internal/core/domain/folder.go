package domain

import "strings"

// FolderNode is one node of the destination tree. Parent is a back-reference
// only; children own their subtrees. Child names are unique among siblings.
type FolderNode struct {
	Name     string
	Parent   *FolderNode
	Children []*FolderNode
	DocCount int
}

// Child returns the named child, matching case-insensitively.
func (n *FolderNode) Child(name string) *FolderNode {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// Resolve walks path segments from this node, returning the deepest existing
// node and the number of segments that matched.
func (n *FolderNode) Resolve(segments []string) (*FolderNode, int) {
	node := n
	for i, seg := range segments {
		next := node.Child(seg)
		if next == nil {
			return node, i
		}
		node = next
	}
	return node, len(segments)
}

// Path returns the relative path from the tree root, excluding the root's
// own name.
func (n *FolderNode) Path() string {
	if n == nil || n.Parent == nil {
		return ""
	}
	parent := n.Parent.Path()
	if parent == "" {
		return n.Name
	}
	return parent + "/" + n.Name
}

// Walk visits every node below n in depth-first order.
func (n *FolderNode) Walk(visit func(*FolderNode)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children {
		c.Walk(visit)
	}
}

// SplitPath breaks a relative destination path into folder segments.
func SplitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// JoinPath assembles folder segments into a relative destination path.
func JoinPath(segments []string) string {
	return strings.Join(segments, "/")
}
