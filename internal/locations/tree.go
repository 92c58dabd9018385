// Package locations validates the location hierarchy returned by the backend
// and turns it into the flat, indented listings used by selection controls.
package locations

import (
	"fmt"
	"strings"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/models"
)

// DefaultIndentMarker is prepended once per level of depth to a display name
const DefaultIndentMarker = "— "

// MaxDepth bounds traversal so corrupted nesting cannot recurse without limit
const MaxDepth = 64

// LocationRef is one row of a flattened tree
type LocationRef struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	ParentID    *int64  `json:"parent_id"`
	Description *string `json:"description,omitempty"`
	Depth       int     `json:"depth"`
	DisplayName string  `json:"display_name"`
	ChildCount  int     `json:"child_count"`
	DeviceCount int     `json:"device_count"`
}

// Problem describes one inconsistency found in the tree
type Problem struct {
	LocationID int64  `json:"location_id"`
	Reason     string `json:"reason"`
}

// InconsistencyError reports nesting that contradicts the parent_id fields,
// repeated nodes, or depth beyond MaxDepth
type InconsistencyError struct {
	Problems []Problem
}

func (e *InconsistencyError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("location %d: %s", p.LocationID, p.Reason))
	}
	return "inconsistent location tree: " + strings.Join(parts, "; ")
}

// Flatten walks the tree depth-first in preorder. Siblings keep the order the
// backend supplied. A node seen twice is emitted once and its repeated subtree
// is skipped; the returned error lists every problem found, and the rows
// gathered so far are still returned.
func Flatten(tree []models.Location, marker string) ([]LocationRef, error) {
	f := flattener{
		marker:  marker,
		visited: make(map[int64]bool),
	}
	for i := range tree {
		f.walk(&tree[i], nil, 0)
	}
	if len(f.problems) > 0 {
		return f.out, &InconsistencyError{Problems: f.problems}
	}
	return f.out, nil
}

type flattener struct {
	marker   string
	visited  map[int64]bool
	out      []LocationRef
	problems []Problem
}

func (f *flattener) walk(node *models.Location, parent *models.Location, depth int) {
	if f.visited[node.ID] {
		f.problems = append(f.problems, Problem{LocationID: node.ID, Reason: "appears more than once"})
		return
	}
	if depth > MaxDepth {
		f.problems = append(f.problems, Problem{LocationID: node.ID, Reason: fmt.Sprintf("nested deeper than %d levels", MaxDepth)})
		return
	}
	f.visited[node.ID] = true

	if parent != nil && (node.ParentID == nil || *node.ParentID != parent.ID) {
		f.problems = append(f.problems, Problem{
			LocationID: node.ID,
			Reason:     fmt.Sprintf("nested under %d but parent_id is %s", parent.ID, formatID(node.ParentID)),
		})
	}

	f.out = append(f.out, LocationRef{
		ID:          node.ID,
		Name:        node.Name,
		ParentID:    node.ParentID,
		Description: node.Description,
		Depth:       depth,
		DisplayName: strings.Repeat(f.marker, depth) + node.Name,
		ChildCount:  len(node.Children),
		DeviceCount: len(node.Devices),
	})

	for i := range node.Children {
		f.walk(&node.Children[i], node, depth+1)
	}
}

func formatID(id *int64) string {
	if id == nil {
		return "null"
	}
	return fmt.Sprintf("%d", *id)
}

// Index gives id-based access to a nested tree
type Index struct {
	nodes  map[int64]*models.Location
	parent map[int64]int64
	order  []int64
}

// NewIndex indexes every node of the tree. The parent of a node is its
// parent_id when set, otherwise the node it is nested under. Repeated ids
// keep their first occurrence.
func NewIndex(tree []models.Location) *Index {
	idx := &Index{
		nodes:  make(map[int64]*models.Location),
		parent: make(map[int64]int64),
	}
	for i := range tree {
		idx.add(&tree[i], nil, 0)
	}
	return idx
}

func (idx *Index) add(node *models.Location, nestedUnder *models.Location, depth int) {
	if _, seen := idx.nodes[node.ID]; seen || depth > MaxDepth {
		return
	}
	idx.nodes[node.ID] = node
	idx.order = append(idx.order, node.ID)
	switch {
	case node.ParentID != nil:
		idx.parent[node.ID] = *node.ParentID
	case nestedUnder != nil:
		idx.parent[node.ID] = nestedUnder.ID
	}
	for i := range node.Children {
		idx.add(&node.Children[i], node, depth+1)
	}
}

// Get returns the node with the given id
func (idx *Index) Get(id int64) (*models.Location, bool) {
	n, ok := idx.nodes[id]
	return n, ok
}

// Len returns the number of distinct nodes
func (idx *Index) Len() int { return len(idx.nodes) }

// IsAncestor reports whether ancestorID appears on id's ancestor chain,
// id itself included. The walk is bounded by the number of nodes, and a
// chain that does not terminate is treated as containing ancestorID.
func (idx *Index) IsAncestor(ancestorID, id int64) bool {
	cur := id
	for steps := 0; steps <= len(idx.nodes); steps++ {
		if cur == ancestorID {
			return true
		}
		p, ok := idx.parent[cur]
		if !ok {
			return false
		}
		cur = p
	}
	return true
}

// IsValidParentChoice reports whether candidate may become nodeID's parent.
// A nil candidate (make it a root) is always valid.
func (idx *Index) IsValidParentChoice(candidate *int64, nodeID int64) bool {
	if candidate == nil {
		return true
	}
	return !idx.IsAncestor(nodeID, *candidate)
}

// Path returns the names from the root down to id
func (idx *Index) Path(id int64) []string {
	var names []string
	cur := id
	for steps := 0; steps <= len(idx.nodes); steps++ {
		n, ok := idx.nodes[cur]
		if !ok {
			break
		}
		names = append(names, n.Name)
		p, ok := idx.parent[cur]
		if !ok {
			break
		}
		cur = p
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// IsValidParentChoice reports whether candidateParentID may be chosen as the
// parent of nodeID: false for the node itself or any of its descendants
func IsValidParentChoice(candidateParentID *int64, nodeID int64, tree []models.Location) bool {
	return NewIndex(tree).IsValidParentChoice(candidateParentID, nodeID)
}

// ParentOptions returns the flattened tree without nodeID and its descendants
func ParentOptions(nodeID int64, tree []models.Location, marker string) ([]LocationRef, error) {
	flat, err := Flatten(tree, marker)
	idx := NewIndex(tree)
	out := make([]LocationRef, 0, len(flat))
	for _, ref := range flat {
		id := ref.ID
		if idx.IsValidParentChoice(&id, nodeID) {
			out = append(out, ref)
		}
	}
	return out, err
}

// CanDelete rejects deletion of a location that still has children or devices
func CanDelete(loc *models.Location) error {
	if len(loc.Children) > 0 {
		return apperr.Validation("LOCATION_HAS_CHILDREN",
			"location %q has %d child location(s); move or delete them first", loc.Name, len(loc.Children))
	}
	if len(loc.Devices) > 0 {
		return apperr.Validation("LOCATION_HAS_DEVICES",
			"location %q still holds %d device(s); move them first", loc.Name, len(loc.Devices))
	}
	return nil
}

// ValidateInput checks a create (nodeID nil) or update request against the tree
func ValidateInput(in models.LocationInput, nodeID *int64, idx *Index) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("NAME_REQUIRED", "name is required")
	}
	if in.ParentID == nil {
		return nil
	}
	if _, ok := idx.Get(*in.ParentID); !ok {
		return apperr.Validation("UNKNOWN_PARENT", "parent location %d does not exist", *in.ParentID)
	}
	if nodeID != nil && !idx.IsValidParentChoice(in.ParentID, *nodeID) {
		if *in.ParentID == *nodeID {
			return apperr.Validation("PARENT_IS_SELF", "a location cannot be its own parent")
		}
		return apperr.Validation("PARENT_IS_DESCENDANT",
			"location %d is inside location %d and cannot become its parent", *in.ParentID, *nodeID)
	}
	return nil
}
