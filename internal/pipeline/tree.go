package pipeline

import (
	"fmt"
	"sort"

	"github.com/sells-group/proposal-cli/internal/model"
)

// AssemblyError reports a document-assembly invariant violation. Stage
// outputs up to document writing remain available for diagnosis.
type AssemblyError struct {
	Reason string
}

func (e *AssemblyError) Error() string {
	return "assembly: " + e.Reason
}

// syntheticRootID marks a root the builder had to invent because the block
// list carried no top-level heading.
const syntheticRootID = "synthetic-root"

// anchored pairs a root-level child with the input index of the block that
// produced it, so root children can be ordered by original position no
// matter when each one was closed out.
type anchored struct {
	index int
	node  model.DocumentNode
}

// BuildTree folds a flat, ordered block list into a nested document tree.
//
// The first heading1 becomes the root; a second heading1 is rejected. When
// no heading1 exists a placeholder root is synthesized, so the output node
// count is input count + 1 in that case and equal otherwise. Heading2
// sections nest under the root, heading3 under the nearest open heading2
// (or directly under the root when none is open), text under the innermost
// open section, and forms always under the root. Sibling order follows
// input order. Depth is recomputed from structure.
func BuildTree(blocks []model.ContentBlock) (model.DocumentNode, error) {
	root, rest, err := splitRoot(blocks)
	if err != nil {
		return model.DocumentNode{}, err
	}

	var rootKids []anchored
	var h2, h3 *anchored

	closeH3 := func() {
		if h3 == nil {
			return
		}
		if h2 != nil {
			h2.node.Children = append(h2.node.Children, h3.node)
		} else {
			// Degenerate: heading3 with no enclosing heading2 sits
			// directly under the root.
			rootKids = append(rootKids, *h3)
		}
		h3 = nil
	}
	closeH2 := func() {
		closeH3()
		if h2 != nil {
			rootKids = append(rootKids, *h2)
			h2 = nil
		}
	}
	attachLeaf := func(leaf model.DocumentNode, idx int) {
		switch {
		case h3 != nil:
			h3.node.Children = append(h3.node.Children, leaf)
		case h2 != nil:
			h2.node.Children = append(h2.node.Children, leaf)
		default:
			rootKids = append(rootKids, anchored{index: idx, node: leaf})
		}
	}

	for _, b := range rest {
		switch b.block.Type {
		case model.BlockHeading2:
			closeH2()
			h2 = &anchored{index: b.index, node: nodeFromBlock(b.block)}
		case model.BlockHeading3:
			closeH3()
			h3 = &anchored{index: b.index, node: nodeFromBlock(b.block)}
		case model.BlockText:
			attachLeaf(nodeFromBlock(b.block), b.index)
		case model.BlockForm:
			if len(b.block.Fields) == 0 {
				return model.DocumentNode{}, &AssemblyError{
					Reason: fmt.Sprintf("form block %q has no fields", b.block.ID),
				}
			}
			// Forms live directly under the root regardless of any
			// open section.
			rootKids = append(rootKids, anchored{index: b.index, node: nodeFromBlock(b.block)})
		default:
			return model.DocumentNode{}, &AssemblyError{
				Reason: fmt.Sprintf("block %q has unknown type %q", b.block.ID, b.block.Type),
			}
		}
	}
	closeH2()

	// Sections close later than the leaves and forms that followed them,
	// so restore original sibling order by input position.
	sort.SliceStable(rootKids, func(i, j int) bool {
		return rootKids[i].index < rootKids[j].index
	})
	for _, kid := range rootKids {
		root.Children = append(root.Children, kid.node)
	}

	setDepth(&root, 0)
	return root, nil
}

// indexedBlock retains a block's position in the original flat list.
type indexedBlock struct {
	index int
	block model.ContentBlock
}

// splitRoot extracts the single heading1 root from the list, synthesizing
// one when absent, and returns the remaining blocks in order.
func splitRoot(blocks []model.ContentBlock) (model.DocumentNode, []indexedBlock, error) {
	var root *model.DocumentNode
	rest := make([]indexedBlock, 0, len(blocks))

	for i, b := range blocks {
		if b.Type == model.BlockHeading1 {
			if root != nil {
				return model.DocumentNode{}, nil, &AssemblyError{
					Reason: fmt.Sprintf("multiple heading1 blocks (%q and %q); a document has exactly one title", root.ID, b.ID),
				}
			}
			n := nodeFromBlock(b)
			root = &n
			continue
		}
		rest = append(rest, indexedBlock{index: i, block: b})
	}

	if root == nil {
		root = &model.DocumentNode{
			ID:       syntheticRootID,
			Type:     model.BlockHeading1,
			Content:  "Untitled Proposal",
			Editable: true,
		}
	}
	return *root, rest, nil
}

func nodeFromBlock(b model.ContentBlock) model.DocumentNode {
	return model.DocumentNode{
		ID:       b.ID,
		Type:     b.Type,
		Content:  b.Content,
		Order:    b.Order,
		Editable: b.Editable,
		Fields:   b.Fields,
	}
}

// setDepth recomputes depth structurally over the whole subtree.
func setDepth(n *model.DocumentNode, depth int) {
	n.Depth = depth
	for i := range n.Children {
		setDepth(&n.Children[i], depth+1)
	}
}

// FlattenTree returns the tree's nodes in pre-order, children cleared.
// Useful for round-trip checks and for export surfaces that want the
// original flat order back.
func FlattenTree(root model.DocumentNode) []model.DocumentNode {
	var out []model.DocumentNode
	var walk func(n model.DocumentNode)
	walk = func(n model.DocumentNode) {
		flat := n
		flat.Children = nil
		out = append(out, flat)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}
