package scheduler

import (
	"math/rand"
	"time"
)

// IntervalTree is an interval-indexed lookup over schedule entries for a
// single resource. It is a treap keyed by (start, entry id) with a max-end
// augmentation on every node, so stabbing a query interval visits only the
// subtrees that can still contain an overlap: O(log n + k) instead of a
// linear scan over all commitments.
//
// The tree is not safe for concurrent use; callers synchronize access.
type IntervalTree struct {
	root *treeNode
	size int
	rng  *rand.Rand
}

type treeNode struct {
	entryID  int64
	interval Interval
	priority uint64
	maxEnd   time.Time
	left     *treeNode
	right    *treeNode
}

// NewIntervalTree returns an empty tree.
func NewIntervalTree() *IntervalTree {
	return &IntervalTree{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Len returns the number of entries in the tree.
func (t *IntervalTree) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

// Insert adds an entry interval to the tree. Entry ids are expected to be
// unique; inserting an id twice stores both nodes.
func (t *IntervalTree) Insert(entryID int64, interval Interval) {
	node := &treeNode{
		entryID:  entryID,
		interval: interval,
		priority: t.rng.Uint64(),
		maxEnd:   interval.End,
	}
	t.root = insertNode(t.root, node)
	t.size++
}

// Delete removes the entry with the given id and interval. It returns false
// when no matching node exists.
func (t *IntervalTree) Delete(entryID int64, interval Interval) bool {
	var deleted bool
	t.root, deleted = deleteNode(t.root, entryID, interval)
	if deleted {
		t.size--
	}
	return deleted
}

// Query returns the ids of every stored interval that overlaps query under
// the half-open rule, in ascending (start, id) order.
func (t *IntervalTree) Query(query Interval) []int64 {
	if t == nil || t.root == nil {
		return nil
	}
	var hits []int64
	stab(t.root, query, &hits)
	return hits
}

func nodeLess(a, b *treeNode) bool {
	if !a.interval.Start.Equal(b.interval.Start) {
		return a.interval.Start.Before(b.interval.Start)
	}
	return a.entryID < b.entryID
}

func insertNode(root, node *treeNode) *treeNode {
	if root == nil {
		return node
	}
	if nodeLess(node, root) {
		root.left = insertNode(root.left, node)
		if root.left.priority > root.priority {
			root = rotateRight(root)
		}
	} else {
		root.right = insertNode(root.right, node)
		if root.right.priority > root.priority {
			root = rotateLeft(root)
		}
	}
	refreshMaxEnd(root)
	return root
}

func deleteNode(root *treeNode, entryID int64, interval Interval) (*treeNode, bool) {
	if root == nil {
		return nil, false
	}

	target := &treeNode{entryID: entryID, interval: interval}
	var deleted bool
	switch {
	case nodeLess(target, root):
		root.left, deleted = deleteNode(root.left, entryID, interval)
	case nodeLess(root, target):
		root.right, deleted = deleteNode(root.right, entryID, interval)
	default:
		return mergeNodes(root.left, root.right), true
	}

	refreshMaxEnd(root)
	return root, deleted
}

func mergeNodes(left, right *treeNode) *treeNode {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	case left.priority > right.priority:
		left.right = mergeNodes(left.right, right)
		refreshMaxEnd(left)
		return left
	default:
		right.left = mergeNodes(left, right.left)
		refreshMaxEnd(right)
		return right
	}
}

func rotateRight(node *treeNode) *treeNode {
	pivot := node.left
	node.left = pivot.right
	pivot.right = node
	refreshMaxEnd(node)
	refreshMaxEnd(pivot)
	return pivot
}

func rotateLeft(node *treeNode) *treeNode {
	pivot := node.right
	node.right = pivot.left
	pivot.left = node
	refreshMaxEnd(node)
	refreshMaxEnd(pivot)
	return pivot
}

func refreshMaxEnd(node *treeNode) {
	if node == nil {
		return
	}
	maxEnd := node.interval.End
	if node.left != nil && node.left.maxEnd.After(maxEnd) {
		maxEnd = node.left.maxEnd
	}
	if node.right != nil && node.right.maxEnd.After(maxEnd) {
		maxEnd = node.right.maxEnd
	}
	node.maxEnd = maxEnd
}

func stab(node *treeNode, query Interval, hits *[]int64) {
	if node == nil {
		return
	}
	// Nothing under this node ends after the query start, so nothing can
	// overlap a half-open query interval.
	if !node.maxEnd.After(query.Start) {
		return
	}

	stab(node.left, query, hits)

	if Overlaps(node.interval, query) {
		*hits = append(*hits, node.entryID)
	}

	// Every start in the right subtree is >= this node's start; once the
	// start reaches the query end no overlap is possible there.
	if node.interval.Start.Before(query.End) {
		stab(node.right, query, hits)
	}
}
