package eventpoll

// avlTree is an ordered index of Event Items keyed by remote endpoint,
// supporting O(log n) insert/find/remove via a balanced binary search tree.
// It must be guarded externally by EventPoll.indexMu; this type has no
// locking of its own.
type avlTree struct {
	root *Item
}

func itemHeight(n *Item) int8 {
	if n == nil {
		return 0
	}
	return n.height
}

func maxInt8(a, b int8) int8 {
	if a > b {
		return a
	}
	return b
}

func updateHeight(n *Item) {
	n.height = 1 + maxInt8(itemHeight(n.left), itemHeight(n.right))
}

func balanceFactor(n *Item) int8 {
	return itemHeight(n.left) - itemHeight(n.right)
}

// replaceChild rewires parent's pointer to oldChild so it instead points to
// newChild, or updates the tree root if parent is nil.
func (t *avlTree) replaceChild(parent, oldChild, newChild *Item) {
	if parent == nil {
		t.root = newChild
		return
	}
	if parent.left == oldChild {
		parent.left = newChild
	} else {
		parent.right = newChild
	}
}

func (t *avlTree) rotateLeft(n *Item) *Item {
	r := n.right
	n.right = r.left
	if r.left != nil {
		r.left.parent = n
	}
	r.parent = n.parent
	t.replaceChild(n.parent, n, r)
	r.left = n
	n.parent = r
	updateHeight(n)
	updateHeight(r)
	return r
}

func (t *avlTree) rotateRight(n *Item) *Item {
	l := n.left
	n.left = l.right
	if l.right != nil {
		l.right.parent = n
	}
	l.parent = n.parent
	t.replaceChild(n.parent, n, l)
	l.right = n
	n.parent = l
	updateHeight(n)
	updateHeight(l)
	return l
}

// rebalanceFrom walks from n up to the root, updating cached heights and
// applying AVL rotations as needed.
func (t *avlTree) rebalanceFrom(n *Item) {
	for n != nil {
		updateHeight(n)
		bf := balanceFactor(n)
		switch {
		case bf > 1:
			if balanceFactor(n.left) < 0 {
				n.left = t.rotateLeft(n.left)
			}
			n = t.rotateRight(n)
		case bf < -1:
			if balanceFactor(n.right) > 0 {
				n.right = t.rotateRight(n.right)
			}
			n = t.rotateLeft(n)
		}
		n = n.parent
	}
}

func (t *avlTree) find(k itemKey) *Item {
	n := t.root
	for n != nil {
		switch {
		case k.equal(n.key):
			return n
		case k.less(n.key):
			n = n.left
		default:
			n = n.right
		}
	}
	return nil
}

// insert adds it to the tree, returning false without modifying the tree if
// its key is already present.
func (t *avlTree) insert(it *Item) bool {
	if t.root == nil {
		t.root = it
		it.height = 1
		return true
	}
	n := t.root
	for {
		switch {
		case it.key.equal(n.key):
			return false
		case it.key.less(n.key):
			if n.left == nil {
				n.left = it
				it.parent = n
				it.height = 1
				t.rebalanceFrom(n)
				return true
			}
			n = n.left
		default:
			if n.right == nil {
				n.right = it
				it.parent = n
				it.height = 1
				t.rebalanceFrom(n)
				return true
			}
			n = n.right
		}
	}
}

// remove detaches it from the tree. it must currently be a member.
func (t *avlTree) remove(it *Item) {
	if it.left != nil && it.right != nil {
		succ := it.right
		for succ.left != nil {
			succ = succ.left
		}
		t.spliceInPlaceOf(it, succ)
		return
	}

	child := it.left
	if child == nil {
		child = it.right
	}
	parent := it.parent
	if child != nil {
		child.parent = parent
	}
	t.replaceChild(parent, it, child)
	it.left, it.right, it.parent = nil, nil, nil

	t.rebalanceFrom(parent)
}

// spliceInPlaceOf removes succ from its current position (succ has no left
// child by construction) and relocates it to stand in for target, which is
// being deleted.
func (t *avlTree) spliceInPlaceOf(target, succ *Item) {
	succParent := succ.parent
	succRight := succ.right

	var rebalanceStart *Item
	if succParent == target {
		rebalanceStart = succ
	} else {
		succParent.left = succRight
		if succRight != nil {
			succRight.parent = succParent
		}
		succ.right = target.right
		succ.right.parent = succ
		rebalanceStart = succParent
	}

	succ.left = target.left
	succ.left.parent = succ
	succ.parent = target.parent
	t.replaceChild(target.parent, target, succ)

	target.left, target.right, target.parent = nil, nil, nil

	t.rebalanceFrom(rebalanceStart)
}
