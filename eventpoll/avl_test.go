package eventpoll

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyFor(n int) itemKey {
	return itemKey{addr: uint32(n), port: 0}
}

func inorderKeys(n *Item, out *[]uint32) {
	if n == nil {
		return
	}
	inorderKeys(n.left, out)
	*out = append(*out, n.key.addr)
	inorderKeys(n.right, out)
}

func checkHeightsAndBalance(t *testing.T, n *Item) int8 {
	t.Helper()
	if n == nil {
		return 0
	}
	lh := checkHeightsAndBalance(t, n.left)
	rh := checkHeightsAndBalance(t, n.right)

	bf := lh - rh
	require.LessOrEqual(t, bf, int8(1))
	require.GreaterOrEqual(t, bf, int8(-1))

	h := 1 + maxInt8(lh, rh)
	require.Equal(t, h, n.height)
	return h
}

func TestAVLInsertFindRemove(t *testing.T) {
	var tree avlTree
	items := make(map[uint32]*Item)

	r := rand.New(rand.NewSource(1))
	keys := r.Perm(200)
	for _, k := range keys {
		it := &Item{key: keyFor(k)}
		require.True(t, tree.insert(it))
		items[uint32(k)] = it
		checkHeightsAndBalance(t, tree.root)
	}

	var ordered []uint32
	inorderKeys(tree.root, &ordered)
	for i := 1; i < len(ordered); i++ {
		require.Less(t, ordered[i-1], ordered[i])
	}

	for _, k := range keys {
		found := tree.find(keyFor(k))
		assert.Same(t, items[uint32(k)], found)
	}

	r.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	for _, k := range keys {
		tree.remove(items[uint32(k)])
		checkHeightsAndBalance(t, tree.root)
		assert.Nil(t, tree.find(keyFor(k)))
	}
	assert.Nil(t, tree.root)
}

func TestAVLInsertDuplicateRejected(t *testing.T) {
	var tree avlTree
	a := &Item{key: keyFor(5)}
	b := &Item{key: keyFor(5)}
	require.True(t, tree.insert(a))
	require.False(t, tree.insert(b))
	assert.Same(t, a, tree.find(keyFor(5)))
}

func TestAVLRemoveTwoChildren(t *testing.T) {
	var tree avlTree
	for _, k := range []int{50, 25, 75, 10, 30, 60, 90} {
		tree.insert(&Item{key: keyFor(k)})
	}

	target := tree.find(keyFor(50))
	require.NotNil(t, target)
	tree.remove(target)
	checkHeightsAndBalance(t, tree.root)

	var ordered []uint32
	inorderKeys(tree.root, &ordered)
	assert.Equal(t, []uint32{10, 25, 30, 60, 75, 90}, ordered)
}
