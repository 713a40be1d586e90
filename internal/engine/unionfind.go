package engine

import "github.com/steveyegge/dupfinder/internal/types"

// unionFind merges candidate buckets into transitive duplicate components.
// It works over opaque book ids; the engine never links book objects to
// each other.
type unionFind struct {
	parent map[types.BookID]types.BookID
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[types.BookID]types.BookID)}
}

func (u *unionFind) find(id types.BookID) types.BookID {
	root, ok := u.parent[id]
	if !ok {
		u.parent[id] = id
		return id
	}
	if root == id {
		return id
	}
	top := u.find(root)
	u.parent[id] = top
	return top
}

func (u *unionFind) union(a, b types.BookID) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
