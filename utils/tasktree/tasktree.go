// Package tasktree arranges a flat, parent-referencing list of tasks into a forest.
//
// Nodes live in an arena in input order and refer to each other by index, so walking
// the tree never recurses.
package tasktree

import (
	"finite-life/finitelife/models"

	"github.com/google/uuid"
)

// Node is one task in the forest. Children holds arena indexes in input order.
type Node struct {
	Task     models.Task
	Parent   int
	Children []int
}

// IsRoot reports whether the node has no parent in the forest
func (n *Node) IsRoot() bool {
	return n.Parent < 0
}

// Forest is the result of Build
type Forest struct {
	Nodes []Node
	Roots []int
	index map[uuid.UUID]int
}

// Build links tasks to their parents in two passes. A task whose parent is missing
// from tasks becomes a root, and so does every task on a parent cycle (including a
// task that names itself as parent). Siblings keep their relative input order.
func Build(tasks []models.Task) *Forest {
	f := &Forest{
		Nodes: make([]Node, len(tasks)),
		index: make(map[uuid.UUID]int, len(tasks)),
	}

	// Pass 1: id -> node
	for i, task := range tasks {
		f.Nodes[i] = Node{Task: task, Parent: -1}
		if _, seen := f.index[task.ID]; !seen {
			f.index[task.ID] = i
		}
	}

	parentOf := make([]int, len(tasks))
	for i, task := range tasks {
		parentOf[i] = -1
		if task.ParentID == nil {
			continue
		}
		if p, ok := f.index[*task.ParentID]; ok {
			parentOf[i] = p
		}
	}
	onCycle := cycleMembers(parentOf)

	// Pass 2: attach to parent or promote to root
	for i := range f.Nodes {
		p := parentOf[i]
		if p < 0 || onCycle[i] {
			f.Roots = append(f.Roots, i)
			continue
		}
		f.Nodes[i].Parent = p
		f.Nodes[p].Children = append(f.Nodes[p].Children, i)
	}

	return f
}

// cycleMembers marks the nodes that are their own ancestor. Every node has at most
// one parent, so each walk up the chain either ends or closes exactly one loop.
func cycleMembers(parentOf []int) []bool {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make([]int, len(parentOf))
	onCycle := make([]bool, len(parentOf))
	var path []int

	for start := range parentOf {
		path = path[:0]
		cur := start
		for cur >= 0 && state[cur] == unvisited {
			state[cur] = onPath
			path = append(path, cur)
			cur = parentOf[cur]
		}
		if cur >= 0 && state[cur] == onPath {
			for i := len(path) - 1; i >= 0; i-- {
				onCycle[path[i]] = true
				if path[i] == cur {
					break
				}
			}
		}
		for _, n := range path {
			state[n] = done
		}
	}
	return onCycle
}

// Lookup returns the arena index of the task with the given id
func (f *Forest) Lookup(id uuid.UUID) (int, bool) {
	i, ok := f.index[id]
	return i, ok
}

// Len is the number of tasks in the forest
func (f *Forest) Len() int {
	return len(f.Nodes)
}

// Walk visits every node reachable from the roots in depth-first pre-order, siblings
// in order. Returning false from fn skips the node's children.
func (f *Forest) Walk(fn func(node *Node, depth int) bool) {
	type frame struct {
		index int
		depth int
	}

	stack := make([]frame, 0, len(f.Roots))
	for i := len(f.Roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{index: f.Roots[i]})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := &f.Nodes[top.index]
		if !fn(node, top.depth) {
			continue
		}
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{index: node.Children[i], depth: top.depth + 1})
		}
	}
}

// RootIDs lists the task ids of the roots in order
func (f *Forest) RootIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(f.Roots))
	for i, r := range f.Roots {
		ids[i] = f.Nodes[r].Task.ID
	}
	return ids
}

// ChildIDs lists the task ids of the children of the task with the given id
func (f *Forest) ChildIDs(id uuid.UUID) []uuid.UUID {
	i, ok := f.index[id]
	if !ok {
		return nil
	}
	children := f.Nodes[i].Children
	ids := make([]uuid.UUID, len(children))
	for j, c := range children {
		ids[j] = f.Nodes[c].Task.ID
	}
	return ids
}
