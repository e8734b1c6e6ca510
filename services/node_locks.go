package services

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NodeLocks hands out one RWMutex per node id. Ingestion commits take the
// read side so uploads into the same node can overlap; cascade deletes take
// the write side so they see no in-flight commits from this process.
type NodeLocks struct {
	mu    sync.Mutex
	locks map[primitive.ObjectID]*sync.RWMutex
}

func NewNodeLocks() *NodeLocks {
	return &NodeLocks{locks: make(map[primitive.ObjectID]*sync.RWMutex)}
}

func (n *NodeLocks) get(id primitive.ObjectID) *sync.RWMutex {
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.locks[id]
	if !ok {
		l = &sync.RWMutex{}
		n.locks[id] = l
	}
	return l
}

// Lock acquires the node's write lock and returns its release func.
func (n *NodeLocks) Lock(id primitive.ObjectID) func() {
	l := n.get(id)
	l.Lock()
	return l.Unlock
}

// RLock acquires the node's read lock and returns its release func.
func (n *NodeLocks) RLock(id primitive.ObjectID) func() {
	l := n.get(id)
	l.RLock()
	return l.RUnlock
}
