package services

import (
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNodeLocksSameIDSameLock(t *testing.T) {
	locks := NewNodeLocks()
	id := primitive.NewObjectID()

	if locks.get(id) != locks.get(id) {
		t.Fatal("same node id returned different locks")
	}
	if locks.get(id) == locks.get(primitive.NewObjectID()) {
		t.Fatal("different node ids share a lock")
	}
}

func TestNodeLocksExclusion(t *testing.T) {
	locks := NewNodeLocks()
	id := primitive.NewObjectID()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(id)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, lock did not serialize writers", counter)
	}
}

func TestNodeLocksReadersOverlap(t *testing.T) {
	locks := NewNodeLocks()
	id := primitive.NewObjectID()

	first := locks.RLock(id)
	second := locks.RLock(id) // must not deadlock
	second()
	first()
}
