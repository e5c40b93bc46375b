package application

import (
	"sync"

	"github.com/google/uuid"
)

// lotGate hands out one mutex per lot so that admission and closure for the
// same lot persist-then-publish as a unit, keeping per-lot event emission in
// acceptance order. Correctness of the writes themselves does not depend on
// it: the store's conditional writes stay authoritative across processes.
// Unrelated lots never contend.
type lotGate struct {
	locks sync.Map // uuid.UUID -> *sync.Mutex
}

func newLotGate() *lotGate {
	return &lotGate{}
}

func (g *lotGate) lock(lotID uuid.UUID) func() {
	mu, _ := g.locks.LoadOrStore(lotID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// forget drops the lot's mutex once the lot is terminal, so the registry does
// not grow with every lot ever closed. A straggler that recreates the entry
// afterwards only pays for one no-op round trip to the store.
func (g *lotGate) forget(lotID uuid.UUID) {
	g.locks.Delete(lotID)
}
