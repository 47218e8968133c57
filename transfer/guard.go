package transfer

// ArgGuard scopes an installed argument to one request. Release is
// idempotent and must run on every exit path, typically via defer, so an
// argument the engine never consumed cannot leak into a later request's
// id space.
type ArgGuard struct {
	slot     *Slot
	id       ID
	released bool
}

// InstallArg stores an argument payload and returns its scope guard.
func (s *Slot) InstallArg(payload []byte) *ArgGuard {
	return &ArgGuard{slot: s, id: s.PutArg(payload)}
}

// ID returns the argument's slot id.
func (g *ArgGuard) ID() ID {
	return g.id
}

// Release drops the argument if it is still pending.
func (g *ArgGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.slot.ClearArg(g.id)
}

// ResultGuard scopes a reserved result id to one request. Whether the
// request completes, errors, or panics, either Take or Release fires and
// the entry cannot outlive the request.
type ResultGuard struct {
	slot     *Slot
	id       ID
	released bool
}

// ReserveResult allocates a result id and returns its scope guard.
func (s *Slot) ReserveResult() *ResultGuard {
	return &ResultGuard{slot: s, id: s.AllocResult()}
}

// ID returns the reserved result id.
func (g *ResultGuard) ID() ID {
	return g.id
}

// Take removes and returns the published result. It fails if the script
// never published; the guard is spent either way.
func (g *ResultGuard) Take() ([]byte, error) {
	g.released = true
	return g.slot.TakeResult(g.id)
}

// Release drops the result if it was published but never taken.
func (g *ResultGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.slot.ClearResult(g.id)
}
