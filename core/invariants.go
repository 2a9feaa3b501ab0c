package core

// CheckInvariants walks the region and panics if any structural invariant
// over the free list, inode tree, or block chains is violated. In normal
// builds this is a no-op (see invariants_release.go); it only does real
// work in binaries built with -tags myfsdebug (see invariants_debug.go),
// since a full tree and free-list walk is too expensive to run on every
// mutation in production.
//
// fuseadapter's InvariantMutex calls this after every unlocked mutation.
func (c *Core) CheckInvariants() {
	checkInvariants(c)
}
