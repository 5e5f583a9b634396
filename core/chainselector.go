package core

// ChainSelector implements the four-key total order over candidate
// chains described in §4.6: longer chain wins, then higher density,
// then heavier (more transactions), then lower tip id as the final
// tie-break. Grounded on the teacher's RecoverLongestFork
// (core/chain_fork_manager.go), which compares candidate branch lengths
// against the canonical chain; generalized here to the full comparator
// and made a pure function over an explicit candidate set.

// compareChains returns -1 if a is preferred over b, 1 if b is
// preferred over a, and 0 if they compare equal under all four keys
// (P6: a deterministic, reflexive, transitive, antisymmetric order).
func compareChains(a, b Chain) int {
	if len(a) != len(b) {
		if len(a) > len(b) {
			return -1
		}
		return 1
	}
	da, db := a.Density(), b.Density()
	if da != db {
		if da > db {
			return -1
		}
		return 1
	}
	wa, wb := a.Weight(), b.Weight()
	if wa != wb {
		if wa > wb {
			return -1
		}
		return 1
	}
	ta, tb := a.TipID(), b.TipID()
	if ta != tb {
		if ta < tb {
			return -1
		}
		return 1
	}
	return 0
}

// SelectChain returns the preferred chain among candidates under the
// total order above. It returns false if candidates is empty.
func SelectChain(candidates []Chain) (Chain, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if compareChains(c, best) < 0 {
			best = c
		}
	}
	return best, true
}
