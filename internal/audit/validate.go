package audit

// Validate walks entries in stored order starting from an implicit GENESIS
// predecessor. At each entry it checks the link to the prior entry, the
// content commitment and timestamp monotonicity, and stops at the first
// mismatch. Deleting an entry surfaces as a link mismatch on the entry that
// follows the gap. Validate never repairs anything.
func Validate(entries []Entry) Report {
	prevHash := GenesisHash
	for i := range entries {
		e := &entries[i]
		if e.PreviousHash != prevHash {
			return broken(i, e, ReasonLinkMismatch)
		}
		if ComputeHash(*e) != e.EntryHash {
			return broken(i, e, ReasonContentMismatch)
		}
		if i > 0 && e.CreatedAt.Before(entries[i-1].CreatedAt) {
			return broken(i, e, ReasonTimestampRegressed)
		}
		prevHash = e.EntryHash
	}
	return Report{Valid: true, EntriesValidated: len(entries)}
}

func broken(index int, e *Entry, reason string) Report {
	id := e.ID
	return Report{
		Valid:            false,
		EntriesValidated: index,
		BrokenAt:         &id,
		BrokenIndex:      index,
		Reason:           reason,
	}
}
