package stack

// Entry is one commit of a stack, identified by its GG-ID across rewrites
type Entry struct {
	// Position is 1-indexed from the bottom of the stack
	Position int

	Hash   string
	Parent string

	// GGID is empty until one is assigned
	GGID string

	// Title is the first line of the commit message
	Title string

	// Description is the body without trailers
	Description string

	// Message is the full commit message
	Message string

	// Number is the mapped review request number, 0 when not synced
	Number int
}

// IsSynced reports whether the entry has a review request
func (e *Entry) IsSynced() bool {
	return e.Number > 0
}

// Stack is the linear chain of commits between the merge-base with the base
// branch and the tip of the stack branch.
type Stack struct {
	Name     string
	Username string
	Branch   string
	Base     string

	// BaseRef is the ref the history was computed against, local base or
	// its remote-tracking branch
	BaseRef   string
	MergeBase string
	Tip       string

	Entries []*Entry

	// Cursor is the position of HEAD; len(Entries) when HEAD is on the branch
	Cursor int
	// OnBranch is true when HEAD is attached to the stack branch
	OnBranch bool

	// BehindBase counts commits in base..<remote>/base
	BehindBase int
}

// Len returns the number of entries
func (s *Stack) Len() int {
	return len(s.Entries)
}

// Entry returns the entry at a 1-indexed position, or nil
func (s *Stack) Entry(pos int) *Entry {
	if pos < 1 || pos > len(s.Entries) {
		return nil
	}
	return s.Entries[pos-1]
}

// EntryByGGID finds an entry by GG-ID
func (s *Stack) EntryByGGID(ggid string) *Entry {
	id, ok := NormalizeGGID(ggid)
	if !ok {
		return nil
	}
	for _, e := range s.Entries {
		if e.GGID == id {
			return e
		}
	}
	return nil
}

// Current returns the entry HEAD is at
func (s *Stack) Current() *Entry {
	return s.Entry(s.Cursor)
}

// AtTip reports whether HEAD is at the newest entry
func (s *Stack) AtTip() bool {
	return s.Cursor == len(s.Entries)
}

// MissingGGIDs returns the entries without a GG-ID
func (s *Stack) MissingGGIDs() []*Entry {
	var missing []*Entry
	for _, e := range s.Entries {
		if e.GGID == "" {
			missing = append(missing, e)
		}
	}
	return missing
}

// EntryBranch returns the remote branch name for an entry, or "" without a GG-ID
func (s *Stack) EntryBranch(e *Entry) string {
	if e.GGID == "" {
		return ""
	}
	return EntryBranch(s.Username, s.Name, e.GGID)
}

// SyncedCount returns the number of entries with a review request
func (s *Stack) SyncedCount() int {
	n := 0
	for _, e := range s.Entries {
		if e.IsSynced() {
			n++
		}
	}
	return n
}
