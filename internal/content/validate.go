package content

import (
	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

// ValidationOptions controls which checks ValidateSnapshot performs.
// The zero value only checks the snapshot is structurally sound.
type ValidationOptions struct {
	// RequireCollections lists collections that must hold at least one entry.
	RequireCollections []string

	// MinEntries rejects snapshots with fewer entries in total.
	// 0 disables the check.
	MinEntries int
}

// ValidateSnapshot performs sanity checks on a snapshot before it is
// swapped into the active Manager. Used by the Watcher to prevent serving
// empty content after a bad publish.
// Returns nil if all checks pass, or an error describing the first failure.
func ValidateSnapshot(snap *Snapshot, opts ValidationOptions) error {
	if snap == nil {
		return xerrors.New("validate: snapshot is nil")
	}
	if snap.Collections == nil {
		return xerrors.New("validate: snapshot has no collections")
	}

	for _, name := range opts.RequireCollections {
		entries, ok := snap.Collections[name]
		if !ok {
			return xerrors.Newf("validate: collection %q is missing", name)
		}
		if len(entries) == 0 {
			return xerrors.Newf("validate: collection %q is empty", name)
		}
	}

	if opts.MinEntries > 0 {
		if total := snap.Total(); total < opts.MinEntries {
			return xerrors.Newf("validate: snapshot has %d entries, minimum is %d", total, opts.MinEntries)
		}
	}

	return nil
}
