// Package promotion implements the Promotion Service (C7): moving a
// staged file from Temp to its permanent Originals path and updating
// the Location row consistently, per spec §4.2's promotion algorithm
// and §9's "compute destination, rename, then transact" ordering
// (never hold a database transaction open across a filesystem move,
// and never across the child-process call that precedes it).
package promotion

import (
	"os"
	"path/filepath"

	"github.com/ovacore/photonic/internal/apperr"
	"github.com/ovacore/photonic/internal/repository/media"
	"github.com/ovacore/photonic/pkg/storage"
)

// Service renames staged files into their permanent location. It holds
// no database handle: the caller (Enrichment, C6) updates the
// Location row itself, inside its own transaction, using the Result
// this returns.
type Service struct {
	locator *storage.Locator
}

func New(locator *storage.Locator) *Service {
	return &Service{locator: locator}
}

// Result carries everything the caller needs to update the Location
// row, and everything Rollback needs to undo the move if that update
// fails.
type Result struct {
	NewLocation  media.Location
	tempAbsPath  string
	destAbsPath  string
}

// Promote computes the destination path from opts (spec §4.2 step 1;
// date may be client-supplied or the extractor's enrichment), resolves
// it against the Originals base enforcing the canonical-descent and
// extension checks (steps 2-3), ensures the parent directory exists
// (step 4), and renames the temp file onto it (step 5).
//
// A destination that already exists is treated as a collision: the
// rename is refused before it runs and KindFileAlreadyExists is
// returned, leaving the Temp file and its Location row untouched
// (spec §5, scenario 4) — os.Rename itself would silently replace an
// existing file on POSIX, which is not the behavior spec.md asks for.
func (s *Service) Promote(tempLoc media.Location, opts storage.Options) (Result, error) {
	relPath := s.locator.ToPath(opts)

	destAbsPath, err := s.locator.ResolveOriginalsDestination(relPath)
	if err != nil {
		return Result{}, err
	}

	tempAbsPath, err := s.locator.Resolve(tempLoc)
	if err != nil {
		return Result{}, err
	}

	if _, err := os.Stat(destAbsPath); err == nil {
		return Result{}, apperr.New(apperr.KindFileAlreadyExists,
			"promotion destination already exists: "+destAbsPath)
	} else if !os.IsNotExist(err) {
		return Result{}, apperr.Wrap(apperr.KindIoFailure, "stat promotion destination", err)
	}

	if err := os.MkdirAll(filepath.Dir(destAbsPath), 0o755); err != nil {
		return Result{}, apperr.Wrap(apperr.KindIoFailure, "create destination directory", err)
	}

	if err := os.Rename(tempAbsPath, destAbsPath); err != nil {
		return Result{}, apperr.Wrap(apperr.KindIoFailure, "rename staged file to destination", err)
	}

	return Result{
		NewLocation: media.Location{
			ItemID:  tempLoc.ItemID,
			Variant: media.VariantOriginals,
			Path:    relPath,
		},
		tempAbsPath: tempAbsPath,
		destAbsPath: destAbsPath,
	}, nil
}

// Rollback reverses a successful Promote whose subsequent transaction
// commit failed (spec §4.2 failure recovery): it renames the file
// back to its temp path. If the reverse move also fails, the caller
// must log and surface a compound error; the Location row still reads
// Temp, so a periodic reconciler can detect the inconsistency.
func (s *Service) Rollback(r Result) error {
	if err := os.Rename(r.destAbsPath, r.tempAbsPath); err != nil {
		return apperr.Wrap(apperr.KindIoFailure, "reverse rename after failed commit", err)
	}
	return nil
}
