package lending

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/erazemk/posoja/internal/imaging"
	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/photos"
	"github.com/erazemk/posoja/internal/store"
)

// checkOffer enforces that a copy offered for loan has a pickup location.
func checkOffer(available bool, loc *model.Point) error {
	if loc != nil && !loc.Valid() {
		return errorf(ErrValidation, "coordinates out of range")
	}
	if available && (loc == nil || !loc.Known()) {
		return errorf(ErrValidation, "a pickup location is required to offer a copy for loan")
	}
	return nil
}

// RegisterCopy records that ownerID physically owns a copy of bookID.
func (s *Service) RegisterCopy(ctx context.Context, ownerID, bookID int64, available bool, loc *model.Point) (*model.Copy, error) {
	if err := checkOffer(available, loc); err != nil {
		return nil, err
	}
	if _, err := s.isAdmin(ctx, ownerID); err != nil {
		return nil, err
	}
	if err := s.requireBook(ctx, bookID); err != nil {
		return nil, err
	}

	c, err := store.CreateCopy(ctx, s.DB, ownerID, bookID, available, loc)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, errorf(ErrConflict, "you already registered a copy of this book")
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetCopy returns a live copy.
func (s *Service) GetCopy(ctx context.Context, copyID int64) (*model.Copy, error) {
	c, err := store.GetCopy(ctx, s.DB, copyID)
	if err != nil {
		return nil, err
	}
	if c == nil || c.DeletedAt != nil {
		return nil, errorf(ErrNotFound, "copy %d not found", copyID)
	}
	return c, nil
}

// EditableCopy returns a live copy the requester may change: their own, or any copy for an admin.
func (s *Service) EditableCopy(ctx context.Context, copyID, requesterID int64) (*model.Copy, error) {
	admin, err := s.isAdmin(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	c, err := s.GetCopy(ctx, copyID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != requesterID && !admin {
		return nil, errorf(ErrAuthorization, "only the owner can change this copy")
	}
	return c, nil
}

// SetAvailability toggles whether the copy is offered for loan.
func (s *Service) SetAvailability(ctx context.Context, copyID, requesterID int64) (*model.Copy, error) {
	c, err := s.EditableCopy(ctx, copyID, requesterID)
	if err != nil {
		return nil, err
	}
	return s.updateCopy(ctx, c, !c.AvailableForLoan, c.Location)
}

// SetLocation replaces the copy's pickup location. A nil location clears it,
// which is only allowed while the copy is not offered.
func (s *Service) SetLocation(ctx context.Context, copyID, requesterID int64, loc *model.Point) (*model.Copy, error) {
	c, err := s.EditableCopy(ctx, copyID, requesterID)
	if err != nil {
		return nil, err
	}
	return s.updateCopy(ctx, c, c.AvailableForLoan, loc)
}

// UpdateCopy sets availability and location together.
func (s *Service) UpdateCopy(ctx context.Context, copyID, requesterID int64, available bool, loc *model.Point) (*model.Copy, error) {
	c, err := s.EditableCopy(ctx, copyID, requesterID)
	if err != nil {
		return nil, err
	}
	return s.updateCopy(ctx, c, available, loc)
}

func (s *Service) updateCopy(ctx context.Context, c *model.Copy, available bool, loc *model.Point) (*model.Copy, error) {
	if err := checkOffer(available, loc); err != nil {
		return nil, err
	}
	if err := store.UpdateCopy(ctx, s.DB, c.ID, available, loc); err != nil {
		return nil, err
	}
	return s.GetCopy(ctx, c.ID)
}

// DeleteCopy withdraws a copy for good. Copies with an open loan cannot be deleted.
func (s *Service) DeleteCopy(ctx context.Context, copyID, requesterID int64) error {
	c, err := s.EditableCopy(ctx, copyID, requesterID)
	if err != nil {
		return err
	}
	err = store.DeleteCopy(ctx, s.DB, c.ID)
	if errors.Is(err, store.ErrOpenLoan) {
		return errorf(ErrConflict, "copy has an open loan")
	}
	return err
}

// ListAvailableCopiesForBook returns every live copy of the book offered for loan.
func (s *Service) ListAvailableCopiesForBook(ctx context.Context, bookID int64) ([]model.Copy, error) {
	if err := s.requireBook(ctx, bookID); err != nil {
		return nil, err
	}
	return store.ListAvailableCopies(ctx, s.DB, bookID)
}

// FindOwnerCopy returns the owner's copy of the book, or nil if they have none.
func (s *Service) FindOwnerCopy(ctx context.Context, ownerID, bookID int64) (*model.Copy, error) {
	return store.FindOwnerCopy(ctx, s.DB, ownerID, bookID)
}

// ListOwnerCopies returns all live copies the owner registered.
func (s *Service) ListOwnerCopies(ctx context.Context, ownerID int64) ([]model.Copy, error) {
	return store.ListOwnerCopies(ctx, s.DB, ownerID)
}

// SetCopyPhoto processes and stores a photo of the copy, replacing any previous one.
func (s *Service) SetCopyPhoto(ctx context.Context, copyID, requesterID int64, r io.Reader) (*model.Copy, error) {
	if s.Photos == nil {
		return nil, errors.New("photo storage not configured")
	}
	c, err := s.EditableCopy(ctx, copyID, requesterID)
	if err != nil {
		return nil, err
	}

	p, err := imaging.ProcessPhoto(r)
	if errors.Is(err, imaging.ErrUnsupportedFormat) || errors.Is(err, imaging.ErrTooLarge) {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err != nil {
		return nil, err
	}

	key := photos.NewKey(c.ID)
	if err := s.Photos.Put(ctx, key, p.Data, p.MIME); err != nil {
		return nil, err
	}
	if err := store.SetCopyPhoto(ctx, s.DB, c.ID, key, p.MIME); err != nil {
		return nil, err
	}
	if c.PhotoKey != "" {
		if err := s.Photos.Delete(ctx, c.PhotoKey); err != nil {
			slog.Warn("failed to delete replaced copy photo", "copy", c.ID, "key", c.PhotoKey, "error", err)
		}
	}
	return s.GetCopy(ctx, c.ID)
}

// CopyPhoto returns the stored photo of a live copy.
func (s *Service) CopyPhoto(ctx context.Context, copyID int64) (io.Reader, string, error) {
	c, err := s.GetCopy(ctx, copyID)
	if err != nil {
		return nil, "", err
	}
	if c.PhotoKey == "" || s.Photos == nil {
		return nil, "", errorf(ErrNotFound, "copy %d has no photo", copyID)
	}
	data, mime, err := s.Photos.Get(ctx, c.PhotoKey)
	if errors.Is(err, photos.ErrNotFound) {
		return nil, "", errorf(ErrNotFound, "copy %d has no photo", copyID)
	}
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(data), mime, nil
}
