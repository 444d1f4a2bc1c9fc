// Package localstore persists guest carts as JSON files on local disk, one
// file per anonymous session. It plays the role browser storage would for a
// guest shopper: cheap, durable enough, and wiped once the cart is merged
// into the authenticated user's remote cart.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gearstore/api/internal/domain"
)

const fileExtension = ".json"

// Error categorises guest store failures for the service layer.
type Error struct {
	op       string
	err      error
	notFound bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("guest store %s: %v", e.op, e.err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether no cart exists for the session.
func (e *Error) IsNotFound() bool { return e != nil && e.notFound }

// IsConflict always reports false; the store has no concurrent writers per session.
func (e *Error) IsConflict() bool { return false }

// IsUnavailable reports whether the failure is an IO error rather than a missing cart.
func (e *Error) IsUnavailable() bool { return e != nil && !e.notFound }

type guestCartFile struct {
	Items     []guestCartItem `json:"items"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type guestCartItem struct {
	ProductID string `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Store reads and writes guest carts under a base directory.
type Store struct {
	dir string
}

// NewStore constructs a Store rooted at dir, creating it when missing.
func NewStore(dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("guest store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("guest store: create directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// ReadGuestCart loads the cart for the given session.
func (s *Store) ReadGuestCart(ctx context.Context, sessionID string) (domain.Cart, error) {
	path, err := s.path(sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Cart{}, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Cart{}, &Error{op: "read", err: err, notFound: true}
	}
	if err != nil {
		return domain.Cart{}, &Error{op: "read", err: err}
	}

	var file guestCartFile
	if err := json.Unmarshal(data, &file); err != nil {
		return domain.Cart{}, &Error{op: "decode", err: err}
	}

	items := make([]domain.CartItem, 0, len(file.Items))
	for _, item := range file.Items {
		items = append(items, domain.CartItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Image:     item.Image,
			Quantity:  item.Quantity,
		})
	}
	return domain.Cart{Items: items}, nil
}

// WriteGuestCart stores the cart for the given session, replacing any previous
// contents. The write goes through a temp file and rename so readers never see
// a partial cart.
func (s *Store) WriteGuestCart(ctx context.Context, sessionID string, cart domain.Cart) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	items := make([]guestCartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, guestCartItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.UnitPrice,
			Image:     item.Image,
			Quantity:  item.Quantity,
		})
	}

	data, err := json.Marshal(guestCartFile{
		Items:     items,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return &Error{op: "encode", err: err}
	}

	tmp, err := os.CreateTemp(s.dir, "cart-*.tmp")
	if err != nil {
		return &Error{op: "write", err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &Error{op: "write", err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &Error{op: "write", err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &Error{op: "write", err: err}
	}
	return nil
}

// DeleteGuestCart removes the stored cart. Deleting a missing cart is not an error.
func (s *Store) DeleteGuestCart(ctx context.Context, sessionID string) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &Error{op: "delete", err: err}
	}
	return nil
}

func (s *Store) path(sessionID string) (string, error) {
	cleaned := sanitizeSessionID(sessionID)
	if cleaned == "" {
		return "", &Error{op: "session", err: errors.New("invalid session id"), notFound: true}
	}
	return filepath.Join(s.dir, cleaned+fileExtension), nil
}

// sanitizeSessionID keeps only characters safe for a file name. Session IDs
// are ULIDs in practice, anything else is rejected.
func sanitizeSessionID(sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || len(sessionID) > 64 {
		return ""
	}
	for _, r := range sessionID {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return ""
		}
	}
	return sessionID
}
