package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gearstore/api/internal/platform/auth"
	"github.com/gearstore/api/internal/platform/httpx"
	"github.com/gearstore/api/internal/services"
)

// MeHandlers exposes the signed-in shopper's profile.
type MeHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewMeHandlers constructs handlers enforcing authentication before profile access.
func NewMeHandlers(authn *auth.Authenticator, users services.UserService) *MeHandlers {
	return &MeHandlers{
		authn: authn,
		users: users,
	}
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.getProfile)
	r.Put("/", h.updateProfile)
}

type addressPayload struct {
	ID         string `json:"id,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
	Line1      string `json:"address"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type profilePayload struct {
	UID         string           `json:"uid"`
	DisplayName string           `json:"displayName,omitempty"`
	Email       string           `json:"email,omitempty"`
	Phone       string           `json:"phone,omitempty"`
	Addresses   []addressPayload `json:"addresses,omitempty"`
}

func buildProfilePayload(profile services.UserProfile) profilePayload {
	addresses := make([]addressPayload, 0, len(profile.Addresses))
	for _, addr := range profile.Addresses {
		addresses = append(addresses, addressPayload{
			ID:         addr.ID,
			Recipient:  addr.Recipient,
			Line1:      addr.Line1,
			City:       addr.City,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
			Phone:      addr.Phone,
		})
	}
	return profilePayload{
		UID:         profile.UID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		Phone:       profile.Phone,
		Addresses:   addresses,
	}
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.users != nil)
	if !ok {
		return
	}

	profile, err := h.users.GetProfile(ctx, identity.UID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			// A fresh account has no profile document yet; surface the
			// identity fields so clients can render something.
			httpx.WriteJSON(ctx, w, http.StatusOK, profilePayload{
				UID:         identity.UID,
				DisplayName: identity.DisplayName,
				Email:       identity.Email,
			})
			return
		}
		h.writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildProfilePayload(profile))
}

type updateProfileRequest struct {
	DisplayName string           `json:"displayName,omitempty"`
	Phone       string           `json:"phone,omitempty"`
	Addresses   []addressPayload `json:"addresses,omitempty"`
}

func (h *MeHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.users != nil)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	addresses := make([]services.Address, 0, len(req.Addresses))
	for _, addr := range req.Addresses {
		addresses = append(addresses, services.Address{
			ID:         addr.ID,
			Recipient:  addr.Recipient,
			Line1:      addr.Line1,
			City:       addr.City,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
			Phone:      addr.Phone,
		})
	}

	profile, err := h.users.UpdateProfile(ctx, services.UpdateProfileCommand{
		UserID:      identity.UID,
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
		Addresses:   addresses,
	})
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildProfilePayload(profile))
}

func (h *MeHandlers) writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "profile request is invalid", http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("profile_not_found", "profile not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("profile_unavailable", "profile is temporarily unavailable", http.StatusServiceUnavailable))
	}
}
