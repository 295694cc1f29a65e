package main

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pkalnins/arena/internal/apperrors"
	"github.com/pkalnins/arena/internal/battle"
	"github.com/pkalnins/arena/internal/httputil"
	"github.com/pkalnins/arena/internal/middleware"
	"github.com/pkalnins/arena/internal/realtime"
	"github.com/pkalnins/arena/internal/service"
	"github.com/pkalnins/arena/internal/store"
)

type createBattleRequest struct {
	Name             string          `json:"name"`
	ShortDescription string          `json:"short_description"`
	Configuration    json.RawMessage `json:"configuration"`
	StartMode        string          `json:"start_mode"`
	ScheduledStartAt *time.Time      `json:"scheduled_start_at"`
}

type updateBattleRequest struct {
	Name             *string         `json:"name"`
	ShortDescription *string         `json:"short_description"`
	Configuration    json.RawMessage `json:"configuration"`
	Status           *string         `json:"status"`
	StartMode        *string         `json:"start_mode"`
	ScheduledStartAt *time.Time      `json:"scheduled_start_at"`
}

type joinBattleRequest struct {
	Role string `json:"role"`
}

type inviteRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

type joinBattleResponse struct {
	Participant *battle.Participant `json:"participant"`
	WasCreated  bool                `json:"was_created"`
}

type permissionsResponse struct {
	Role        battle.Role              `json:"role"`
	Status      battle.ParticipantStatus `json:"status"`
	Permissions []battle.Capability      `json:"permissions"`
}

func newRouter(
	sessionManager *scs.SessionManager,
	userStore *store.UserStore,
	battleService *service.BattleService,
	participationService *service.ParticipationService,
	userService *service.UserService,
	hub *realtime.Hub,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(sessionManager.LoadAndSave)

	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		user, err := userService.EnsureGuestUser(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to login as guest", err)
			return
		}

		sessionManager.Put(r.Context(), "userID", user.ID.String())
		httputil.WriteJSON(w, http.StatusOK, user)
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		sessionManager.Destroy(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(sessionManager, userStore))

		r.Get("/api/me", func(w http.ResponseWriter, r *http.Request) {
			user := middleware.GetAuthenticatedUser(r.Context())
			if user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, user)
		})

		r.Get("/api/battles", func(w http.ResponseWriter, r *http.Request) {
			battles, err := battleService.ListBattles(r.Context())
			if err != nil {
				httputil.InternalServerError(w, "Failed to list battles", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, battles)
		})

		r.Post("/api/battles", func(w http.ResponseWriter, r *http.Request) {
			var req createBattleRequest
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			b, err := battleService.CreateBattle(r.Context(), service.CreateBattleInput{
				Name:             req.Name,
				ShortDescription: req.ShortDescription,
				Configuration:    req.Configuration,
				StartMode:        battle.StartMode(req.StartMode),
				ScheduledStartAt: req.ScheduledStartAt,
			})
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, b)
		})

		r.Get("/api/battles/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid battle ID", err)
				return
			}

			b, err := battleService.GetBattle(r.Context(), id)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, b)
		})

		r.Patch("/api/battles/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid battle ID", err)
				return
			}

			if err := requireCapability(r, participationService, id, battle.CapConfigure); err != nil {
				httputil.WriteError(w, err)
				return
			}

			var req updateBattleRequest
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			input := service.UpdateBattleInput{
				Name:             req.Name,
				ShortDescription: req.ShortDescription,
				Configuration:    req.Configuration,
				ScheduledStartAt: req.ScheduledStartAt,
			}
			if req.Status != nil {
				status := battle.Status(*req.Status)
				input.Status = &status
			}
			if req.StartMode != nil {
				mode := battle.StartMode(*req.StartMode)
				input.StartMode = &mode
			}

			b, err := battleService.UpdateBattle(r.Context(), id, input)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, b)
		})

		r.Post("/api/battles/{id}/start", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid battle ID", err)
				return
			}

			if err := requireCapability(r, participationService, id, battle.CapStart); err != nil {
				httputil.WriteError(w, err)
				return
			}

			b, err := battleService.StartBattle(r.Context(), id)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, b)
		})

		r.Post("/api/battles/{id}/join", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid battle ID", err)
				return
			}

			// The body is optional: a bare join means "join as player".
			var req joinBattleRequest
			if err := httputil.DecodeJSON(r, &req); err != nil && err != io.EOF {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			p, wasCreated, err := participationService.JoinBattle(r.Context(), service.JoinBattleInput{
				BattleID: id,
				Role:     battle.Role(req.Role),
			})
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			status := http.StatusOK
			if wasCreated {
				status = http.StatusCreated
			}
			httputil.WriteJSON(w, status, joinBattleResponse{Participant: p, WasCreated: wasCreated})
		})

		r.Post("/api/battles/{id}/invites", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid battle ID", err)
				return
			}

			var req inviteRequest
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			invite, err := participationService.InviteParticipant(r.Context(), service.InviteInput{
				BattleID: id,
				UserID:   req.UserID,
				Role:     battle.Role(req.Role),
			})
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, invite)
		})

		r.Get("/api/battles/{id}/participants", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid battle ID", err)
				return
			}

			participants, err := participationService.ListParticipants(r.Context(), id)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, participants)
		})

		r.Get("/api/battles/{id}/permissions", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid battle ID", err)
				return
			}

			userID, _ := middleware.GetUserIDFromContext(r.Context())
			p, err := participationService.GetParticipant(r.Context(), id, userID)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, permissionsResponse{
				Role:        p.Role,
				Status:      p.Status,
				Permissions: battle.Permissions(p.Role),
			})
		})

		r.Get("/api/battles/{id}/ws", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid battle ID", err)
				return
			}
			hub.ServeWS(w, r, id)
		})
	})

	return r
}

// requireCapability checks that the acting user is an accepted participant
// holding the capability. The engine itself is role-agnostic for start;
// the authorization lives at this boundary.
func requireCapability(r *http.Request, participationService *service.ParticipationService, battleID uuid.UUID, capability battle.Capability) error {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		return apperrors.Forbidden("no authenticated user")
	}

	p, err := participationService.GetParticipant(r.Context(), battleID, userID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return apperrors.Forbidden("not a participant of this battle")
		}
		return err
	}
	if p.Status != battle.ParticipantAccepted || !p.Role.Can(capability) {
		return apperrors.Forbidden("missing %q permission for this battle", capability)
	}
	return nil
}
