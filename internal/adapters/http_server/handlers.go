package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"neighborhood_directory/internal/app"
	"neighborhood_directory/internal/domain"
	"neighborhood_directory/internal/search"
)

type Handlers struct {
	Directory *app.DirectoryService
	Reviews   *app.ReviewService
	Auth      *app.AuthService
	Account   *app.AccountService
	Owner     *app.OwnerService
	Admin     *app.AdminService
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", s.healthz)

	s.mux.Route("/v1", func(r chi.Router) {
		r.Use(Authenticate(h.Auth))

		r.Get("/businesses", h.searchBusinesses)
		r.Get("/businesses/{id}", h.getBusiness)
		r.Get("/businesses/{id}/reviews", h.listReviews)
		r.Get("/featured", h.featured)

		r.Post("/auth/register", h.register)
		r.Post("/auth/register-business", h.registerBusiness)
		r.Post("/auth/login", h.login)
		r.Post("/auth/logout", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole())
			r.Post("/businesses/{id}/reviews", h.submitReview)
			r.Get("/me", h.me)
			r.Get("/me/favorites", h.favorites)
			r.Put("/me/favorites/{id}", h.addFavorite)
			r.Delete("/me/favorites/{id}", h.removeFavorite)
		})

		r.Route("/owner", func(r chi.Router) {
			r.Use(RequireRole(domain.RoleOwner, domain.RoleAdmin))
			r.Get("/businesses", h.myBusinesses)
			r.Patch("/businesses/{id}", h.updateBusiness)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(domain.RoleAdmin))
			r.Get("/businesses", h.adminBusinesses)
			r.Put("/businesses/{id}/featured", h.setFeatured)
			r.Delete("/businesses/{id}", h.deleteBusiness)
			r.Get("/users", h.adminUsers)
			r.Put("/users/{id}/disabled", h.setUserDisabled)
			r.Put("/users/{id}/role", h.setUserRole)
			r.Delete("/users/{id}", h.deleteUser)
		})
	})
}

// ---- encoding helpers ----

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeETagged answers 304 when the client already holds this version.
func writeETagged(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &domain.ValidationError{Field: "body", Reason: "malformed JSON"}
	}
	return nil
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func list[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

// ---- public ----

func parseCriteria(q url.Values) (search.Criteria, error) {
	c := search.Criteria{Query: strings.TrimSpace(q.Get("q"))}
	for _, raw := range q["category"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			cat, err := domain.ParseCategory(part)
			if err != nil {
				return c, err
			}
			c.Categories = append(c.Categories, cat)
		}
	}
	if v := q.Get("min_rating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c, &domain.ValidationError{Field: "min_rating", Reason: "must be a number"}
		}
		c.MinRating = f
	}
	if v := q.Get("open_now"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c, &domain.ValidationError{Field: "open_now", Reason: "must be true or false"}
		}
		c.OpenNow = b
	}
	key, err := search.ParseSortKey(q.Get("sort"))
	if err != nil {
		return c, err
	}
	c.SortBy = key
	return c, nil
}

func (h *Handlers) searchBusinesses(w http.ResponseWriter, r *http.Request) {
	c, err := parseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Directory.Search(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeETagged(w, r, list(out))
}

func (h *Handlers) getBusiness(w http.ResponseWriter, r *http.Request) {
	b, err := h.Directory.GetBusiness(r.Context(), chi.URLParam(r, "id"), app.Viewer(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeETagged(w, r, b)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	limit := app.DefaultReviewLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil {
			writeError(w, r, &domain.ValidationError{Field: "limit", Reason: "must be between 1 and 200"})
			return
		}
		limit = l
	}
	out, err := h.Directory.ListReviews(r.Context(), chi.URLParam(r, "id"), limit, app.Viewer(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeETagged(w, r, list(out))
}

func (h *Handlers) featured(w http.ResponseWriter, r *http.Request) {
	out, err := h.Directory.Featured(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeETagged(w, r, list(out))
}

// ---- auth ----

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := decodeJSON(w, r, &reg); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.Auth.Register(r.Context(), reg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type registerBusinessRequest struct {
	Account  domain.Registration `json:"account"`
	Business domain.Business     `json:"business"`
}

func (h *Handlers) registerBusiness(w http.ResponseWriter, r *http.Request) {
	var req registerBusinessRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, b, err := h.Auth.RegisterBusiness(r.Context(), req.Account, req.Business)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u, "business": b})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Session   domain.Session `json:"session"`
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tok, sess, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: tok, ExpiresAt: sess.ExpiresAt, Session: sess})
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	tok := bearerToken(r)
	if tok == "" {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	if err := h.Auth.Logout(r.Context(), tok); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- signed-in ----

// session is only called behind RequireRole, so the session is present.
func session(r *http.Request) domain.Session {
	s, _ := app.SessionFrom(r.Context())
	return s
}

func (h *Handlers) submitReview(w http.ResponseWriter, r *http.Request) {
	var in app.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rv, err := h.Reviews.Submit(r.Context(), session(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Account.Me(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handlers) favorites(w http.ResponseWriter, r *http.Request) {
	out, err := h.Account.Favorites(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(out))
}

func (h *Handlers) addFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.Account.AddFavorite(r.Context(), session(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) removeFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.Account.RemoveFavorite(r.Context(), session(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- owner ----

func (h *Handlers) myBusinesses(w http.ResponseWriter, r *http.Request) {
	out, err := h.Owner.MyBusinesses(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(out))
}

func (h *Handlers) updateBusiness(w http.ResponseWriter, r *http.Request) {
	var patch domain.BusinessPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.Owner.Update(r.Context(), session(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ---- admin ----

func (h *Handlers) adminBusinesses(w http.ResponseWriter, r *http.Request) {
	out, err := h.Admin.ListBusinesses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(out))
}

// decodeFlag reads {"<field>": bool}; the field is required.
func decodeFlag(w http.ResponseWriter, r *http.Request, field string) (bool, error) {
	var body map[string]*bool
	if err := decodeJSON(w, r, &body); err != nil {
		return false, err
	}
	v, ok := body[field]
	if !ok || v == nil {
		return false, &domain.ValidationError{Field: field, Reason: "required"}
	}
	return *v, nil
}

func (h *Handlers) setFeatured(w http.ResponseWriter, r *http.Request) {
	on, err := decodeFlag(w, r, "featured")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Admin.SetFeatured(r.Context(), chi.URLParam(r, "id"), on); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) deleteBusiness(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.DeleteBusiness(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) adminUsers(w http.ResponseWriter, r *http.Request) {
	out, err := h.Admin.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(out))
}

func (h *Handlers) setUserDisabled(w http.ResponseWriter, r *http.Request) {
	off, err := decodeFlag(w, r, "disabled")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Admin.SetUserDisabled(r.Context(), session(r), chi.URLParam(r, "id"), off); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) setUserRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role domain.Role `json:"role"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Admin.SetUserRole(r.Context(), chi.URLParam(r, "id"), body.Role); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.DeleteUser(r.Context(), session(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
