package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"neighborhood_directory/internal/domain"
)

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Field  string `json:"field,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func selectLang(al string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(al)), "pt") {
		return "pt"
	}
	return "en"
}

// messages holds the user-facing detail for each error, per language.
var messages = map[string]map[string]string{
	"pt": {
		"not_found":                 "Não encontramos o que você procurava.",
		"unknown_account":           "Não existe conta com este e-mail.",
		"invalid_credentials":       "E-mail ou senha incorretos.",
		"account_disabled":          "Esta conta foi desativada.",
		"email_taken":               "Este e-mail já está cadastrado.",
		"unauthenticated":           "Faça login para continuar.",
		"forbidden":                 "Você não tem permissão para esta ação.",
		"featured_cap":              "Já existem 3 empresas em destaque. Remova uma antes de destacar outra.",
		"owns_businesses":           "Este usuário ainda é dono de empresas. Exclua-as antes de excluir a conta.",
		"internal":                  "Algo deu errado. Tente novamente.",
		"invalid":                   "Dados inválidos.",
		"password.too_short":        "A senha deve ter pelo menos 6 caracteres.",
		"confirm_password.mismatch": "As senhas não coincidem.",
		"required":                  "Campo obrigatório.",
	},
	"en": {
		"not_found":                 "We couldn't find what you were looking for.",
		"unknown_account":           "No account exists for this email.",
		"invalid_credentials":       "Wrong email or password.",
		"account_disabled":          "This account has been disabled.",
		"email_taken":               "This email is already registered.",
		"unauthenticated":           "Please sign in to continue.",
		"forbidden":                 "You are not allowed to do this.",
		"featured_cap":              "3 businesses are already featured. Remove one before featuring another.",
		"owns_businesses":           "This user still owns businesses. Delete them before deleting the account.",
		"internal":                  "Something went wrong. Please try again.",
		"invalid":                   "Invalid input.",
		"password.too_short":        "Password must be at least 6 characters.",
		"confirm_password.mismatch": "Passwords do not match.",
		"required":                  "This field is required.",
	},
}

func msg(lang, key string) string {
	if m, ok := messages[lang][key]; ok {
		return m
	}
	return messages["en"][key]
}

// writeError maps a service error to a localized problem response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	lang := selectLang(r.Header.Get("Accept-Language"))

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		detail := msg(lang, ve.Field+"."+ve.Reason)
		if detail == "" && ve.Reason == "required" {
			detail = msg(lang, "required")
		}
		if detail == "" {
			detail = ve.Error()
		}
		writeProblemBody(w, problem{Type: "about:blank", Title: msg(lang, "invalid"),
			Status: http.StatusBadRequest, Detail: detail, Field: ve.Field})
		return
	}

	status, key := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, key = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrUnknownAccount):
		status, key = http.StatusUnauthorized, "unknown_account"
	case errors.Is(err, domain.ErrInvalidCredentials):
		status, key = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, domain.ErrUnauthenticated):
		status, key = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrAccountDisabled):
		status, key = http.StatusForbidden, "account_disabled"
	case errors.Is(err, domain.ErrForbidden):
		status, key = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrEmailTaken):
		status, key = http.StatusConflict, "email_taken"
	case errors.Is(err, domain.ErrFeaturedCapReached):
		status, key = http.StatusConflict, "featured_cap"
	case errors.Is(err, domain.ErrOwnsBusinesses):
		status, key = http.StatusConflict, "owns_businesses"
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	writeProblem(w, status, http.StatusText(status), msg(lang, key))
}
