package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/Pusher91/fieldbutton/internal/bitrix"
	"github.com/Pusher91/fieldbutton/internal/domain"
)

type pageData struct {
	Title      string
	Host       string
	Field      domain.FieldDefinition
	Domain     string
	Message    string
	StatusCode int
}

// handleRoot serves the instructions page, or registers the field type when
// an auth query parameter is present. Any method is accepted.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.notFound(w, r)
		return
	}

	q := r.URL.Query()
	host := requestHostname(r)

	if !q.Has("auth") {
		s.renderPage(w, http.StatusOK, "instructions.html", pageData{
			Title: "Registro de Campo Personalizado Bitrix24",
			Host:  host,
			Field: s.field,
		})
		return
	}

	res, err := s.registrar.Register(r.Context(), domain.RegistrationRequest{
		Domain:     q.Get("domain"),
		AuthToken:  q.Get("auth"),
		HandlerURL: s.handlerURL(r),
	})

	var (
		vErr   *domain.ValidationError
		apiErr *bitrix.APIError
		tErr   *bitrix.TransportError
	)

	switch {
	case err == nil && res.Cached:
		writeText(w, http.StatusOK, fmt.Sprintf("✅ El campo personalizado '%s' ya está registrado.", s.field.ID))

	case err == nil:
		s.renderPage(w, http.StatusOK, "success.html", pageData{
			Title:  "Campo Registrado Correctamente",
			Host:   host,
			Field:  s.field,
			Domain: res.Domain,
		})

	case errors.As(err, &vErr):
		if _, ok := vErr.Details["auth"]; ok {
			writeText(w, http.StatusBadRequest, "❌ El token de autenticación no puede estar vacío")
			return
		}
		writeText(w, http.StatusBadRequest, "❌ Solicitud no válida: "+vErr.Error())

	case errors.As(err, &apiErr):
		writeText(w, http.StatusBadRequest, "❌ Error al registrar el campo: "+string(apiErr.Payload))

	case errors.As(err, &tErr):
		s.logger.Error("Registration failed",
			"domain", tErr.Domain,
			"endpoint", tErr.Endpoint,
			"status", tErr.StatusCode,
			"error", tErr.Message)
		s.renderPage(w, http.StatusInternalServerError, "error.html", pageData{
			Title:      "Error",
			Host:       host,
			Field:      s.field,
			Message:    tErr.Message,
			StatusCode: tErr.StatusCode,
		})

	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) handlerURL(r *http.Request) string {
	if s.publicURL != "" {
		return s.publicURL + s.field.HandlerPath
	}
	return "https://" + requestHostname(r) + s.field.HandlerPath
}

// requestHostname is the Host header without its port.
func requestHostname(r *http.Request) string {
	host := strings.TrimSpace(r.Host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Failed to render page", "page", name, "error", err)
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusNotFound, "Página no encontrada")
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("Unhandled error", "method", r.Method, "path", r.URL.Path, "error", err)
	writeText(w, http.StatusInternalServerError, "Error interno del servidor")
}
