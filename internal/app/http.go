package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"galleria/api/internal/auth"
	"galleria/api/internal/authpw"
	"galleria/api/internal/catalog"
	"galleria/api/internal/directory"
	"galleria/api/internal/search"
	"galleria/api/internal/session"
	"galleria/api/internal/store"
	"galleria/api/internal/upload"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/verify-email" {
		s.handleAuthVerifyEmail(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/reset-password/request" {
		s.handleAuthRequestReset(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/reset-password" {
		s.handleAuthResetPassword(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/auth/state" {
		writeJSON(w, http.StatusOK, map[string]any{"state": s.service.AuthzState(r.Context())})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		sess, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userName":      sess.UserName,
			"userId":        sess.UserID,
			"email":         sess.Email,
			"role":          sess.Role,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		sess, err := s.service.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionJSON(sess))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		sess, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionJSON(sess))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Directory reads (public)
	if r.Method == http.MethodGet && r.URL.Path == "/api/stores" {
		criteria, err := criteriaFromQuery(r)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		entries := s.service.Stores(criteria)
		payload := make([]map[string]any, 0, len(entries))
		for _, entry := range entries {
			payload = append(payload, storeJSON(entry))
		}
		writeJSON(w, http.StatusOK, map[string]any{"stores": payload, "total": len(payload)})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/stores/counts" {
		counts := s.service.StoreCounts()
		perCategory := make([]map[string]any, 0, len(counts.PerCategory))
		for _, pc := range counts.PerCategory {
			perCategory = append(perCategory, map[string]any{
				"category": pc.Category,
				"count":    pc.Count,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"total": counts.Total, "categories": perCategory})
		return
	}

	if parts := splitPath(r.URL.Path); len(parts) == 3 && parts[0] == "api" && parts[1] == "stores" {
		storeID := parts[2]
		switch r.Method {
		case http.MethodGet:
			entry, err := s.service.GetStore(r.Context(), storeID)
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, storeJSON(entry))
			return
		case http.MethodPut:
			sess, ok := s.requireSession(w, r)
			if !ok {
				return
			}
			var body struct {
				Name        *string `json:"name"`
				Description *string `json:"description"`
				Category    *string `json:"category"`
				Location    *string `json:"location"`
				Floor       *string `json:"floor"`
				Block       *string `json:"block"`
				Image       *string `json:"image"`
				Instagram   *string `json:"instagram"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			entry, err := s.service.UpdateStore(r.Context(), sess, storeID, directory.StorePatch{
				Name:        body.Name,
				Description: body.Description,
				Category:    body.Category,
				Location:    body.Location,
				Floor:       body.Floor,
				Block:       body.Block,
				Image:       body.Image,
				Instagram:   body.Instagram,
			})
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, storeJSON(entry))
			return
		case http.MethodDelete:
			sess, ok := s.requireSession(w, r)
			if !ok {
				return
			}
			confirmed := r.URL.Query().Get("confirm") == "true"
			if err := s.service.DeleteStore(r.Context(), sess, storeID, confirmed); err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": storeID})
			return
		}
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/stores" {
		sess, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Category    string `json:"category"`
			Location    string `json:"location"`
			Floor       string `json:"floor"`
			Block       string `json:"block"`
			Image       string `json:"image"`
			Instagram   string `json:"instagram"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		entry, err := s.service.CreateStore(r.Context(), sess, directory.StoreInput{
			Name:        body.Name,
			Description: body.Description,
			Category:    body.Category,
			Location:    body.Location,
			Floor:       body.Floor,
			Block:       body.Block,
			Image:       body.Image,
			Instagram:   body.Instagram,
		})
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, storeJSON(entry))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/banner" {
		writeJSON(w, http.StatusOK, bannerJSON(s.service.Banner()))
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/banner" {
		sess, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		var body struct {
			ImageURL string `json:"imageUrl"`
			Title    string `json:"title"`
			Subtitle string `json:"subtitle"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		banner, err := s.service.UpdateBanner(r.Context(), sess, store.BannerConfig{
			ImageURL: body.ImageURL,
			Title:    body.Title,
			Subtitle: body.Subtitle,
		})
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bannerJSON(banner))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/upload-store-image" {
		sess, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		var body struct {
			FileName string `json:"fileName"`
			FileType string `json:"fileType"`
			FileData []byte `json:"fileData"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		url, err := s.service.UploadStoreImage(r.Context(), sess, upload.File{
			Name:        body.FileName,
			ContentType: body.FileType,
			Data:        body.FileData,
		})
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		query := search.Query{
			Text:     strings.TrimSpace(r.URL.Query().Get("q")),
			Category: r.URL.Query().Get("category"),
			Block:    r.URL.Query().Get("block"),
		}
		if raw := r.URL.Query().Get("floor"); raw != "" {
			floor, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "floor must be numeric", nil)
				return
			}
			query.Floor = &floor
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if limit, err := strconv.Atoi(raw); err == nil {
				query.Limit = limit
			}
		}
		writeJSON(w, http.StatusOK, s.service.Search(query))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/visitors" {
		count, err := s.service.Visitors(r.Context())
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": count})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/visitors" {
		count, err := s.service.RecordVisit(r.Context())
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": count})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return sess, true
}

func (s *HTTPServer) writeMapped(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func criteriaFromQuery(r *http.Request) (catalog.Criteria, error) {
	criteria := catalog.Criteria{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
	}
	if raw := r.URL.Query().Get("category"); raw != "" {
		category, ok := catalog.NormalizeCategory(raw)
		if !ok {
			return catalog.Criteria{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown category %q", raw), nil)
		}
		criteria.Category = &category
	}
	if raw := r.URL.Query().Get("block"); raw != "" {
		if !catalog.ValidBlock(raw) {
			return catalog.Criteria{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown block %q", raw), nil)
		}
		block := catalog.Block(raw)
		criteria.Block = &block
	}
	if raw := r.URL.Query().Get("floor"); raw != "" {
		floor, err := strconv.Atoi(raw)
		if err != nil {
			return catalog.Criteria{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "floor must be numeric", nil)
		}
		criteria.Floor = &floor
	}
	return criteria, nil
}

func sessionJSON(sess Session) map[string]any {
	return map[string]any{
		"token":        sess.Token,
		"refreshToken": sess.RefreshToken,
		"userId":       sess.UserID,
		"userName":     sess.UserName,
		"email":        sess.Email,
		"role":         sess.Role,
	}
}

func storeJSON(entry store.StoreEntry) map[string]any {
	return map[string]any{
		"id":          entry.ID,
		"name":        entry.Name,
		"description": entry.Description,
		"category":    entry.Category,
		"location":    entry.Location,
		"floor":       entry.Floor,
		"block":       entry.Block,
		"imageUrl":    entry.ImageURL,
		"instagram":   entry.Instagram,
		"createdAt":   entry.CreatedAt,
		"updatedAt":   entry.UpdatedAt,
	}
}

func bannerJSON(banner store.BannerConfig) map[string]any {
	return map[string]any{
		"imageUrl": banner.ImageURL,
		"title":    banner.Title,
		"subtitle": banner.Subtitle,
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, session.ErrSessionNotFound) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, directory.ErrValidation) || errors.Is(err, upload.ErrValidation) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	}
	if errors.Is(err, directory.ErrNotConfirmed) {
		return http.StatusUnprocessableEntity, "CONFIRMATION_REQUIRED", "Deletion requires confirmation", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", err.Error(), nil
}

// Auth handlers for email/password authentication

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	resp, err := s.service.AuthPasswordService().SignUp(r.Context(), authpw.SignUpRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"userId":              resp.UserID,
		"requiresEmailVerify": resp.RequiresEmailVerify,
	})
}

func (s *HTTPServer) handleAuthVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.AuthPasswordService().VerifyEmail(r.Context(), body.Token); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleAuthRequestReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if _, err := s.service.AuthPasswordService().RequestPasswordReset(r.Context(), body.Email); err != nil {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", err.Error(), nil)
		return
	}
	// Always succeed so the endpoint cannot be used to probe for accounts.
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleAuthResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.AuthPasswordService().ResetPassword(r.Context(), authpw.ResetPasswordRequest{
		Token:       body.Token,
		NewPassword: body.NewPassword,
	}); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
