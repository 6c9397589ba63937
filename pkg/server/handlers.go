package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"

	"recordguard-hq/recordguard/pkg/audit"
	"recordguard-hq/recordguard/pkg/engine"
	"recordguard-hq/recordguard/pkg/schema"
	"recordguard-hq/recordguard/pkg/server/auth"
	"recordguard-hq/recordguard/pkg/server/middleware"
	"recordguard-hq/recordguard/pkg/server/tlsconfig"
	"recordguard-hq/recordguard/pkg/validation"
)

// ValidateRequest is the body of POST /v1/validate and one item of a batch.
type ValidateRequest struct {
	Record  validation.Record   `json:"record"`
	Context *validation.Context `json:"context"`
}

// ValidateResponse reports one validation.
type ValidateResponse struct {
	Valid  bool               `json:"valid"`
	Result *validation.Result `json:"result"`
}

// BatchRequest is the body of POST /v1/validate/batch.
type BatchRequest struct {
	Items []ValidateRequest `json:"items"`
}

// BatchResponse reports a batch in input order.
type BatchResponse struct {
	Valid   int                `json:"valid"`
	Invalid int                `json:"invalid"`
	Results []ValidateResponse `json:"results"`
}

// SchemaSummary lists the registered versions of one entity type.
type SchemaSummary struct {
	EntityType string   `json:"entity_type"`
	Versions   []string `json:"versions"`
}

// SchemasResponse is the body of GET /v1/schemas.
type SchemasResponse struct {
	Schemas []SchemaSummary `json:"schemas"`
	Stats   schema.Stats    `json:"stats"`
}

// FieldDescriptor describes one schema field.
type FieldDescriptor struct {
	Name     string      `json:"name"`
	Kind     schema.Kind `json:"kind"`
	Required bool        `json:"required,omitempty"`
	ReadOnly bool        `json:"read_only,omitempty"`
	PII      bool        `json:"pii,omitempty"`
	Format   string      `json:"format,omitempty"`
	Enum     []any       `json:"enum,omitempty"`
}

// SchemaDescriptor is the body of GET /v1/schemas/{type}.
type SchemaDescriptor struct {
	EntityType       string            `json:"entity_type"`
	Version          string            `json:"version"`
	Description      string            `json:"description,omitempty"`
	AdditionalFields bool              `json:"additional_fields"`
	Fields           []FieldDescriptor `json:"fields"`
	BusinessRules    []string          `json:"business_rules,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !s.decode(w, r, &req) {
		return
	}
	vctx := withTransport(r, req.Context, s.config.TLS.MTLS.IdentitySource)

	result, err := s.validator.Validate(r.Context(), req.Record, vctx)
	if err != nil {
		var vfe *validation.ValidationFailedError
		if errors.As(err, &vfe) && result != nil {
			writeJSON(w, http.StatusUnprocessableEntity, ValidateResponse{Valid: false, Result: result})
			return
		}
		s.writeValidationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: result.Valid(), Result: result})
}

func (s *Server) handleValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Items) > s.config.MaxBatchItems {
		middleware.WriteError(w, r, http.StatusRequestEntityTooLarge, "batch_too_large",
			fmt.Sprintf("batch has %d items, the limit is %d", len(req.Items), s.config.MaxBatchItems))
		return
	}

	items := make([]engine.Item, len(req.Items))
	for i, item := range req.Items {
		items[i] = engine.Item{Record: item.Record, Context: withTransport(r, item.Context, s.config.TLS.MTLS.IdentitySource)}
	}

	results := s.validator.ValidateBatch(r.Context(), items)
	resp := BatchResponse{Results: make([]ValidateResponse, len(results))}
	for i, result := range results {
		valid := result.Valid()
		if valid {
			resp.Valid++
		} else {
			resp.Invalid++
		}
		resp.Results[i] = ValidateResponse{Valid: valid, Result: result}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	reg := s.validator.Registry()
	resp := SchemasResponse{Schemas: []SchemaSummary{}, Stats: reg.Stats()}
	for _, t := range reg.Types() {
		resp.Schemas = append(resp.Schemas, SchemaSummary{EntityType: t, Versions: reg.Versions(t)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	entityType := r.PathValue("type")
	version := r.URL.Query().Get("version")

	reg := s.validator.Registry()
	if !reg.Has(entityType, version) {
		middleware.WriteError(w, r, http.StatusNotFound, "schema_not_found",
			fmt.Sprintf("no schema registered for %q", entityType))
		return
	}
	es, ok := reg.Get(entityType, version)
	if !ok {
		middleware.WriteError(w, r, http.StatusNotFound, "schema_not_found",
			fmt.Sprintf("no schema registered for %q", entityType))
		return
	}
	writeJSON(w, http.StatusOK, describe(es))
}

func describe(es *schema.EntitySchema) SchemaDescriptor {
	d := SchemaDescriptor{
		EntityType:       es.EntityType,
		Version:          es.Version,
		Description:      es.Metadata.Description,
		AdditionalFields: es.AdditionalFields,
		Fields:           make([]FieldDescriptor, 0, len(es.Fields)),
	}
	for _, f := range es.Fields {
		d.Fields = append(d.Fields, FieldDescriptor{
			Name:     f.Name,
			Kind:     f.Kind,
			Required: f.Required,
			ReadOnly: f.ReadOnly,
			PII:      f.PII,
			Format:   f.Format,
			Enum:     f.Enum,
		})
	}
	for _, rule := range es.BusinessRules {
		d.BusinessRules = append(d.BusinessRules, rule.ID)
	}
	return d
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.validator.PerformanceStatistics())
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	var entries []audit.Entry
	switch audit.Category(r.PathValue("category")) {
	case audit.CategorySecurity:
		entries = s.validator.AuditLog()
	case audit.CategoryCompliance:
		entries = s.validator.ComplianceAuditLog()
	case audit.CategoryOps:
		entries = s.validator.LifecycleLog()
	default:
		middleware.WriteError(w, r, http.StatusNotFound, "unknown_category",
			fmt.Sprintf("unknown audit category %q", r.PathValue("category")))
		return
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			middleware.WriteError(w, r, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		if limit < len(entries) {
			entries = entries[len(entries)-limit:]
		}
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// decode reads a JSON body into v, writing an error response on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid_request",
			fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// writeValidationError maps engine errors to HTTP statuses.
func (s *Server) writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		secErr  *validation.SecurityViolationError
		compErr *validation.ComplianceViolationError
		sanErr  *validation.SanitizationError
	)
	switch {
	case errors.Is(err, validation.ErrInvalidContext):
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid_context", err.Error())
	case errors.As(err, &secErr):
		middleware.WriteError(w, r, http.StatusForbidden, "security_violation", err.Error())
	case errors.As(err, &compErr):
		middleware.WriteError(w, r, http.StatusForbidden, "compliance_violation", err.Error())
	case errors.As(err, &sanErr):
		middleware.WriteError(w, r, http.StatusUnprocessableEntity, "sanitization_failed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		middleware.WriteError(w, r, http.StatusGatewayTimeout, "timeout", "validation did not finish within the request timeout")
	case errors.Is(err, context.Canceled):
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "cancelled", "validation was cancelled")
	default:
		s.logger.ErrorContext(r.Context(), "validation error",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err)
		middleware.WriteError(w, r, http.StatusInternalServerError, "internal_error", "validation failed unexpectedly")
	}
}

// withTransport completes the caller's context from the request. An
// authenticated API key replaces the user, roles and permissions; otherwise
// a verified client certificate supplies the user when none was given. The
// address and user agent are filled when empty. The caller's context is
// not modified.
func withTransport(r *http.Request, vctx *validation.Context, identitySource string) *validation.Context {
	if vctx == nil {
		return nil
	}
	out := *vctx
	var sec validation.SecurityContext
	if vctx.Security != nil {
		sec = *vctx.Security
	}

	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		out.UserID = p.UserID
		sec.UserID = p.UserID
		sec.Roles = p.Roles
		sec.Permissions = p.Permissions
	} else if id := tlsconfig.ClientIdentity(r, identitySource); id != "" {
		if sec.UserID == "" {
			sec.UserID = id
		}
		if out.UserID == "" {
			out.UserID = id
		}
	}

	if vctx.Security == nil && sec.UserID == "" {
		return &out
	}
	if sec.UserID == "" {
		sec.UserID = out.UserID
	}
	if sec.IPAddress == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			sec.IPAddress = host
		}
	}
	if sec.UserAgent == "" {
		sec.UserAgent = r.UserAgent()
	}
	sec.Roles = slices.Clone(sec.Roles)
	sec.Permissions = slices.Clone(sec.Permissions)
	out.Security = &sec
	return &out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
