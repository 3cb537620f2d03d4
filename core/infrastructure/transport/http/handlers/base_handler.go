package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/hyperterse/querygate/core/infrastructure/logging"
	"github.com/hyperterse/querygate/core/infrastructure/transport/http/dto"
	"github.com/hyperterse/querygate/core/infrastructure/transport/http/middleware"
	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

// maxBodyBytes caps request bodies; queries and descriptors are small
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	logger logging.Logger
}

// NewBaseHandler creates a new base handler
func NewBaseHandler(tag string) *BaseHandler {
	return &BaseHandler{
		logger: logging.New(tag),
	}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

// WriteError writes a classified error response. Unclassified errors are
// reported as internal without leaking their message.
func (h *BaseHandler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var gwErr *gwerrors.GatewayError
	body := dto.ErrorBody{Kind: string(gwerrors.KindInternal), Message: "internal error"}
	if errors.As(err, &gwErr) {
		body = dto.ErrorBody{Kind: string(gwErr.Kind), Engine: gwErr.Engine, Message: gwErr.Error()}
	} else {
		h.logger.Errorf("Unclassified error: %v", err)
	}

	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		route = rctx.RoutePattern()
	}
	middleware.RecordGatewayError(route, body.Kind)

	h.WriteJSON(w, gwerrors.StatusOf(err), dto.ErrorResponse{
		Success: false,
		Error:   body,
	})
}

// WriteValidationError writes a validation error response
func (h *BaseHandler) WriteValidationError(w http.ResponseWriter, message string, details []dto.ErrorDetail) {
	h.WriteJSON(w, http.StatusBadRequest, dto.ValidationErrorResponse{
		Success: false,
		Error:   dto.ErrorBody{Kind: string(gwerrors.KindInvalidInput), Message: message},
		Details: details,
	})
}

// WriteSuccess writes a success response
func (h *BaseHandler) WriteSuccess(w http.ResponseWriter, data any) {
	h.WriteJSON(w, http.StatusOK, data)
}

// DecodeAndValidate reads a JSON body into dst and runs its validate tags.
// It writes the 400 response itself and returns false on failure.
func (h *BaseHandler) DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		h.logger.Debugf("Invalid JSON body: %v", err)
		h.WriteValidationError(w, "Invalid JSON: "+err.Error(), nil)
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var details []dto.ErrorDetail
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				details = append(details, dto.ErrorDetail{
					Field:   fe.Field(),
					Tag:     fe.Tag(),
					Message: "Validation failed",
				})
			}
		}
		h.WriteValidationError(w, "Validation failed", details)
		return false
	}
	return true
}
