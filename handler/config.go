package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/idpay/infra/logger"
	"github.com/mstgnz/idpay/infra/response"
	"github.com/mstgnz/idpay/provider"
)

// ProfileStore persists payment profiles
type ProfileStore interface {
	SaveProfile(ctx context.Context, profile *provider.PaymentProfile) error
	GetProfile(ctx context.Context, id int64) (*provider.PaymentProfile, error)
	ListProfiles(ctx context.Context) ([]provider.PaymentProfile, error)
}

// ConfigHandler manages payment profiles, the gateway credentials used at checkout
type ConfigHandler struct {
	profiles ProfileStore
	registry *provider.ProviderRegistry
	validate *validator.Validate
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(profiles ProfileStore, registry *provider.ProviderRegistry, validate *validator.Validate) *ConfigHandler {
	return &ConfigHandler{
		profiles: profiles,
		registry: registry,
		validate: validate,
	}
}

// SaveProfileRequest is the body of POST /v1/profiles
type SaveProfileRequest struct {
	ID         int64             `json:"id" validate:"gte=0"`
	ProviderID string            `json:"providerId" validate:"required"`
	Title      string            `json:"title" validate:"required,max=255"`
	Options    map[string]string `json:"options"`
	Active     *bool             `json:"active"`
}

// ProviderInfo describes a registered gateway
type ProviderInfo struct {
	ID     string                 `json:"id"`
	Title  string                 `json:"title"`
	Fields []provider.ConfigField `json:"fields,omitempty"`
}

// configDescriber is implemented by providers that publish their option fields
type configDescriber interface {
	GetRequiredConfig() []provider.ConfigField
}

// SaveProfile verifies a profile's options with its provider and stores it
func (h *ConfigHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req SaveProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	prov, err := h.registry.CreateProvider(req.ProviderID, nil)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Unknown payment provider", err)
		return
	}

	if validation := prov.VerifyConfig(req.Options); !validation.Valid {
		_ = response.WriteJSON(w, http.StatusBadRequest, response.Response{
			Code:    http.StatusBadRequest,
			Success: false,
			Message: "Invalid provider configuration",
			Error:   strings.Join(validation.Errors, "; "),
			Data:    validation,
		})
		return
	}

	profile := &provider.PaymentProfile{
		ID:         req.ID,
		ProviderID: req.ProviderID,
		Title:      req.Title,
		Options:    req.Options,
		Active:     req.Active == nil || *req.Active,
	}

	if err := h.profiles.SaveProfile(ctx, profile); err != nil {
		if errors.Is(err, provider.ErrProfileNotFound) {
			response.Error(w, http.StatusNotFound, "Payment profile not found", err)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to save payment profile", err)
		return
	}

	logger.Info("Payment profile saved", logger.LogContext{
		Provider: profile.ProviderID,
		Fields:   map[string]any{"profile_id": profile.ID, "active": profile.Active},
	})

	status := http.StatusCreated
	if req.ID > 0 {
		status = http.StatusOK
	}
	response.Success(w, status, "Payment profile saved", maskProfile(*profile))
}

// ListProfiles returns every payment profile with secrets masked
func (h *ConfigHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	profiles, err := h.profiles.ListProfiles(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to list payment profiles", err)
		return
	}

	masked := make([]provider.PaymentProfile, 0, len(profiles))
	for _, profile := range profiles {
		masked = append(masked, maskProfile(profile))
	}

	response.Success(w, http.StatusOK, "Payment profiles retrieved", masked)
}

// GetProfile returns one payment profile with secrets masked
func (h *ConfigHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(w, http.StatusBadRequest, "Invalid profile id", err)
		return
	}

	profile, err := h.profiles.GetProfile(ctx, id)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load payment profile", err)
		return
	}
	if profile == nil {
		response.Error(w, http.StatusNotFound, "Payment profile not found", nil)
		return
	}

	response.Success(w, http.StatusOK, "Payment profile retrieved", maskProfile(*profile))
}

// ListProviders describes the registered gateways and the options they accept
func (h *ConfigHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	names := h.registry.GetProviderNames()
	providers := make([]ProviderInfo, 0, len(names))

	for _, name := range names {
		prov, err := h.registry.CreateProvider(name, nil)
		if err != nil {
			continue
		}
		info := ProviderInfo{ID: name, Title: prov.Title()}
		if describer, ok := prov.(configDescriber); ok {
			info.Fields = describer.GetRequiredConfig()
		}
		providers = append(providers, info)
	}

	response.Success(w, http.StatusOK, "Payment providers retrieved", providers)
}

// maskProfile hides credential values, keeping only a short prefix
func maskProfile(profile provider.PaymentProfile) provider.PaymentProfile {
	options := make(map[string]string, len(profile.Options))
	for key, value := range profile.Options {
		if isSecretOption(key) {
			value = maskValue(value)
		}
		options[key] = value
	}
	profile.Options = options
	return profile
}

func isSecretOption(key string) bool {
	key = strings.ToLower(key)
	return strings.Contains(key, "key") || strings.Contains(key, "secret") || strings.Contains(key, "password")
}

func maskValue(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return value[:4] + "****"
}
