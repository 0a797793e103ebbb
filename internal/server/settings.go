package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	settingsdomain "github.com/plannivo/finance/internal/settings/domain"
)

func (s *Server) CreateSettings(c *gin.Context) {
	var req settingsdomain.CreateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.settingsSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ActivateSettings(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.settingsSvc.Activate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetActiveSettings(c *gin.Context) {
	resp, err := s.settingsSvc.GetActive(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetEffectiveSettings resolves the rate sheet for a context. basis=accrual
// folds the accrual rates over the cash rates.
func (s *Server) GetEffectiveSettings(c *gin.Context) {
	var query struct {
		ServiceType   string `form:"service_type"`
		ServiceID     string `form:"service_id"`
		CategoryID    string `form:"category_id"`
		PaymentMethod string `form:"payment_method"`
		Basis         string `form:"basis"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rc := settingsdomain.ResolveContext{
		ServiceType:   strings.TrimSpace(query.ServiceType),
		ServiceID:     strings.TrimSpace(query.ServiceID),
		CategoryID:    strings.TrimSpace(query.CategoryID),
		PaymentMethod: strings.TrimSpace(query.PaymentMethod),
	}

	var resp *settingsdomain.EffectiveSettings
	switch settingsdomain.Basis(strings.ToLower(strings.TrimSpace(query.Basis))) {
	case "", settingsdomain.BasisCash:
		resp = s.resolver.Resolve(c.Request.Context(), rc)
	case settingsdomain.BasisAccrual:
		resp = s.resolver.ResolveAccrual(c.Request.Context(), rc)
	default:
		AbortWithError(c, newValidationError("basis", "invalid_basis", "invalid basis"))
		return
	}
	if resp == nil {
		AbortWithError(c, settingsdomain.ErrNoActiveSettings)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createOverrideRequest struct {
	SettingsID string         `json:"settings_id"`
	ScopeType  string         `json:"scope_type"`
	ScopeValue string         `json:"scope_value"`
	Precedence int            `json:"precedence"`
	Fields     map[string]any `json:"fields"`
}

func (s *Server) CreateOverride(c *gin.Context) {
	var req createOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settingsID, err := parseOptionalSnowflakeID(req.SettingsID)
	if err != nil || settingsID == nil {
		AbortWithError(c, newValidationError("settings_id", "invalid_settings_id", "invalid settings_id"))
		return
	}

	resp, err := s.settingsSvc.CreateOverride(c.Request.Context(), settingsdomain.CreateOverrideRequest{
		SettingsID: *settingsID,
		ScopeType:  settingsdomain.ScopeType(strings.TrimSpace(req.ScopeType)),
		ScopeValue: strings.TrimSpace(req.ScopeValue),
		Precedence: req.Precedence,
		Fields:     req.Fields,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) DeactivateOverride(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.settingsSvc.DeactivateOverride(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListOverrides(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.settingsSvc.ListOverrides(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
