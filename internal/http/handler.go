package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/housekeeping-contracts/internal/conversion"
	"github.com/nurpe/housekeeping-contracts/internal/http/middleware"
	"github.com/nurpe/housekeeping-contracts/internal/model"
	"github.com/nurpe/housekeeping-contracts/internal/rules"
	"github.com/nurpe/housekeeping-contracts/internal/service"
	"github.com/nurpe/housekeeping-contracts/internal/signing"
	"github.com/nurpe/housekeeping-contracts/internal/validation"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	contracts   *service.ContractService
	signing     *service.SigningService
	conversions *service.ConversionService
	parties     *service.PartyService
	log         zerolog.Logger
}

func NewHandler(
	contracts *service.ContractService,
	signing *service.SigningService,
	conversions *service.ConversionService,
	parties *service.PartyService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		contracts:   contracts,
		signing:     signing,
		conversions: conversions,
		parties:     parties,
		log:         log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/contracts/derive", h.deriveFields)
	protected.POST("/contracts/validate", h.validateFields)
	protected.POST("/contracts", h.createContract)
	protected.GET("/contracts/:id", h.getContract)
	protected.PATCH("/contracts/:id", h.updateContract)
	protected.POST("/contracts/:id/signatures", h.submitSignature)
	protected.POST("/contracts/:id/signatures/resign", h.requestResign)
	protected.POST("/contracts/:id/trial/fail", h.failTrial)
	protected.GET("/contracts/:id/adjustments/export", h.exportAdjustments)

	protected.POST("/conversions/preview", h.previewConversion)
	protected.POST("/conversions/preview/pdf", h.previewConversionPDF)
	protected.POST("/conversions/confirm", h.confirmConversion)

	protected.GET("/parties", h.searchParties)
}

type deriveRequest struct {
	ContractType string         `json:"contract_type" binding:"required"`
	Fields       rules.FieldSet `json:"fields"`
	Changed      string         `json:"changed"`
	Mode         string         `json:"mode"`
}

func (h *Handler) deriveFields(c *gin.Context) {
	if _, ok := h.backOffice(c); !ok {
		return
	}

	var req deriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contractType, err := parseContractType(req.ContractType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract_type"})
		return
	}

	var changed rules.Field
	if strings.TrimSpace(req.Changed) != "" {
		changed, err = rules.ParseField(strings.TrimSpace(req.Changed))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid changed field"})
			return
		}
	}

	mode, err := parseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mode"})
		return
	}

	fields, err := h.contracts.Derive(service.DeriveInput{
		ContractType: contractType,
		Fields:       orEmpty(req.Fields),
		Changed:      changed,
		Mode:         mode,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fields": fields})
}

type validateRequest struct {
	ContractType string         `json:"contract_type" binding:"required"`
	Fields       rules.FieldSet `json:"fields"`
}

func (h *Handler) validateFields(c *gin.Context) {
	if _, ok := h.backOffice(c); !ok {
		return
	}

	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contractType, err := parseContractType(req.ContractType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract_type"})
		return
	}

	result, err := h.contracts.Validate(contractType, orEmpty(req.Fields))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type createContractRequest struct {
	ContractType string         `json:"contract_type" binding:"required"`
	CustomerID   string         `json:"customer_id" binding:"required"`
	EmployeeID   string         `json:"employee_id" binding:"required"`
	Fields       rules.FieldSet `json:"fields"`
}

func (h *Handler) createContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contractType, err := parseContractType(req.ContractType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract_type"})
		return
	}

	customerID, err := uuid.Parse(strings.TrimSpace(req.CustomerID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
		return
	}

	employeeID, err := uuid.Parse(strings.TrimSpace(req.EmployeeID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee_id"})
		return
	}

	contract, err := h.contracts.Create(c.Request.Context(), service.CreateContractInput{
		Principal:    principal,
		ContractType: contractType,
		CustomerID:   customerID,
		EmployeeID:   employeeID,
		Fields:       orEmpty(req.Fields),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toContractResponse(contract))
}

func (h *Handler) getContract(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	contract, err := h.contracts.Get(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

type updateContractRequest struct {
	Version int            `json:"version"`
	Fields  rules.FieldSet `json:"fields"`
}

func (h *Handler) updateContract(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	var req updateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.contracts.UpdateFields(c.Request.Context(), service.UpdateContractInput{
		Principal:  principal,
		ContractID: id,
		Version:    req.Version,
		Fields:     orEmpty(req.Fields),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

type submitSignatureRequest struct {
	Role      string          `json:"role" binding:"required"`
	Signature []byte          `json:"signature"`
	Party     model.PartyInfo `json:"party"`
	Resign    bool            `json:"resign"`
}

func (h *Handler) submitSignature(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	var req submitSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.signing.SubmitSignature(c.Request.Context(), service.SubmitSignatureInput{
		Principal:  principal,
		ContractID: id,
		Role:       parsePartyRole(req.Role),
		Signature:  req.Signature,
		Party:      req.Party,
		Resign:     req.Resign,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

type resignRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *Handler) requestResign(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	var req resignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.signing.RequestResign(c.Request.Context(), service.ResignInput{
		Principal:  principal,
		ContractID: id,
		Role:       parsePartyRole(req.Role),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

func (h *Handler) failTrial(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	contract, err := h.contracts.FailTrial(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

func (h *Handler) exportAdjustments(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	result, err := h.conversions.ExportAdjustments(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, xlsxContentType, result.Content)
}

type conversionRequest struct {
	TrialContractID  string `json:"trial_contract_id" binding:"required"`
	FormalContractID string `json:"formal_contract_id" binding:"required"`
}

func (h *Handler) bindConversion(c *gin.Context) (service.ConversionInput, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return service.ConversionInput{}, false
	}

	var req conversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return service.ConversionInput{}, false
	}

	trialID, err := uuid.Parse(strings.TrimSpace(req.TrialContractID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trial_contract_id"})
		return service.ConversionInput{}, false
	}

	formalID, err := uuid.Parse(strings.TrimSpace(req.FormalContractID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid formal_contract_id"})
		return service.ConversionInput{}, false
	}

	return service.ConversionInput{Principal: principal, TrialID: trialID, FormalID: formalID}, true
}

func (h *Handler) previewConversion(c *gin.Context) {
	input, ok := h.bindConversion(c)
	if !ok {
		return
	}

	cost, err := h.conversions.Preview(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cost": cost, "total": cost.Total().StringFixed(2)})
}

func (h *Handler) previewConversionPDF(c *gin.Context) {
	input, ok := h.bindConversion(c)
	if !ok {
		return
	}

	result, err := h.conversions.PreviewStatement(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

func (h *Handler) confirmConversion(c *gin.Context) {
	input, ok := h.bindConversion(c)
	if !ok {
		return
	}

	result, err := h.conversions.Confirm(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConversionResponse(result))
}

func (h *Handler) searchParties(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	parties, err := h.parties.Search(c.Request.Context(), principal, parsePartyRole(c.Query("role")), c.Query("q"), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	out := make([]partyResponse, 0, len(parties))
	for _, p := range parties {
		out = append(out, partyResponse{
			ID:          p.ID,
			Role:        string(p.Role),
			Name:        p.Name,
			PhoneNumber: p.PhoneNumber,
		})
	}
	c.JSON(http.StatusOK, gin.H{"parties": out})
}

func (h *Handler) principalAndID(c *gin.Context) (model.Principal, uuid.UUID, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return model.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return model.Principal{}, uuid.Nil, false
	}
	return principal, id, true
}

func (h *Handler) backOffice(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return model.Principal{}, false
	}
	if !principal.IsBackOffice() {
		c.JSON(http.StatusForbidden, gin.H{"error": service.ErrPermissionDenied.Error()})
		return model.Principal{}, false
	}
	return principal, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var (
		validationErr  *validation.Error
		incompleteErr  *signing.PartyInfoIncompleteError
		terminalErr    *signing.AlreadyTerminalError
		consistencyErr *conversion.ConsistencyError
		unknownTypeErr *rules.UnknownContractTypeError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "errors": validationErr.Errors})
	case errors.As(err, &incompleteErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "role": incompleteErr.Role, "missing": incompleteErr.Missing})
	case errors.As(err, &terminalErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &consistencyErr):
		h.log.Error().Err(err).Str("trial_id", consistencyErr.TrialID.String()).Msg("conversion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conversion failed, nothing was changed"})
	case errors.As(err, &unknownTypeErr):
		h.log.Error().Err(err).Msg("no rule set for contract type")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, rules.ErrUnknownField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseContractType(raw string) (model.ContractType, error) {
	switch t := model.ContractType(strings.ToLower(strings.TrimSpace(raw))); t {
	case model.ContractTypeNanny,
		model.ContractTypeMaternityNurse,
		model.ContractTypeNannyTrial,
		model.ContractTypeExternalSubstitution:
		return t, nil
	default:
		return "", service.ErrInvalidInput
	}
}

func parseMode(raw string) (rules.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "create":
		return rules.ModeCreate, nil
	case "edit":
		return rules.ModeEdit, nil
	default:
		return 0, service.ErrInvalidInput
	}
}

func parsePartyRole(raw string) model.PartyRole {
	return model.PartyRole(strings.ToLower(strings.TrimSpace(raw)))
}

func orEmpty(fs rules.FieldSet) rules.FieldSet {
	if fs.Amounts == nil {
		return rules.NewFieldSet()
	}
	return fs
}
