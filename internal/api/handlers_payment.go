package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"snappy-license-server/internal/auth"
	"snappy-license-server/internal/license"
)

// handleGetPlans returns the purchasable plans and their prices.
func (s *Server) handleGetPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"plans": []gin.H{
			{"id": string(license.PlanStarter), "amount": s.pricing.StarterPaise, "currency": "INR"},
			{"id": string(license.PlanPro), "amount": s.pricing.ProPaise, "currency": "INR"},
			{"id": string(license.PlanEnterprise), "amount": s.pricing.EnterprisePaise, "currency": "INR"},
		},
	})
}

// handleGetUPIDetails returns the manual payment collection details a
// user needs to make the transfer they will later reference. With a
// plan in the path the server-side amount is included; the client
// never supplies the price.
func (s *Server) handleGetUPIDetails(c *gin.Context) {
	resp := gin.H{
		"upi_id":     s.payment.UPIID,
		"payee_name": s.payment.PayeeName,
		"note":       "After paying, submit your transaction reference (UTR) to request a license",
	}

	if planName := c.Param("plan"); planName != "" {
		plan, ok := license.ParsePlan(planName)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   license.ErrInvalidPlan.Code,
				"message": license.ErrInvalidPlan.Message,
			})
			return
		}
		resp["plan"] = string(plan)
		resp["amount"] = s.pricing.Amount(plan)
		resp["currency"] = "INR"
	}

	c.JSON(http.StatusOK, resp)
}

type submitPaymentRequest struct {
	Plan             string `json:"plan" binding:"required"`
	PaymentReference string `json:"payment_reference" binding:"required"`
}

// handleSubmitPayment records a payment claim and mints a pending
// license for the calling user.
func (s *Server) handleSubmitPayment(c *gin.Context) {
	userID := auth.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   auth.ErrUnauthorized.Code,
			"message": auth.ErrUnauthorized.Message,
		})
		return
	}

	var req submitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "INVALID_REQUEST",
			"message": err.Error(),
		})
		return
	}

	view, err := s.licenseService.Submit(c.Request.Context(), userID, req.Plan, req.PaymentReference)
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"license": view,
		"message": "payment submitted, awaiting admin verification",
	})
}
