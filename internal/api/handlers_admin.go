package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"snappy-license-server/internal/cache"
	"snappy-license-server/internal/database"
)

// handleAdminListLicenses returns every license, unmasked, with owner
// details.
func (s *Server) handleAdminListLicenses(c *gin.Context) {
	licenses, err := s.licenseService.ListAll(c.Request.Context())
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"licenses": licenses,
		"count":    len(licenses),
	})
}

// handleAdminPendingLicenses returns the verification queue.
func (s *Server) handleAdminPendingLicenses(c *gin.Context) {
	ctx := c.Request.Context()

	if s.dashboardCache != nil {
		var cached []database.AdminLicense
		if err := s.dashboardCache.GetPending(ctx, &cached); err == nil {
			c.JSON(http.StatusOK, gin.H{"licenses": cached, "count": len(cached)})
			return
		} else if !cache.IsMiss(err) {
			s.logger.Debug().Err(err).Msg("Pending cache read failed, falling back to store")
		}
	}

	licenses, err := s.licenseService.ListPending(ctx)
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	if s.dashboardCache != nil {
		if err := s.dashboardCache.SetPending(ctx, licenses); err != nil {
			s.logger.Debug().Err(err).Msg("Pending cache write failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"licenses": licenses,
		"count":    len(licenses),
	})
}

// handleAdminGetLicense returns a single unmasked license.
func (s *Server) handleAdminGetLicense(c *gin.Context) {
	lic, err := s.licenseService.GetForAdmin(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"license": lic})
}

// handleAdminPaymentLogs returns the payment trail for a license.
func (s *Server) handleAdminPaymentLogs(c *gin.Context) {
	logs, err := s.repo.ListPaymentLogsByLicense(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment_logs": logs})
}

type verifyLicenseRequest struct {
	Notes string `json:"notes"`
}

// handleAdminVerifyLicense confirms the payment behind a license.
func (s *Server) handleAdminVerifyLicense(c *gin.Context) {
	var req verifyLicenseRequest
	// Body is optional; notes default to empty.
	_ = c.ShouldBindJSON(&req)

	lic, err := s.licenseService.Verify(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"license": lic,
		"message": "payment verified, license ready for activation email",
	})
}

// handleAdminSendActivation emails the license key and activates the
// license.
func (s *Server) handleAdminSendActivation(c *gin.Context) {
	lic, err := s.licenseService.SendActivation(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"license": lic,
		"message": "activation email sent",
	})
}

type rejectLicenseRequest struct {
	Reason string `json:"reason"`
}

// handleAdminRejectLicense closes a license before activation.
func (s *Server) handleAdminRejectLicense(c *gin.Context) {
	var req rejectLicenseRequest
	_ = c.ShouldBindJSON(&req)

	lic, err := s.licenseService.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"license": lic,
		"message": "license rejected",
	})
}

// handleAdminDeleteLicense hard-deletes a license and its payment
// trail.
func (s *Server) handleAdminDeleteLicense(c *gin.Context) {
	if err := s.licenseService.Purge(c.Request.Context(), c.Param("id")); err != nil {
		s.respondLicenseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "license deleted"})
}
