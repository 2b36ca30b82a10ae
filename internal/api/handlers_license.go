package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"snappy-license-server/internal/auth"
	"snappy-license-server/internal/cache"
	"snappy-license-server/internal/license"
)

// handleGetMyLicenses returns the calling user's licenses, masked per
// the disclosure rules.
func (s *Server) handleGetMyLicenses(c *gin.Context) {
	userID := auth.GetUserID(c)

	views, err := s.licenseService.ListForOwner(c.Request.Context(), userID)
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"licenses": views})
}

// handleGetMyLicense returns a single license owned by the caller.
func (s *Server) handleGetMyLicense(c *gin.Context) {
	userID := auth.GetUserID(c)

	view, err := s.licenseService.GetForOwner(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"license": view})
}

type dashboardResponse struct {
	Licenses []license.UserLicenseView `json:"licenses"`
	Summary  dashboardSummary          `json:"summary"`
}

type dashboardSummary struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Pending int `json:"pending"`
}

// handleGetDashboard returns the user's license dashboard, served from
// the Redis cache when warm.
func (s *Server) handleGetDashboard(c *gin.Context) {
	userID := auth.GetUserID(c)
	ctx := c.Request.Context()

	if s.dashboardCache != nil {
		var cached dashboardResponse
		if err := s.dashboardCache.GetDashboard(ctx, userID, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		} else if !cache.IsMiss(err) {
			s.logger.Debug().Err(err).Msg("Dashboard cache read failed, falling back to store")
		}
	}

	views, err := s.licenseService.ListForOwner(ctx, userID)
	if err != nil {
		s.respondLicenseError(c, err)
		return
	}

	resp := dashboardResponse{Licenses: views}
	resp.Summary.Total = len(views)
	for _, v := range views {
		switch {
		case v.IsActive:
			resp.Summary.Active++
		case v.Status == "pending_verification":
			resp.Summary.Pending++
		}
	}

	if s.dashboardCache != nil {
		if err := s.dashboardCache.SetDashboard(ctx, userID, resp); err != nil {
			s.logger.Debug().Err(err).Msg("Dashboard cache write failed")
		}
	}

	c.JSON(http.StatusOK, resp)
}
