package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// WebinarsController refreshes the local webinar list.
type WebinarsController struct {
	discoverer WebinarDiscoverer
}

func NewWebinarsController(discoverer WebinarDiscoverer) *WebinarsController {
	return &WebinarsController{discoverer: discoverer}
}

// Discover handles POST /api/webinars/discover
func (wc *WebinarsController) Discover(c *gin.Context) {
	var req OrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	out, err := wc.discoverer.Discover(c.Request.Context(), req.OrganizationID)
	if err != nil {
		respondRecoveryError(c, err, out)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "discovery": out})
}
