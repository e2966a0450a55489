package rest

import (
	"net/http"

	"github.com/fgpanels/switchpanel/internal/types"
	"github.com/gin-gonic/gin"
)

// GET /api/v1/panel
func (s *Server) getPanel(c *gin.Context) {
	status, ok := s.lm.GetPanelStatus()
	if !ok {
		c.JSON(http.StatusServiceUnavailable,
			types.NewErrorResponse("PANEL_503", "Panel not initialised", "operate a key on the switch panel"))
		return
	}

	c.JSON(http.StatusOK, status)
}

// GET /api/v1/device
func (s *Server) getDevice(c *gin.Context) {
	device, ok := s.lm.DeviceManager().GetDevice()
	if !ok {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("DEVICE_404", "No device open", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      device.ID,
		"name":    device.Name,
		"backend": s.lm.Config().Input.Backend,
	})
}

// GET /api/v1/names
func (s *Server) listNames(c *gin.Context) {
	names := s.lm.DeviceManager().Names()

	response := make([]gin.H, 0, names.Len())
	for _, name := range names.Names() {
		mask, _ := names.Lookup(name)
		response = append(response, gin.H{
			"name": name,
			"mask": mask.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"names": response,
		"count": len(response),
	})
}
