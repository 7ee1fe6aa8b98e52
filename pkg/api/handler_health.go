package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/storeassist/pkg/version"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
)

// healthHandler handles GET /health.
// The remote service is not checked; a failing backend surfaces on the next
// turn instead of flipping local health.
func (s *Server) healthHandler(c *echo.Context) error {
	resp := &HealthResponse{
		Status:  healthStatusHealthy,
		Version: version.GitCommit,
	}
	if s.cfg != nil {
		stats := s.cfg.Stats()
		resp.Configuration = ConfigurationStats{
			MCPServers:   stats.MCPServers,
			AllowedTypes: stats.AllowedTypes,
		}
	}
	if s.hub != nil {
		resp.Connections = s.hub.ActiveConnections()
	}
	if s.manager == nil {
		resp.Status = healthStatusDegraded
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	if sess := s.manager.Active(); sess != nil {
		resp.SessionID = sess.ID
	}
	resp.Busy = s.manager.Busy()
	return c.JSON(http.StatusOK, resp)
}
