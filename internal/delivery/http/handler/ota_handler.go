package handler

import (
	"fmt"
	"net/http"

	"sensor-fleet-server/internal/usecase/ota"
	"sensor-fleet-server/pkg/utils"

	"github.com/gin-gonic/gin"
)

// OTAHandler serves the device-facing firmware update endpoints.
type OTAHandler struct {
	service *ota.Service
}

func NewOTAHandler(service *ota.Service) *OTAHandler {
	return &OTAHandler{service: service}
}

func (h *OTAHandler) RegisterDeviceRoutes(router *gin.RouterGroup) {
	otaGroup := router.Group("/ota")
	{
		otaGroup.GET("/check", h.CheckUpdate)
		otaGroup.GET("/download/:version", h.DownloadFirmware)
		otaGroup.POST("/status", h.ReportStatus)
	}
}

// CheckUpdate implements GET /api/ota/check?device_id=...&version=...
func (h *OTAHandler) CheckUpdate(c *gin.Context) {
	deviceID := c.Query("device_id")
	version := c.DefaultQuery("version", "0.0.0")

	result, err := h.service.Check(c.Request.Context(), deviceID, version)
	if err != nil {
		respondError(c, err)
		return
	}

	response := gin.H{
		"update_available": result.UpdateAvailable,
		"current_version":  result.CurrentVersion,
	}
	if result.Message != "" {
		response["message"] = result.Message
	}
	if result.UpdateAvailable {
		response["new_version"] = result.NewVersion
		response["file_size"] = result.FileSize
		response["url"] = result.URL
		response["release_notes"] = result.ReleaseNotes
	}

	c.JSON(http.StatusOK, response)
}

// DownloadFirmware implements GET /api/ota/download/:version. The
// optional device_id query parameter makes the attempt show up in the
// update history.
func (h *OTAHandler) DownloadFirmware(c *gin.Context) {
	version := c.Param("version")
	deviceID := c.Query("device_id")

	download, err := h.service.BeginDownload(c.Request.Context(), version, deviceID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer download.File.Close()

	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="firmware_%s.bin"`, version),
	}
	c.DataFromReader(http.StatusOK, download.Size, "application/octet-stream", download.File, headers)
}

// ReportStatus implements POST /api/ota/status.
func (h *OTAHandler) ReportStatus(c *gin.Context) {
	var report ota.StatusReport
	if err := c.ShouldBindJSON(&report); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "No valid JSON data provided")
		return
	}

	if err := h.service.ReportStatus(c.Request.Context(), &report); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Update status recorded",
	})
}
