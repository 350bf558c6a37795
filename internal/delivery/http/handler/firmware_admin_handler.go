package handler

import (
	"net/http"

	"sensor-fleet-server/internal/usecase/firmware"
	"sensor-fleet-server/pkg/utils"

	"github.com/gin-gonic/gin"
)

// FirmwareAdminHandler exposes catalog management: uploads, listing and
// the distribution flag.
type FirmwareAdminHandler struct {
	service *firmware.Service
}

func NewFirmwareAdminHandler(service *firmware.Service) *FirmwareAdminHandler {
	return &FirmwareAdminHandler{service: service}
}

func (h *FirmwareAdminHandler) RegisterAdminRoutes(router *gin.RouterGroup) {
	fw := router.Group("/firmware")
	{
		fw.POST("", h.UploadFirmware)
		fw.GET("", h.ListFirmware)
		fw.PUT("/:version/active", h.SetActive)
	}
}

// UploadFirmware accepts a multipart form with a `file` part and
// `version` / `release_notes` fields.
func (h *FirmwareAdminHandler) UploadFirmware(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "firmware file is required")
		return
	}

	version := c.PostForm("version")
	if version == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "version is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	result, err := h.service.Upload(c.Request.Context(), &firmware.UploadRequest{
		Version:          version,
		OriginalFilename: fileHeader.Filename,
		ReleaseNotes:     c.PostForm("release_notes"),
		File:             file,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *FirmwareAdminHandler) ListFirmware(c *gin.Context) {
	firmwares, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"firmware": firmwares,
		"count":    len(firmwares),
	})
}

func (h *FirmwareAdminHandler) SetActive(c *gin.Context) {
	version := c.Param("version")

	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "active flag is required")
		return
	}

	if err := h.service.SetActive(c.Request.Context(), version, *req.Active); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version,
		"active":  *req.Active,
	})
}
