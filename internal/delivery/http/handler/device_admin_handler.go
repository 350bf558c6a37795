package handler

import (
	"net/http"

	"sensor-fleet-server/internal/usecase/registry"
	"sensor-fleet-server/pkg/utils"

	"github.com/gin-gonic/gin"
)

// DeviceAdminHandler exposes the administrative device operations. The
// caller is assumed to have passed the admin trust boundary already.
type DeviceAdminHandler struct {
	service *registry.Service
}

func NewDeviceAdminHandler(service *registry.Service) *DeviceAdminHandler {
	return &DeviceAdminHandler{service: service}
}

func (h *DeviceAdminHandler) RegisterAdminRoutes(router *gin.RouterGroup) {
	devices := router.Group("/devices")
	{
		devices.GET("", h.ListDevices)
		devices.GET("/:device_id", h.GetDevice)
		devices.POST("/:device_id/approve", h.ApproveDevice)
		devices.PUT("/:device_id", h.UpdateDevice)
		devices.DELETE("/:device_id", h.DeleteDevice)
		devices.POST("/:device_id/regenerate-key", h.RegenerateKey)
	}
}

func (h *DeviceAdminHandler) ListDevices(c *gin.Context) {
	var approved *bool
	if raw, ok := c.GetQuery("approved"); ok {
		v := raw == "true"
		approved = &v
	}

	devices, err := h.service.List(c.Request.Context(), approved)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
		"count":   len(devices),
	})
}

func (h *DeviceAdminHandler) GetDevice(c *gin.Context) {
	device, err := h.service.Get(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

func (h *DeviceAdminHandler) ApproveDevice(c *gin.Context) {
	deviceID := c.Param("device_id")

	if err := h.service.Approve(c.Request.Context(), deviceID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "Device approved successfully",
		"device_id": deviceID,
		"approved":  true,
	})
}

func (h *DeviceAdminHandler) UpdateDevice(c *gin.Context) {
	deviceID := c.Param("device_id")

	var req registry.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "No valid JSON data provided")
		return
	}

	if err := h.service.UpdateProfile(c.Request.Context(), deviceID, &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "Device updated successfully",
		"device_id": deviceID,
	})
}

func (h *DeviceAdminHandler) DeleteDevice(c *gin.Context) {
	deviceID := c.Param("device_id")

	if err := h.service.Delete(c.Request.Context(), deviceID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "Device deleted successfully",
		"device_id": deviceID,
	})
}

// RegenerateKey invalidates the device's credential and returns the
// replacement plaintext exactly once.
func (h *DeviceAdminHandler) RegenerateKey(c *gin.Context) {
	deviceID := c.Param("device_id")

	plaintext, err := h.service.RegenerateCredential(c.Request.Context(), deviceID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"device_id": deviceID,
		"api_key":   plaintext,
	})
}
