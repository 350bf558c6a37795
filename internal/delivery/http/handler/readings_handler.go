package handler

import (
	"errors"
	"net/http"

	domainReading "sensor-fleet-server/internal/domain/reading"
	"sensor-fleet-server/internal/usecase/ingest"
	appErrors "sensor-fleet-server/pkg/errors"
	"sensor-fleet-server/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ReadingsHandler serves the device-facing ingestion endpoint and the
// administrative read/query interface over stored readings.
type ReadingsHandler struct {
	service     *ingest.Service
	readingRepo domainReading.Repository
}

func NewReadingsHandler(service *ingest.Service, readingRepo domainReading.Repository) *ReadingsHandler {
	return &ReadingsHandler{service: service, readingRepo: readingRepo}
}

func (h *ReadingsHandler) RegisterDeviceRoutes(router *gin.RouterGroup) {
	router.POST("/readings", h.SubmitReadings)
}

func (h *ReadingsHandler) RegisterAdminRoutes(router *gin.RouterGroup) {
	router.GET("/readings", h.ListReadings)
}

// SubmitReadings implements POST /api/readings. The three success
// shapes (registered / pending approval / ok) and their exact field
// names are a firmware compatibility contract.
func (h *ReadingsHandler) SubmitReadings(c *gin.Context) {
	var req ingest.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "No valid JSON data provided")
		return
	}

	result, err := h.service.Submit(c.Request.Context(), &req, c.ClientIP())
	if errors.Is(err, appErrors.ErrDeviceNotApproved) {
		c.JSON(http.StatusForbidden, gin.H{
			"status":   "pending_approval",
			"message":  "Device is not approved yet. Please contact administrator.",
			"approved": false,
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Registered {
		c.JSON(http.StatusOK, gin.H{
			"status":    "registered",
			"message":   "Device registered successfully. Awaiting approval.",
			"api_key":   result.PlaintextKey,
			"approved":  false,
			"device_id": result.DeviceID,
		})
		return
	}

	response := gin.H{
		"status":      "ok",
		"message":     "Readings received successfully",
		"received":    result.Received,
		"device_id":   result.DeviceID,
		"approved":    true,
		"server_time": result.ServerTime.Unix(),
	}
	if result.ReadingInterval > 0 {
		response["reading_interval"] = result.ReadingInterval
	}

	c.JSON(http.StatusOK, response)
}

// ListReadings implements GET /api/admin/readings with device/sensor
// filters and capped pagination.
func (h *ReadingsHandler) ListReadings(c *gin.Context) {
	var query struct {
		DeviceID *uint  `form:"device_id"`
		Sensor   string `form:"sensor"`
		Limit    int    `form:"limit,default=100"`
		Offset   int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid query parameters")
		return
	}

	readings, err := h.readingRepo.List(c.Request.Context(), domainReading.Filter{
		DeviceID: query.DeviceID,
		Sensor:   query.Sensor,
		Limit:    query.Limit,
		Offset:   query.Offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]gin.H, len(readings))
	for i, r := range readings {
		items[i] = gin.H{
			"id":          r.ID,
			"device_id":   r.DeviceID,
			"sensor":      r.Sensor,
			"value":       r.Value,
			"unit":        r.Unit,
			"timestamp":   r.Timestamp.UTC(),
			"received_at": r.ReceivedAt.UTC(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"readings": items,
		"count":    len(items),
		"limit":    query.Limit,
		"offset":   query.Offset,
	})
}
