package firmware

import (
	"io"
	"time"

	domainFirmware "sensor-fleet-server/internal/domain/firmware"
)

// UploadRequest carries one administrative firmware upload.
type UploadRequest struct {
	Version          string `validate:"required,max=20"`
	OriginalFilename string `validate:"required,max=255"`
	ReleaseNotes     string
	File             io.Reader `validate:"required"`
}

// FirmwareResponse is the admin projection of a catalog entry.
type FirmwareResponse struct {
	ID            uint    `json:"id"`
	Version       string  `json:"version"`
	Filename      string  `json:"original_filename"`
	FileSize      int64   `json:"file_size"`
	FileHash      string  `json:"file_hash"`
	ReleaseNotes  *string `json:"release_notes"`
	UploadedAt    string  `json:"uploaded_at"`
	Active        bool    `json:"active"`
	DownloadCount int     `json:"download_count"`
}

func toResponse(fw *domainFirmware.Firmware) *FirmwareResponse {
	return &FirmwareResponse{
		ID:            fw.ID,
		Version:       fw.Version,
		Filename:      fw.OriginalFilename,
		FileSize:      fw.FileSize,
		FileHash:      fw.FileHash,
		ReleaseNotes:  fw.ReleaseNotes,
		UploadedAt:    fw.UploadedAt.UTC().Format(time.RFC3339),
		Active:        fw.Active,
		DownloadCount: fw.DownloadCount,
	}
}
