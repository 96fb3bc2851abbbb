// Package server provides the HTTP server and routing for the trade engine.
package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/skinflow/tradebot/internal/database"
	"github.com/skinflow/tradebot/internal/queue"
)

// TransportStatus reports the state of the notification stream connection.
type TransportStatus interface {
	IsConnected() bool
}

// SystemHandlers handles system-wide monitoring endpoints
type SystemHandlers struct {
	log           zerolog.Logger
	dataDir       string
	botExternalID string
	startupTime   time.Time
	ledgerDB      *database.DB
	cacheDB       *database.DB
	queueManager  *queue.Manager
	transport     TransportStatus
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	botExternalID string,
	ledgerDB, cacheDB *database.DB,
	queueManager *queue.Manager,
	transport TransportStatus,
) *SystemHandlers {
	return &SystemHandlers{
		log:           log.With().Str("component", "system_handlers").Logger(),
		dataDir:       dataDir,
		botExternalID: botExternalID,
		startupTime:   time.Now(),
		ledgerDB:      ledgerDB,
		cacheDB:       cacheDB,
		queueManager:  queueManager,
		transport:     transport,
	}
}

// SystemStatusResponse is the payload for GET /api/system/status
type SystemStatusResponse struct {
	Status             string  `json:"status"`
	BotExternalID      string  `json:"bot_external_id,omitempty"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
	CPUPercent         float64 `json:"cpu_percent"`
	RAMPercent         float64 `json:"ram_percent"`
	TransportConnected bool    `json:"transport_connected"`
	QueuedJobs         int     `json:"queued_jobs"`
	Timestamp          string  `json:"timestamp"`
}

// HandleSystemStatus returns overall system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.getSystemStats()

	connected := false
	if h.transport != nil {
		connected = h.transport.IsConnected()
	}

	queued := 0
	if h.queueManager != nil {
		queued = h.queueManager.Size()
	}

	response := SystemStatusResponse{
		Status:             "ok",
		BotExternalID:      h.botExternalID,
		UptimeSeconds:      time.Since(h.startupTime).Seconds(),
		CPUPercent:         cpuPercent,
		RAMPercent:         ramPercent,
		TransportConnected: connected,
		QueuedJobs:         queued,
		Timestamp:          time.Now().Format(time.RFC3339),
	}

	h.writeJSON(w, response)
}

// HandleTransportStatus returns the notification stream connection state
func (h *SystemHandlers) HandleTransportStatus(w http.ResponseWriter, r *http.Request) {
	connected := false
	if h.transport != nil {
		connected = h.transport.IsConnected()
	}

	h.writeJSON(w, map[string]interface{}{
		"connected": connected,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// DBInfo describes a single database file
type DBInfo struct {
	Name         string `json:"name"`
	SizeBytes    int64  `json:"size_bytes"`
	WALSizeBytes int64  `json:"wal_size_bytes"`
	PageCount    int64  `json:"page_count"`
	FreePages    int64  `json:"free_pages"`
}

// DatabaseStatsResponse is the payload for GET /api/system/database/stats
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// HandleDatabaseStats returns per-database file and page statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	databases := []DBInfo{}
	totalSizeMB := 0.0

	for _, db := range []*database.DB{h.ledgerDB, h.cacheDB} {
		if db == nil {
			continue
		}
		stats, err := db.GetStats()
		if err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			continue
		}
		totalSizeMB += float64(stats.SizeBytes) / 1024 / 1024
		databases = append(databases, DBInfo{
			Name:         db.Name(),
			SizeBytes:    stats.SizeBytes,
			WALSizeBytes: stats.WALSizeBytes,
			PageCount:    stats.PageCount,
			FreePages:    stats.FreelistCount,
		})
	}

	h.writeJSON(w, DatabaseStatsResponse{
		Databases:   databases,
		TotalSizeMB: totalSizeMB,
		LastChecked: time.Now().Format(time.RFC3339),
	})
}

// DiskUsageResponse is the payload for GET /api/system/disk
type DiskUsageResponse struct {
	DataDirMB float64 `json:"data_dir_mb"`
	BackupsMB float64 `json:"backups_mb"`
	TotalMB   float64 `json:"total_mb"`
}

// HandleDiskUsage returns disk usage statistics for the data directory
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting disk usage")

	dataDirSize := h.getDirSize(h.dataDir)
	backupsSize := h.getDirSize(filepath.Join(h.dataDir, "backups"))

	h.writeJSON(w, DiskUsageResponse{
		DataDirMB: dataDirSize,
		BackupsMB: backupsSize,
		TotalMB:   dataDirSize,
	})
}

// HandleJobsStatus returns the state of the background job queue
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	queued := 0
	if h.queueManager != nil {
		queued = h.queueManager.Size()
	}

	h.writeJSON(w, map[string]interface{}{
		"queued":    queued,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a 100ms sampling interval to avoid blocking the API call.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
