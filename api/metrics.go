package api

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leadimage_documents",
		Help: "Number of registered documents",
	})

	imagesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leadimage_images",
		Help: "Number of registered images",
	})

	selectedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leadimage_selected_images",
		Help: "Number of documents with a stored image choice",
	})

	imageBytesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leadimage_image_bytes",
		Help: "Total bytes of stored image files",
	})
)

// UpdateStatsMetrics refreshes the database-derived gauges. It is
// called periodically from the service entry point.
func (s *Server) UpdateStatsMetrics() {
	stats, err := s.store.GetStats()
	if err != nil {
		log.Printf("Failed to update stats metrics: %v", err)
		return
	}

	documentsGauge.Set(float64(stats.Documents))
	imagesGauge.Set(float64(stats.Images))
	selectedGauge.Set(float64(stats.SelectedImages))
	imageBytesGauge.Set(float64(stats.TotalImageBytes))
}
