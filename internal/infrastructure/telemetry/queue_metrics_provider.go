// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormQueueMetricsProvider implements QueueMetricsProvider using GORM.
// It queries the orders and duplicate_alerts tables directly for backlog
// counts.
type GormQueueMetricsProvider struct {
	db *gorm.DB
}

// NewGormQueueMetricsProvider creates a new GormQueueMetricsProvider.
func NewGormQueueMetricsProvider(db *gorm.DB) *GormQueueMetricsProvider {
	return &GormQueueMetricsProvider{db: db}
}

// GetPendingOrderCount returns the number of orders waiting for upload.
func (p *GormQueueMetricsProvider) GetPendingOrderCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("orders").
		Where("status = ?", "PENDING").
		Count(&count).Error

	return count, err
}

// GetOpenAlertCount returns the number of unresolved duplicate alerts.
func (p *GormQueueMetricsProvider) GetOpenAlertCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("duplicate_alerts").
		Where("status = ?", "OPEN").
		Count(&count).Error

	return count, err
}
