package handlers

import (
	"encoding/json"

	"github.com/rogerio-castellano/inventory-sync/internal/inventory"
	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

type QuantityRequest struct {
	Quantity json.Number `json:"quantity"`
}

type ThresholdRequest struct {
	ItemName  string      `json:"itemName"`
	Threshold json.Number `json:"threshold"`
}

type RecipientRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
}

type Meta struct {
	TotalCount int    `json:"total_count"`
	Version    uint64 `json:"version"`
}

type ItemsSearchResult struct {
	Data []models.Item `json:"data"`
	Meta Meta          `json:"meta"`
}

type LowStockItem struct {
	ItemName  string `json:"itemName"`
	Quantity  int    `json:"quantity"`
	Threshold int    `json:"threshold"`
}

type SummaryResponse struct {
	Location      string         `json:"location"`
	Version       uint64         `json:"version"`
	TotalItems    int            `json:"total_items"`
	TotalQuantity int            `json:"total_quantity"`
	LowStock      []LowStockItem `json:"low_stock"`
}

type ThresholdsResult struct {
	Data []models.ThresholdRegistration `json:"data"`
}

type AlertHistoryResult struct {
	Data []models.AlertDelivery `json:"data"`
}

type LocationsResult struct {
	Data []inventory.Status `json:"data"`
}

type ImportItemsResult struct {
	ImportedItemsCount int               `json:"imported"`
	Errors             []ValidationError `json:"errors"`
}
