package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/warplanner-api-go/pkg/database"
)

const usageHistoryDays = 30

type usageTotals struct {
	Requests    int64 `json:"requests"`
	Saves       int64 `json:"saves"`
	Assignments int64 `json:"assignments"`
}

func sumUsage(usage []database.APIUsage) usageTotals {
	var t usageTotals
	for _, u := range usage {
		t.Requests += int64(u.RequestCount)
		t.Saves += int64(u.TotalSaves)
		t.Assignments += int64(u.TotalAssignments)
	}
	return t
}

// GetUsage returns usage stats for a key
func (h *Handler) GetUsage(c *gin.Context) {
	var usage []database.APIUsage
	err := h.DB.Where("key_id = ?", c.Param("id")).Order("date desc").Limit(usageHistoryDays).Find(&usage).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch usage details"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": usage, "totals": sumUsage(usage)})
}

// GetMyUsage returns usage stats for the authenticated API key
func (h *Handler) GetMyUsage(c *gin.Context) {
	raw, exists := c.Get(apiKeyContextKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "API Key context missing"})
		return
	}
	apiKey := raw.(*database.APIKey)

	var usage []database.APIUsage
	if err := h.DB.Where("key_id = ?", apiKey.ID).Order("date desc").Limit(usageHistoryDays).Find(&usage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch usage details"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key_name":      apiKey.Name,
		"unit_id":       apiKey.UnitID,
		"usage_history": usage,
		"totals":        sumUsage(usage),
	})
}
