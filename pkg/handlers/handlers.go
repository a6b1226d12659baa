package handlers

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnavshah/warplanner-api-go/pkg/auth"
	"github.com/arnavshah/warplanner-api-go/pkg/database"
	"github.com/arnavshah/warplanner-api-go/pkg/middleware"
	"github.com/arnavshah/warplanner-api-go/pkg/notify"
	"github.com/arnavshah/warplanner-api-go/pkg/planner"
)

//go:embed static/*
var staticEmbed embed.FS

const apiKeyContextKey = "apiKey"

// Handler contains dependencies for the route handlers
type Handler struct {
	DB       *gorm.DB
	Sessions *planner.Registry
	Signer   *auth.Signer
	Notifier *notify.Notifier
	Logger   *zap.Logger
}

func bearer(c *gin.Context) string {
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

// AuthMiddleware verifies the JWT token for admin routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := h.Signer.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// APIKeyMiddleware verifies the HMAC signature of an API key, checks it has not been
// revoked and binds the request to the key's guild unit
func (h *Handler) APIKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := bearer(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API Key required"})
			return
		}

		unitID, err := h.Signer.VerifyKey(key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key signature"})
			return
		}

		apiKey, err := auth.LookupAPIKey(h.DB, key)
		if err != nil || apiKey.UnitID != unitID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API Key revoked or unknown"})
			return
		}

		c.Set(apiKeyContextKey, apiKey)
		c.Set(middleware.UnitKey, unitID)
		c.Next()
	}
}

func unitOf(c *gin.Context) string {
	return c.GetString(middleware.UnitKey)
}

// RecordUsage counts a request against the caller's key, adding saves and assignments written
func (h *Handler) RecordUsage(c *gin.Context, saves, assignments int) {
	raw, exists := c.Get(apiKeyContextKey)
	if !exists {
		return
	}
	apiKey := raw.(*database.APIKey)

	today := time.Now().Format("2006-01-02")

	err := h.DB.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":     gorm.Expr("request_count + ?", 1),
			"total_saves":       gorm.Expr("total_saves + ?", saves),
			"total_assignments": gorm.Expr("total_assignments + ?", assignments),
		}),
	}).Create(&database.APIUsage{
		KeyID:            apiKey.ID,
		Date:             today,
		RequestCount:     1,
		TotalSaves:       saves,
		TotalAssignments: assignments,
	}).Error
	if err != nil {
		h.Logger.Warn("record usage", zap.Uint("key_id", apiKey.ID), zap.Error(err))
	}
}

// Login handles admin login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user database.MasterUser
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.Signer.CreateToken(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// GenerateKey issues an API key bound to one guild unit
func (h *Handler) GenerateKey(c *gin.Context) {
	var req struct {
		Name   string `json:"name" binding:"required"`
		UnitID string `json:"unit_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, err := h.Signer.GenerateKey(req.UnitID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	apiKey := database.APIKey{
		Key:        key,
		Name:       req.Name,
		KeyPreview: auth.Preview(key),
		UnitID:     req.UnitID,
	}
	if err := h.DB.Create(&apiKey).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create key record"})
		return
	}

	h.Logger.Info("api key issued", zap.String("unit", req.UnitID), zap.Uint("key_id", apiKey.ID))
	c.JSON(http.StatusCreated, gin.H{
		"id":      apiKey.ID,
		"name":    req.Name,
		"unit_id": req.UnitID,
		"key":     key,
	})
}

// ListKeys returns all API keys
func (h *Handler) ListKeys(c *gin.Context) {
	var keys []database.APIKey
	if err := h.DB.Order("id").Find(&keys).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list keys"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// RevokeKey deletes an API key
func (h *Handler) RevokeKey(c *gin.Context) {
	res := h.DB.Delete(&database.APIKey{}, c.Param("id"))
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete key"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key revoked"})
}

// AdminInterface serves the admin web interface from embedded files
func (h *Handler) AdminInterface(c *gin.Context) {
	data, err := staticEmbed.ReadFile("static/index.html")
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "static/index.html not found in embedded FS"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}

// StaticFS returns the embedded filesystem for static assets
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(staticEmbed, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
