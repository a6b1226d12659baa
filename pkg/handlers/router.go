package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/warplanner-api-go/pkg/middleware"
)

const apiVersion = "1.0.0"

// NewRouter wires every route onto a fresh gin engine
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(h.Logger), middleware.Recovery(h.Logger))

	r.StaticFS("/static", StaticFS())
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "War Planner API",
			"version": apiVersion,
		})
	})

	r.GET("/admin", h.AdminInterface)
	r.POST("/admin/login", h.Login)

	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)
	}

	api := r.Group("/api")
	api.Use(h.APIKeyMiddleware())
	{
		api.POST("/validate", h.ValidateLineup)
		api.GET("/usage", h.GetMyUsage)

		api.POST("/session", h.OpenSession)
		api.GET("/session", h.GetSession)
		api.DELETE("/session", h.DiscardSession)

		sess := api.Group("/session")
		sess.POST("/variant", h.SwitchVariant)
		sess.POST("/refresh", h.RefreshSession)
		sess.POST("/moves/roster", h.MoveFromRoster)
		sess.POST("/moves/slot", h.MoveSlotToSlot)
		sess.DELETE("/slots/:team/:slot", h.Evict)
		sess.POST("/clear", h.ClearAll)
		sess.POST("/restore", h.Restore)
		sess.POST("/copy", h.CopyOther)
		sess.POST("/autofill", h.AutoFill)
		sess.PUT("/teams/:team/label", h.SetTeamLabel)
		sess.POST("/colors", h.StageColors)
		sess.PUT("/annotations/:member", h.StageAnnotation)
		sess.PUT("/note", h.SetNote)
		sess.POST("/groups", h.CreateGroup)
		sess.PUT("/groups/:id", h.UpdateGroup)
		sess.DELETE("/groups/:id", h.DeleteGroup)
		sess.POST("/groups/:id/reorder", h.ReorderGroup)
		sess.POST("/save", h.Save)
	}
	return r
}
