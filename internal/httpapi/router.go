// Package httpapi exposes the relay's HTTP surface: the health probe and a
// read-only machine readout for operators.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"payrelay/internal/tree"
)

// NewRouter builds the gin engine.
func NewRouter(store tree.Store, log *slog.Logger) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	router.GET("/machines/:id", func(c *gin.Context) {
		id := c.Param("id")
		record, err := store.Machine(c.Request.Context(), id)
		if err != nil {
			log.Error("machine readout failed", "machine", id, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store read failed"})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown machine"})
			return
		}
		c.JSON(http.StatusOK, record)
	})

	return router
}
