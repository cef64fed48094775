package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/nuclear-outages/services/api/refresh"
)

type refreshQuery struct {
	Preview bool `form:"preview"`
	Head    int  `form:"head,default=5" binding:"min=1,max=100"`
}

// handleRefresh stages new tables without holding the cache lock; only the
// directory swap is serialized against /data.
func (s *Server) handleRefresh(c *gin.Context) {
	var q refreshQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := s.refresher.Refresh(c.Request.Context(), s.cache, refresh.Options{
		Preview: q.Preview,
		Head:    q.Head,
	})
	if err != nil {
		var domainErr *refresh.DomainError
		switch {
		case errors.Is(err, refresh.ErrInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.As(err, &domainErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, payload)
}
