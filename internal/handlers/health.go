package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	appErrors "github.com/gymstack/gymstack/pkg/errors"
	"github.com/gymstack/gymstack/pkg/response"
)

// Health reports readiness. The database ping keeps load balancers from
// routing traffic to an instance whose storage is unreachable.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(requestContext(c))
			}
			if err != nil {
				response.Error(c, appErrors.ErrStorageUnavailable.WithInternal(err))
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
