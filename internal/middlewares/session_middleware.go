package middlewares

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dataportal/internal/logger"
	"dataportal/internal/models"
	"dataportal/internal/persistence"
)

type SessionOpener interface {
	OpenSession() *persistence.Session
}

type UserFinder interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Session binds a persistence session to the request. Services that write
// commit before responding; transactions still open afterwards are
// committed when the response status is below 400 and rolled back
// otherwise, including when the handler panics.
func Session(store SessionOpener, users UserFinder, lggr logger.Logger) gin.HandlerFunc {
	lggr = lggr.Named("SessionMiddleware")

	return func(c *gin.Context) {
		sess := store.OpenSession()
		ctx := c.Request.Context()

		if v, ok := c.Get(UserIDKey); ok {
			if id, ok := v.(uuid.UUID); ok {
				user, err := users.FindUserByID(ctx, id)
				if err != nil {
					sess.Close()
					lggr.Errorw("Failed to load current user", "user", id, "err", err)
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to load user"})
					return
				}
				sess.SetCurrentUser(user)
			}
		}

		c.Request = c.Request.WithContext(persistence.WithSession(ctx, sess))

		defer func() {
			if r := recover(); r != nil {
				if err := sess.RollbackAll(); err != nil {
					lggr.Errorw("Rollback after panic failed", "err", err)
				}
				sess.Close()
				panic(r)
			}
		}()

		c.Next()

		if status := c.Writer.Status(); status < http.StatusBadRequest {
			if err := sess.CommitAll(); err != nil {
				lggr.Errorw("Commit failed", "path", c.Request.URL.Path, "err", err)
			}
		} else if err := sess.RollbackAll(); err != nil {
			lggr.Errorw("Rollback failed", "path", c.Request.URL.Path, "err", err)
		}
		sess.Close()

		lggr.Debugw("Request finished", "path", c.Request.URL.Path, "status", c.Writer.Status(), "dbTime", sess.DBTime())
	}
}

// CurrentSession returns the persistence session bound by Session.
func CurrentSession(c *gin.Context) (*persistence.Session, bool) {
	return persistence.SessionFrom(c.Request.Context())
}
