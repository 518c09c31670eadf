// dao/session_dao.go
package dao

import (
	"context"

	"github.com/gatewarden/gatewarden/db"
	"github.com/gatewarden/gatewarden/model"
)

// SessionDAO reads sessions from the Redis session store.
type SessionDAO struct{}

func NewSessionDAO() *SessionDAO {
	return &SessionDAO{}
}

func (dao *SessionDAO) SessionByID(ctx context.Context, sessionID string) (*model.Session, error) {
	return db.GetSession(ctx, sessionID)
}
