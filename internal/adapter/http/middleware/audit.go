package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"fractional-bonds/internal/core/domain"
	"fractional-bonds/internal/core/ports"
	"fractional-bonds/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxAuditUserID lets public handlers (register, login) name the user they acted on.
const CtxAuditUserID = "audit_user_id"

// AuditLog records successful write operations after the handler has run.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(response.RequestIDKey),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       auditUser(c),
			Action:       action,
			ResourceType: resourceType,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func auditUser(c *gin.Context) *uuid.UUID {
	if id, ok := UserID(c); ok {
		return &id
	}
	if v, exists := c.Get(CtxAuditUserID); exists {
		if id, ok := v.(uuid.UUID); ok {
			return &id
		}
	}
	return nil
}

func mapPathToAction(path, method string) (domain.AuditAction, string) {
	if method != http.MethodPost {
		return "", ""
	}
	switch path {
	case "/api/v1/auth/register":
		return domain.AuditActionRegister, "user"
	case "/api/v1/auth/login":
		return domain.AuditActionLogin, "session"
	case "/api/v1/wallet/topup":
		return domain.AuditActionTopup, "wallet"
	case "/api/v1/transactions/buy":
		return domain.AuditActionBuy, "purchase"
	}
	return "", ""
}
