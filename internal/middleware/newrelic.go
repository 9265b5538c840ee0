package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicCaller annotates the nrgin transaction with the caller and records handler
// errors. It is a no-op when New Relic is disabled.
func NewRelicCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		txn := nrgin.Transaction(c)
		if txn == nil {
			return
		}

		if caller, ok := Caller(c); ok {
			txn.AddAttribute("caller.id", caller.ID)
			txn.AddAttribute("caller.role", string(caller.Role))
		}

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
