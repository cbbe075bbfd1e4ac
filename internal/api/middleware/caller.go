package middleware

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// CallerHeader carries the identity a write operation is submitted as. There
// is deliberately no authentication behind it: the ledger recognizes a single
// owner address and every other identity is just a customer account.
const CallerHeader = "X-Shop-Caller"

// callerKey is the gin context key holding the parsed caller address
const callerKey = "shop_caller"

// Caller extracts and validates the caller address for write operations
func Caller() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(CallerHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "bad_request",
					"message": CallerHeader + " header is required",
				},
			})
			return
		}

		if !common.IsHexAddress(raw) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "bad_request",
					"message": "invalid caller address",
				},
			})
			return
		}

		c.Set(callerKey, common.HexToAddress(raw))
		c.Next()
	}
}

// CallerAddress returns the caller address set by the Caller middleware
func CallerAddress(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := v.(common.Address)
	return addr, ok
}
