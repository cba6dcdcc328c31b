package http

import (
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/dto"
)

// MapDomainError returns the status and envelope a domain error is served
// with. Errors outside the domain family map to 500 with a generic message.
func MapDomainError(err error) (int, *dto.ErrorResponse) {
	return dto.MapDomainError(err)
}

// RespondWithError writes err as an error envelope carrying the trace ID.
func RespondWithError(c *gin.Context, err error) {
	dto.HandleError(c, err)
}

// RespondWithErrorCode writes an envelope for failures raised by the HTTP
// layer itself, such as unknown routes, where there is no domain error.
func RespondWithErrorCode(c *gin.Context, code, message string) {
	c.JSON(dto.HTTPStatusFromCode(code), dto.NewErrorResponse(code, message).WithTraceID(dto.GetTraceID(c)))
}
