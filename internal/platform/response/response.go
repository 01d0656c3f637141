package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/venuelane/service-reservation/internal/domain"
)

// Success writes a 200 with the given payload.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// Created writes a 201 with the given payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"data": data})
}

// Paginated writes a 200 with items and paging metadata.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"data":  items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// BadRequest writes a 400 with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": "bad_request"})
}

// Error maps a domain error onto the HTTP surface. Each typed error gets a
// stable machine-readable code so clients never string-match messages.
func Error(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
		illegalErr    *domain.IllegalTransitionError
		overlapErr    *domain.OverlapError
		expiredErr    *domain.TokenExpiredError
		conflictErr   *domain.ConflictError
		forbiddenErr  *domain.ForbiddenError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "code": "validation_failed"})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error(), "code": "not_found"})
	case errors.As(err, &illegalErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":         illegalErr.Error(),
			"code":          "illegal_transition",
			"legal_targets": illegalErr.LegalTargets,
		})
	case errors.As(err, &overlapErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     overlapErr.Error(),
			"code":      "booking_overlap",
			"conflicts": overlapErr.Conflicts,
		})
	case errors.As(err, &expiredErr):
		c.JSON(http.StatusGone, gin.H{"error": expiredErr.Error(), "code": "token_expired"})
	case errors.As(err, &conflictErr):
		// Optimistic-lock conflict: the client should refetch and re-present,
		// not blindly retry.
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Error(), "code": "lock_conflict"})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, gin.H{"error": forbiddenErr.Error(), "code": "forbidden"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": "internal"})
	}
}
