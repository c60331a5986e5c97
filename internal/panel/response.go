package panel

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
	"github.com/BxNxM/even-dev/pkg/logger"
	"github.com/BxNxM/even-dev/pkg/util"
)

// 统一响应信封: {"success": bool, "data": ...} / {"success": false, "error": {code, message}}。

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": code, "message": message}})
}

func notFound(c *gin.Context, code, message string) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "error": gin.H{"code": code, "message": message}})
}

func serverError(c *gin.Context, err error) {
	logger.Error("panel: internal error", logger.FieldPath, c.FullPath(), logger.FieldError, err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": gin.H{"code": "internal_error", "message": "internal error"}})
}

// failure 按哨兵错误选择状态码, 错误码取 AppError.Code。
func failure(c *gin.Context, err error) {
	code := pkgerr.CodeOf(err)
	switch {
	case errors.Is(err, pkgerr.ErrInvalidInput):
		badRequest(c, util.FirstNonEmpty(code, "invalid_request"), err.Error())
	case errors.Is(err, pkgerr.ErrNotFound):
		notFound(c, util.FirstNonEmpty(code, "not_found"), err.Error())
	case errors.Is(err, pkgerr.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": gin.H{"code": "unavailable", "message": err.Error()}})
	default:
		serverError(c, err)
	}
}
