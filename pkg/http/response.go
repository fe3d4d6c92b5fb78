package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// dataResponse writes data inside the standard envelope.
func dataResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return dataResponse(c, http.StatusOK, data)
}

func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return SuccessResponse(c, &ListDataResponse{Rows: rows, Total: total})
}

// BadRequestResponse writes the field errors from ReadAndValidateRequest.
func BadRequestResponse(c echo.Context, errs []ValidationError) error {
	return dataResponse(c, http.StatusBadRequest, errs)
}

// AppErrorResponse renders an *AppError with its own status. Any other error
// becomes an opaque 500 so internals are not leaked.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return dataResponse(c, status, []*AppError{appErr})
	}
	return dataResponse(c, http.StatusInternalServerError, []*AppError{
		NewAppError("ERR_INTERNAL", "", "internal error", http.StatusInternalServerError),
	})
}
