package api

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	iam "github.com/goliatone/go-iam"
	"github.com/goliatone/go-print"
)

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error    string            `json:"error"`
	TextCode string            `json:"text_code,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// ErrorHandler maps errors to JSON replies. Authentication and
// authorization failures only expose their class, the reason stays in the
// logs.
func ErrorHandler(logger iam.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = iam.DefaultLogger()
	}

	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if goerrors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: fiberErr.Message})
		}

		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
				WithCode(goerrors.CodeInternal)
		}

		status := statusFor(richErr)

		logArgs := []any{
			"error", richErr.Message,
			"category", richErr.Category,
			"text_code", richErr.TextCode,
			"path", c.OriginalURL(),
			"details", print.MaybePrettyJSON(richErr.Metadata),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", append(logArgs, "cause", err)...)
		} else {
			logger.Info("request rejected", logArgs...)
		}

		res := ErrorResponse{
			Error:    http.StatusText(status),
			TextCode: richErr.TextCode,
		}

		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryInternal:
		default:
			res.Error = richErr.Message
			res.Fields = validationFields(richErr)
		}

		return c.Status(status).JSON(res)
	}
}

func statusFor(err *goerrors.Error) int {
	if err.Code >= http.StatusBadRequest && err.Code < 600 {
		return err.Code
	}

	switch err.Category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func validationFields(err *goerrors.Error) map[string]string {
	raw, ok := err.Metadata["fields"].(map[string]string)
	if !ok || len(raw) == 0 {
		return nil
	}
	return raw
}
