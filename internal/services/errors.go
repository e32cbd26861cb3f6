package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/ioscatalog/ios/backend/pkg/response"
	"gorm.io/gorm"
)

// storeError maps a gorm error onto the API error taxonomy. Errors that are
// already *response.AppError pass through untouched.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return response.NewNotFound(op + ": not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return response.NewConflict(op + ": a record with the same unique value already exists")
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return response.NewUnavailable(op + ": store unavailable")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFound(what string, id interface{}) error {
	return response.NewNotFound(fmt.Sprintf("%s %v not found", what, id))
}
