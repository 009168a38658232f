package service

import (
	"encoding/json"
	"errors"

	"gorm.io/datatypes"

	"github.com/d60-Lab/market-ledger/internal/repository"
	"github.com/d60-Lab/market-ledger/pkg/apperr"
)

// Page is one page of a list result.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// storeErr converts a repository error into an application error.
// notFound is returned for missing rows; anything else is internal.
func storeErr(err error, notFound *apperr.Error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if notFound != nil && repository.IsNotFound(err) {
		return notFound
	}
	return apperr.Internal(err)
}

func jsonMeta(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
