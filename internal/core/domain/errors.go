package domain

import "errors"

// ErrDuplicate is returned by storage when a unique key already exists.
var ErrDuplicate = errors.New("duplicate key")

// ErrAmountOutOfRange is returned by storage when a balance would exceed MaxAmount.
var ErrAmountOutOfRange = errors.New("amount out of range")
