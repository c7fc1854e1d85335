package lark

import (
	"errors"
	"fmt"
)

// ErrTokenRefresh wraps every failure to obtain a tenant access token.
var ErrTokenRefresh = errors.New("lark: token refresh failed")

// APIError is a response whose code field is non-zero.
type APIError struct {
	Status int
	Code   int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lark api error %d: %s", e.Code, e.Msg)
}
