package usecase

import "errors"

// ErrPersistence indicates the durable store rejected or could not complete
// an operation; a message that fails to persist must not be cached or fanned
// out.
var ErrPersistence = errors.New("chat: persistence failure")
