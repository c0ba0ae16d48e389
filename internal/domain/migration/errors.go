package migration

import "github.com/juju/errors"

const (
	ErrInvalidJobID      = errors.ConstError("invalid job id")
	ErrInvalidSourceLink = errors.ConstError("invalid s3 link")

	ErrStatusNotFound  = errors.ConstError("status not found")
	ErrStatusEmpty     = errors.ConstError("status record is empty")
	ErrStatusCorrupted = errors.ConstError("status record cannot be decoded")

	ErrObjectNotFound = errors.ConstError("object not found")
	ErrObjectStore    = errors.ConstError("object store failure")

	ErrTranslationParse     = errors.ConstError("translation response cannot be parsed")
	ErrNoConvertibleContent = errors.ConstError("no convertible content")

	ErrAuthentication       = errors.ConstError("authentication failed")
	ErrNotificationDelivery = errors.ConstError("notification delivery failed")
)
