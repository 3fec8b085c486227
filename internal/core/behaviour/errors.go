package behaviour

import "errors"

var (
	ErrNilOwner           = errors.New("behaviour: owner is nil")
	ErrNilController      = errors.New("behaviour: controller is nil")
	ErrNilCondition       = errors.New("behaviour: condition template is nil")
	ErrNilAction          = errors.New("behaviour: action is nil")
	ErrAlreadyInitialized = errors.New("behaviour: already initialized")
	ErrNotInitialized     = errors.New("behaviour: not initialized")
	ErrInvalidConfig      = errors.New("behaviour: invalid configuration")
)
