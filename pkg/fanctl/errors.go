// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import "errors"

var (
	// ErrInvalidConfig indicates the engine configuration failed validation.
	ErrInvalidConfig = errors.New("fanctl: invalid configuration")
	// ErrUnknownGroup indicates a reference to a group name that was never defined.
	ErrUnknownGroup = errors.New("fanctl: unknown group")
	// ErrUnknownZone indicates a reference to a zone name that was never defined.
	ErrUnknownZone = errors.New("fanctl: unknown zone")
	// ErrUnknownFan indicates a reference to a fan name that was never defined.
	ErrUnknownFan = errors.New("fanctl: unknown fan")
	// ErrUnknownParameter indicates a reference to a parameter name with no stored value.
	ErrUnknownParameter = errors.New("fanctl: unknown parameter")
	// ErrUnknownAction indicates a JSON action entry named an action type with no registered factory.
	ErrUnknownAction = errors.New("fanctl: unknown action type")
	// ErrActionAlreadyRegistered indicates two actions registered under the same type name.
	ErrActionAlreadyRegistered = errors.New("fanctl: action type already registered")
	// ErrPropertyNotFound indicates the object cache has no cached value for a member/interface/property tuple.
	ErrPropertyNotFound = errors.New("fanctl: property not found in cache")
	// ErrTypeMismatch indicates a PropertyValue was accessed as the wrong variant.
	ErrTypeMismatch = errors.New("fanctl: property value type mismatch")
	// ErrEngineAlreadyStarted indicates Start was called twice on the same manager.
	ErrEngineAlreadyStarted = errors.New("fanctl: engine already started")
	// ErrEngineStopped indicates an operation was attempted after Stop.
	ErrEngineStopped = errors.New("fanctl: engine stopped")
	// ErrInvalidJSON indicates a malformed or schema-violating JSON configuration file.
	ErrInvalidJSON = errors.New("fanctl: invalid JSON configuration")
	// ErrUnknownService indicates a broker lookup for a D-Bus service name with no known objects.
	ErrUnknownService = errors.New("fanctl: unknown service")
)
