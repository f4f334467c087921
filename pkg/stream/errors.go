package stream

import "errors"

// Errors returned while opening a stream. Parametrized kinds are wrapped, so
// match with errors.Is.
var (
	ErrCreateFailed            = errors.New("cannot create the source handle")
	ErrStartFailed             = errors.New("cannot start the stream")
	ErrFilterRejected          = errors.New("source rejected a filter")
	ErrIntervalRejected        = errors.New("source rejected the interval")
	ErrRecentIntervalRejected  = errors.New("source rejected the recent interval")
	ErrRIBPeriodRejected       = errors.New("source rejected the RIB period")
	ErrInterfaceNotFound       = errors.New("data interface does not exist")
	ErrInterfaceOptionNotFound = errors.New("data interface option does not exist")
	ErrSetOptionFailed         = errors.New("cannot set the data interface option")
	ErrEmbeddedNul             = errors.New("value contains a NUL byte")
)

// Errors returned while pulling records and elements.
var (
	ErrRecordPullFailed    = errors.New("cannot get the next record")
	ErrRecordCorrupted     = errors.New("the record is corrupted")
	ErrRecordUnsupported   = errors.New("the record is unsupported")
	ErrSourceUnusable      = errors.New("the record source is empty, filtered out, or corrupted")
	ErrUnknownRecordStatus = errors.New("record has an unknown status")
	ErrElementPullFailed   = errors.New("cannot get the next element of the record")
	ErrRecordInvalidated   = errors.New("record was invalidated by a newer pull")
	ErrClosed              = errors.New("stream is closed")
)

// Errors returned while decoding element payloads.
var (
	ErrUnknownElementType = errors.New("unknown element type")
	ErrInvalidAddress     = errors.New("invalid IP address")
	ErrInvalidMaskLength  = errors.New("invalid prefix mask length")
	ErrInvalidText        = errors.New("name is not valid text")
	ErrUnknownPeerState   = errors.New("unknown peer state")
	ErrUnknownOriginType  = errors.New("unknown origin type")
)
