package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/kerbaras/mangafeed/pkg/utils"
)

// Kind groups errors into the categories shown to the user.
type Kind int

const (
	KindUnknown Kind = iota
	KindNoResult
	KindUnimplemented
	KindNetwork
	KindDecoding
)

func (k Kind) String() string {
	switch k {
	case KindNoResult:
		return "no result"
	case KindUnimplemented:
		return "unimplemented"
	case KindNetwork:
		return "network error"
	case KindDecoding:
		return "decoding error"
	}
	return "unknown error"
}

var (
	ErrNoResult      = errors.New("no result")
	ErrUnimplemented = errors.New("not implemented by source")
)

// Error is a source failure tagged with its kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with the kind KindOf finds for it.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Op: op, Err: err}
}

// KindOf classifies err by its structure. Nil is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var srcErr *Error
	if errors.As(err, &srcErr) {
		return srcErr.Kind
	}

	switch {
	case errors.Is(err, ErrNoResult):
		return KindNoResult
	case errors.Is(err, ErrUnimplemented):
		return KindUnimplemented
	}

	var statusErr *utils.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusNotFound:
			return KindNoResult
		case statusErr.Code == http.StatusNotImplemented:
			return KindUnimplemented
		case statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500:
			return KindNetwork
		}
		return KindUnknown
	}

	var (
		decodeErr *utils.DecodeError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &decodeErr) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return KindDecoding
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	return KindUnknown
}
