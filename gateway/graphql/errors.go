package graphql

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/99designs/gqlgen/graphql/errcode"
	gqlerrors "github.com/graphql-go/graphql/gqlerrors"
	"github.com/nats-io/nats.go"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/c360/semql/errors"
	"github.com/c360/semql/natsclient"
)

// Error codes set in the "code" extension of execution errors.
const (
	CodeTimeout            = "TIMEOUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeConnectionClosed   = "CONNECTION_CLOSED"
	CodeDeadlineExceeded   = "DEADLINE_EXCEEDED"
	CodeCancelled          = "CANCELLED"
	CodeTransient          = "TRANSIENT_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInternal           = "INTERNAL_ERROR"
	CodeQuery              = "QUERY_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
)

// convertErrors turns executor errors into response errors. Invalid results
// carry parse or validation failures and get the validation code.
func convertErrors(errs []gqlerrors.FormattedError, invalid bool) gqlerror.List {
	if len(errs) == 0 {
		return nil
	}
	list := make(gqlerror.List, 0, len(errs))
	for _, fe := range errs {
		e := &gqlerror.Error{Message: fe.Message}
		for _, l := range fe.Locations {
			e.Locations = append(e.Locations, gqlerror.Location{Line: l.Line, Column: l.Column})
		}
		for _, p := range fe.Path {
			switch v := p.(type) {
			case string:
				e.Path = append(e.Path, ast.PathName(v))
			case int:
				e.Path = append(e.Path, ast.PathIndex(v))
			}
		}
		if len(fe.Extensions) > 0 {
			e.Extensions = make(map[string]any, len(fe.Extensions))
			for k, v := range fe.Extensions {
				e.Extensions[k] = v
			}
		}

		if invalid {
			errcode.Set(e, errcode.ValidationFailed)
		} else if cause := rootCause(fe); cause != nil {
			mapCause(e, cause)
		} else {
			errcode.Set(e, CodeQuery)
		}
		list = append(list, e)
	}
	return list
}

// rootCause unwraps the executor's error chain to the error a resolver
// returned, or nil when the error came from the executor itself.
func rootCause(fe gqlerrors.FormattedError) error {
	cause := fe.OriginalError()
	for cause != nil {
		ge, ok := cause.(*gqlerrors.Error)
		if !ok {
			return cause
		}
		cause = ge.OriginalError
	}
	return nil
}

// mapCause sets the code of e from a resolver error.
func mapCause(e *gqlerror.Error, err error) {
	switch {
	case stderrors.Is(err, nats.ErrTimeout):
		e.Message = "Query timeout - please try again"
		errcode.Set(e, CodeTimeout)
		setRetryable(e)

	case stderrors.Is(err, nats.ErrNoResponders),
		stderrors.Is(err, natsclient.ErrCircuitOpen),
		stderrors.Is(err, natsclient.ErrNotConnected):
		e.Message = "Service unavailable - no responders for query"
		errcode.Set(e, CodeServiceUnavailable)
		setRetryable(e)

	case stderrors.Is(err, nats.ErrConnectionClosed):
		e.Message = "Connection closed - please retry"
		errcode.Set(e, CodeConnectionClosed)
		setRetryable(e)

	case stderrors.Is(err, context.DeadlineExceeded):
		e.Message = "Query timeout exceeded"
		errcode.Set(e, CodeDeadlineExceeded)

	case stderrors.Is(err, context.Canceled):
		e.Message = "Query cancelled"
		errcode.Set(e, CodeCancelled)

	case errors.IsInvalid(err):
		errcode.Set(e, CodeInvalidInput)

	case errors.IsFatal(err):
		e.Message = "Internal server error"
		errcode.Set(e, CodeInternal)

	case errors.IsTransient(err):
		errcode.Set(e, CodeTransient)
		setRetryable(e)

	default:
		errcode.Set(e, CodeQuery)
	}
}

func setRetryable(e *gqlerror.Error) {
	if e.Extensions == nil {
		e.Extensions = map[string]any{}
	}
	e.Extensions["retryable"] = true
}

// mapJSONError describes a malformed request body.
func mapJSONError(err error) *gqlerror.Error {
	var e *gqlerror.Error
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntax):
		e = &gqlerror.Error{
			Message:    fmt.Sprintf("Invalid request body: %s", syntax.Error()),
			Extensions: map[string]any{"offset": syntax.Offset},
		}
	case stderrors.As(err, &typ):
		e = &gqlerror.Error{
			Message:    fmt.Sprintf("Invalid request field %q: expected %s, got %s", typ.Field, typ.Type, typ.Value),
			Extensions: map[string]any{"field": typ.Field},
		}
	default:
		e = &gqlerror.Error{Message: fmt.Sprintf("Invalid request: %s", err.Error())}
	}
	errcode.Set(e, CodeBadRequest)
	return e
}
