package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// RequestIDHeader carries the request identifier in and out.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// requestID takes the identifier from the request header or generates one,
// and echoes it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestIDFromContext returns the request identifier, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Request is a query request body.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Response is a query response body.
type Response struct {
	Data       any            `json:"data,omitempty"`
	Errors     gqlerror.List  `json:"errors,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, gerr := s.decodeRequest(r)
	if gerr != nil {
		s.writeResponse(w, http.StatusBadRequest, &Response{Errors: gqlerror.List{gerr}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.Timeout())
	defer cancel()

	res := s.executor.Query(ctx, req.Query, req.Variables, req.OperationName)

	status := http.StatusOK
	if res.Invalid {
		status = http.StatusUnprocessableEntity
	}
	resp := &Response{
		Data:       res.Data,
		Errors:     convertErrors(res.Errors, res.Invalid),
		Extensions: map[string]any{"requestId": RequestIDFromContext(r.Context())},
	}
	s.writeResponse(w, status, resp)
}

func (s *Server) decodeRequest(r *http.Request) (*Request, *gqlerror.Error) {
	var req Request

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				return nil, mapJSONError(err)
			}
		}

	default:
		body := http.MaxBytesReader(nil, r.Body, s.config.MaxBodyBytes)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/graphql" {
			data, err := io.ReadAll(body)
			if err != nil {
				return nil, mapJSONError(err)
			}
			req.Query = string(data)
			break
		}
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return nil, mapJSONError(err)
		}
	}

	if req.Query == "" {
		return nil, mapJSONError(fmt.Errorf("missing query"))
	}
	return &req, nil
}

func (s *Server) writeResponse(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
