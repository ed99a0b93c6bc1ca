package validator

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

//go:embed backend.yaml
var backendSchema []byte

// ResponseValidator checks backend responses against an OpenAPI description
type ResponseValidator struct {
	doc    *openapi3.T
	router routers.Router
}

// Schema returns the embedded backend description
func Schema() []byte {
	return backendSchema
}

// NewBackendValidator builds a validator from the embedded backend description
func NewBackendValidator(ctx context.Context) (*ResponseValidator, error) {
	return NewResponseValidator(ctx, backendSchema)
}

// NewResponseValidator builds a validator from an OpenAPI document
func NewResponseValidator(ctx context.Context, schema []byte) (*ResponseValidator, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI schema: %w", err)
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	return &ResponseValidator{doc: doc, router: router}, nil
}

// ValidateResponse checks one response. Requests for routes the document
// does not describe pass unchecked.
func (v *ResponseValidator) ValidateResponse(ctx context.Context, req *http.Request, status int, header http.Header, body []byte) error {
	route, pathParams, err := v.router.FindRoute(req)
	if err != nil {
		return nil
	}

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		},
		Status: status,
		Header: header,
		Body:   io.NopCloser(bytes.NewReader(body)),
		Options: &openapi3filter.Options{
			IncludeResponseStatus: true,
		},
	}

	return openapi3filter.ValidateResponse(ctx, input)
}
