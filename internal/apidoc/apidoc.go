// Package apidoc keeps api/openapi.yaml honest: every documented operation
// must be routed, every route documented, and the error body must keep its
// published shape.
package apidoc

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the document lives relative to the repository root.
const DefaultPath = "api/openapi.yaml"

var operationKeys = map[string]string{
	"get":     http.MethodGet,
	"put":     http.MethodPut,
	"post":    http.MethodPost,
	"delete":  http.MethodDelete,
	"patch":   http.MethodPatch,
	"head":    http.MethodHead,
	"options": http.MethodOptions,
}

// Document is the subset of an OpenAPI 3 document the checks read.
type Document struct {
	Paths      map[string]map[string]yaml.Node `yaml:"paths"`
	Components struct {
		Schemas map[string]Schema `yaml:"schemas"`
	} `yaml:"components"`
}

type Schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]Schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *Schema           `yaml:"items"`
}

func Load(path string) (Document, error) {
	var doc Document
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// Operations returns "METHOD /path" for every documented operation, sorted.
func (d Document) Operations() []string {
	var out []string
	for path, item := range d.Paths {
		for key := range item {
			if method, ok := operationKeys[strings.ToLower(key)]; ok {
				out = append(out, method+" "+path)
			}
		}
	}
	sort.Strings(out)
	return out
}

// RouteOperations returns "METHOD /path" for every route registered on routes.
func RouteOperations(routes chi.Routes) ([]string, error) {
	seen := make(map[string]struct{})
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+normalizeRoute(route)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk routes: %w", err)
	}
	out := make([]string, 0, len(seen))
	for op := range seen {
		out = append(out, op)
	}
	sort.Strings(out)
	return out, nil
}

func normalizeRoute(route string) string {
	for strings.Contains(route, "/*/") {
		route = strings.ReplaceAll(route, "/*/", "/")
	}
	route = strings.TrimSuffix(route, "/*")
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	if route == "" {
		route = "/"
	}
	return route
}

// CompareRoutes reports operations present on only one side.
func CompareRoutes(doc Document, routes chi.Routes) error {
	routed, err := RouteOperations(routes)
	if err != nil {
		return err
	}
	undocumented := difference(routed, doc.Operations())
	unrouted := difference(doc.Operations(), routed)

	var errs []error
	for _, op := range undocumented {
		errs = append(errs, fmt.Errorf("route %s is not documented", op))
	}
	for _, op := range unrouted {
		errs = append(errs, fmt.Errorf("documented operation %s has no route", op))
	}
	return errors.Join(errs...)
}

func difference(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, v := range b {
		in[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := in[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

// ValidateErrorResponse checks the ErrorResponse schema: a required string
// "message" and an optional string "requestId".
func ValidateErrorResponse(doc Document) error {
	s, ok := doc.Components.Schemas["ErrorResponse"]
	if !ok {
		return errors.New("schema \"ErrorResponse\" missing")
	}
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	if !slices.Contains(s.Required, "message") {
		return errors.New("ErrorResponse.required must include \"message\"")
	}
	for _, field := range []string{"message", "requestId"} {
		prop, ok := s.Properties[field]
		if !ok || prop.Type != "string" {
			return fmt.Errorf("ErrorResponse.%s must be string", field)
		}
	}
	return nil
}
