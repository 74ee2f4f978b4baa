package api

import (
	"github.com/starford/bhc/internal/stylesheet"
)

// WorkspaceListResponse lists the open workspace roots.
type WorkspaceListResponse struct {
	Roots []string `json:"roots" validate:"required"`
}

// ParseRequest is the request body for parsing a stylesheet.
type ParseRequest struct {
	CSS string `json:"css" example:"h1 { color: red; }" validate:"required"`
}

// ParseResponse carries the parsed styles and the constructs the parser
// skipped.
type ParseResponse struct {
	Styles      []stylesheet.Style      `json:"styles"`
	Diagnostics []stylesheet.Diagnostic `json:"diagnostics"`
}
