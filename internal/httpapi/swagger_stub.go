//go:build !swagger

package httpapi

import "github.com/go-chi/chi/v5"

// MountSwagger serves nothing in default builds. The UI and doc.json are
// compiled in with -tags swagger.
func MountSwagger(chi.Router) {}
