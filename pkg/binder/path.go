package binder

import (
	"net/http"
)

// Path binds `path:"name"` fields using extractor, typically chi.URLParam.
// Empty parameters leave the field untouched.
//
//	type SellerRequest struct {
//		SellerID uuid.UUID `path:"sellerID" json:"-"`
//	}
//
//	r.Get("/sellers/{sellerID}/usage", handler.Wrap(h,
//		handler.WithBinders[SellerRequest](binder.Path(chi.URLParam)),
//	))
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindToStruct(v, "path", func(name string) []string {
			if value := extractor(r, name); value != "" {
				return []string{value}
			}
			return nil
		}, ErrFailedToParsePath)
	}
}

// Query binds `query:"name"` fields from the URL query string.
// Repeated and comma-separated values fill slice fields.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		values := r.URL.Query()
		return bindToStruct(v, "query", func(name string) []string {
			return values[name]
		}, ErrFailedToParseQuery)
	}
}
