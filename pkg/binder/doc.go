// Package binder fills request structs from JSON bodies, path parameters
// and query strings. Each binder only touches fields carrying its own tag
// (`json`, `path`, `query`), so binders can be chained over one struct.
//
//	type AdjustRequest struct {
//		SellerID uuid.UUID `path:"sellerID" json:"-"`
//		Resource string    `json:"resource"`
//		Delta    int64     `json:"delta"`
//	}
//
// Types implementing encoding.TextUnmarshaler, such as uuid.UUID, are decoded
// through UnmarshalText. Every failure wraps one of the package sentinels.
package binder
