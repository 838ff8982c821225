// Package cache provides a generic, thread-safe LRU cache with optional
// time to live. It backs the plan template catalog cache, where templates
// are read on every engine operation but change rarely.
//
//	c := cache.NewLRU[string, *Template](256,
//		cache.WithTTL[string, *Template](5*time.Minute),
//	)
//	c.Put("basic", tpl)
//	if tpl, ok := c.Get("basic"); ok {
//		// fresh hit
//	}
//
// Get, Put and Remove are O(1). Expired entries are dropped when they are
// next touched; Len may therefore count entries that Get would not return.
package cache
