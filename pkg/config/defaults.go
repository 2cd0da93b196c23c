package config

// DefaultCacheViewMaxEntries is the decompressed-view cache's default
// capacity, in views (one entry per distinct root mapped to a view).
const DefaultCacheViewMaxEntries = 64
