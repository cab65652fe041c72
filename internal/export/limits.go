package export

import "github.com/parquetry/parquetry/pkg/config"

// ResolveLimit determines the effective row cap for one table. An
// explicit override wins: negative means unlimited (nil), zero or a
// positive value is an exact cap (zero yields a schema-only, zero-row
// export). Without an override the global default applies, which may
// itself be nil for unlimited.
//
// Capping rows does not change the source's default row ordering; a
// caller that needs a specific subset must use a custom query with an
// explicit ORDER BY.
func ResolveLimit(src *config.SourceConfig, table string, globalDefault *int64) *int64 {
	if v, ok := src.OverrideLimits[table]; ok {
		if v < 0 {
			return nil
		}
		limit := v
		return &limit
	}
	return globalDefault
}
