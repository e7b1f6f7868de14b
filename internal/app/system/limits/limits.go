// internal/app/system/limits/limits.go
package limits

// Request body size limits. These keep a single request from exhausting
// memory before validation runs.
const (
	// MaxJSONBody is the largest JSON request body the API decodes.
	MaxJSONBody = 1 << 20 // 1 MB
)
