package contextkeys

type contextKey string

// DBContextKey stores the request scoped *gorm.DB (pool or transaction).
const DBContextKey = contextKey("db")

// Gin context keys set by the auth middleware.
const (
	UserIDKey = "userID"
	RoleKey   = "role"
)
