// Package auth provides admin authentication for pileup-gateway.
//
// # Authentication Flow
//
// The operator is the only authenticated identity. Login exchanges the
// configured admin password for a JWT bearer token:
//
//	admin := auth.NewAdmin([]byte(secret), []byte(passwordHash))
//	token, err := admin.Login(password)
//
// Passwords are verified against a bcrypt hash stored in the config file
// (generate one with `pileup-gateway hash-password`). Tokens are signed
// with HS256 using the configured jwt_secret and carry a "sub" claim of
// "admin" with a 12-hour expiry.
//
// # HTTP Middleware
//
// RequireAdmin wraps handlers that mutate state:
//
//	mux.HandleFunc("POST /api/admin/next", admin.RequireAdmin(handleNext))
//
// It extracts the bearer token from the Authorization header and rejects
// missing, malformed, expired, or forged tokens with a JSON 401.
package auth
