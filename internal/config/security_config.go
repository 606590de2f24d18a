// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic        SecurityLevel = iota // No identity required
	SecurityAuthenticated                      // An identity oracle must resolve a caller
)

// RouteSecurityConfig maps named HTTP routes to their required security level.
// Administrator checks are made by the access policy, not here.
var RouteSecurityConfig = map[string]SecurityLevel{
	"health":         SecurityPublic,
	"files.download": SecurityPublic,

	"assets.create":     SecurityAuthenticated,
	"assets.list":       SecurityAuthenticated,
	"assets.get":        SecurityAuthenticated,
	"assets.update":     SecurityAuthenticated,
	"assets.transition": SecurityAuthenticated,
	"assets.qr":         SecurityAuthenticated,
	"assets.qr_pdf":     SecurityAuthenticated,
	"custodians.list":   SecurityAuthenticated,
}

// GetSecurityLevel returns the security level for a named route
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := RouteSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown routes
	return SecurityAuthenticated
}
