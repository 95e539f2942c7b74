package authorizedclient

// AnonymousPrincipalName is the principal name daemons and other callers without a
// user context are cached under
const AnonymousPrincipalName = "anonymousUser"

// Principal is the caller a token is obtained for. It is passed explicitly from the
// request handling layer; nothing is looked up from ambient state.
type Principal interface {
	// Name identifies the principal in the cache key
	Name() string
	// Assertion returns the caller's own bearer token, if it has a usable one
	Assertion() (string, bool)
}

// Anonymous is the principal for client credentials callers
var Anonymous Principal = anonymousPrincipal{}

type anonymousPrincipal struct{}

func (anonymousPrincipal) Name() string {
	return AnonymousPrincipalName
}

func (anonymousPrincipal) Assertion() (string, bool) {
	return "", false
}

// NewPrincipal returns a principal authenticated with the given bearer token
func NewPrincipal(name, assertion string) Principal {
	return bearerPrincipal{name: name, assertion: assertion}
}

type bearerPrincipal struct {
	name      string
	assertion string
}

func (p bearerPrincipal) Name() string {
	return p.name
}

func (p bearerPrincipal) Assertion() (string, bool) {
	return p.assertion, p.assertion != ""
}
