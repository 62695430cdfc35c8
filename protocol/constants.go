package protocol

// MCPVersion is the protocol version the client offers during initialize.
const MCPVersion = "2024-11-05"

// Method names. Tool methods are accepted under a dotted and a slashed
// spelling; the dotted form is canonical.
const (
	MethodInitialize     = "initialize"
	MethodToolsList      = "tools.list"
	MethodToolsCall      = "tools.call"
	MethodToolsListSlash = "tools/list"
	MethodToolsCallSlash = "tools/call"
)

var methodAliases = map[string]string{
	MethodToolsListSlash: MethodToolsList,
	MethodToolsCallSlash: MethodToolsCall,
}

// CanonicalMethod returns the canonical spelling of method.
// Unknown methods are returned unchanged.
func CanonicalMethod(method string) string {
	if canonical, ok := methodAliases[method]; ok {
		return canonical
	}
	return method
}
