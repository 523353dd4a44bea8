// Package mcpgateway re-exports the unified namespace of an mcpmgr.Manager as
// a single Streamable HTTP MCP server. Names unique across upstream servers
// are exposed unchanged; conflicting names are exposed once per server through
// a NamespaceStrategy. The exposed set is rebuilt on every registry reload.
package mcpgateway
