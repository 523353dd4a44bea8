// Package mcpmgr connects to several Model Context Protocol (MCP) servers at
// once and presents their tools, resources, and prompts as one namespace.
//
// # Core entry points
//
//   - Manager is the session registry. Construct it with NewManager and hand
//     LoadAll the server configs; every reload replaces the whole registry and
//     closes the sessions it supersedes.
//   - ServerConfig (StdioServerConfig, SSEServerConfig, HTTPServerConfig)
//     declares how each server is launched or reached. ParseServers decodes
//     the JSON form and reports malformed entries without failing the rest.
//   - TransportEstablisher turns a config into a Session using the go-sdk
//     command, SSE, and Streamable HTTP transports.
//
// # Name resolution
//
// Capabilities are addressed by a spec string, either "name" or
// "server/name". Strings containing "://" are treated as resource URIs and
// never split. Resolve applies one algorithm to all three kinds (see Tools,
// Resources, Prompts): a qualified spec only consults the named server, an
// unqualified spec searches every server and fails with ErrAmbiguous when
// more than one exposes the name. Failures are *ResolutionError values and no
// call is made.
//
// Manager.CallTool, ReadResource, DownloadResource, and GetPrompt resolve and
// then invoke; ListTools, ListResources, and ListPrompts return merged
// listings with the conflicting names precomputed.
package mcpmgr
