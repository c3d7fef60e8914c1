// Command turbomcp runs a TurboMCP server process: a JSON-RPC 2.0
// Model Context Protocol endpoint dispatching tool/resource/prompt
// calls to a local registry over whichever transports are configured
// (stdio, Streamable HTTP, WebSocket, TCP, Unix domain socket).
package main

import "github.com/turbomcp/turbomcp/cmd/turbomcp/cmd"

func main() {
	cmd.Execute()
}
