// Chat proxy is a small HTTP backend for a browser chat UI. It forwards a
// conversation to an OpenAI chat model and returns the answer as JSON, as a
// generic SSE stream, or as an AI SDK data stream.
//
// Usage:
//
//	# Start the server with config.yaml and CHATPROXY_* overrides
//	chatproxy serve
//
//	# Start on another port with debug logging
//	chatproxy serve --port 8080 --log-level debug
//
//	# Show version information
//	chatproxy version
package main

func main() {
	Execute()
}
