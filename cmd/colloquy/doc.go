// Command colloquy runs the multi-agent conversation server.
//
// Usage:
//
//	colloquy serve                       # start the server
//	colloquy serve --config config.yaml  # with a config file
//	colloquy version                     # print version information
//	colloquy health                      # probe a running server
package main
