/*
Package ports defines the driven ports (interfaces) for the bpmnchat engine.

These interfaces decouple the interpreter from rendering, transport and storage,
allowing the same session engine to run behind a terminal, an HTTP API or an MCP host.

# Key Interfaces

  - Renderer: Highlights the node a session is on (e.g., a Mermaid overlay).
  - Surface: Receives the bot and user turns of a dialogue.
  - Inventory: The reservation backend that hooks call (list available items, reserve one).
  - SessionStore: Persists session snapshots between turns.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
*/
package ports
