/*
Package domain contains the core domain models for the bpmnchat interpreter.

It defines the process graph (Nodes and Flows loaded from a BPMN diagram), the per-user
Session that the engine mutates turn by turn, and the error taxonomy shared by the loader,
the engine and the adapters. The package is kept free of I/O and persistence concerns.

# Key Entities

  - Node: a typed element of the diagram (event, task, gateway, sub-process).
  - Flow: a directed, optionally labeled sequence flow between two nodes.
  - Graph: the immutable node index built once at load time.
  - Session: the runtime snapshot of one conversation (current node, phase, choices, context).
  - Turn: one dialogue emission, spoken by the bot or the user.
*/
package domain
