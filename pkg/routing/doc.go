// Package routing holds the per-node overrides consulted by the utterance matcher.
//
// A Table maps a node (by id, then by name) to a Rule. A Rule may route input
// substrings to a specific outgoing flow, loop back to another node on a
// negative answer, or turn a task into a free-text capture point.
//
// Tables are usually loaded from a dialogue file together with hook bindings:
//
//	hooks:
//	  "Busqueda de disponibilidad": fetch_available
//	routes:
//	  - node: "Qué quiere realizar el usuario?"
//	    patterns:
//	      - contains: [seguimiento]
//	        target: Seguimiento
//	  - node: "Verificación de la documentación (¿Documentación completa?)"
//	    on_negative:
//	      reset_to: request_docs
//	      message: "Documentación incompleta."
package routing
