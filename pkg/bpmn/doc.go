/*
Package bpmn loads BPMN 2.0 XML diagrams into an immutable domain.Graph.

Only the elements the interpreter understands are collected (events, tasks, sub-processes and
gateways) together with the sequence flows between them. The process flagged
isExecutable="true" is preferred; otherwise the first process definition in the document is used.

	g, err := bpmn.ParseFile("process.bpmn")
	if err != nil {
		var perr *bpmn.ParseError
		if errors.As(err, &perr) { ... }
	}

A sequence flow whose source or target does not resolve to a collected node is dropped from
that endpoint's list. WithStrictFlows turns this into a ParseError instead.
*/
package bpmn
