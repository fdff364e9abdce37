/*
Package bpmnchat turns a BPMN 2.0 process diagram into a chatbot.

The diagram is loaded once into an immutable graph. Each conversation is a
Session that walks the graph node by node: start events greet, tasks announce
themselves and run their side-effect hooks, gateways and catch events stop and
wait for a reply, and end events close the conversation. Replies are resolved
to outgoing flows by a fixed-priority matcher backed by an optional routing
table.

# Usage

	eng, err := bpmnchat.Load("hotel.bpmn",
		bpmnchat.WithInventory(memory.NewInventory(reservation.DemoItems()...)),
	)
	if err != nil {
		log.Fatal(err)
	}

	s := eng.NewSession("session-123", surface, nil)
	if err := s.Start(ctx); err != nil {
		log.Fatal(err)
	}
	err = s.SubmitInput(ctx, "1")

The surface receives every dialogue turn; the renderer, when given, is told
which node to highlight. Both may be nil.

# Hooks

Tasks and sub-processes run the hook bound to their id or name. Hooks receive a
copy of the session context and return the new context plus messages to emit:

	bpmnchat.WithHook("notify", func(ctx context.Context, call hooks.Call) (hooks.Result, error) {
		return hooks.Result{Messages: []string{"Aviso enviado."}}, nil
	})
	bpmnchat.WithBinding("Notificar al cliente", "notify")

A failing hook ends the session with a *domain.HookError.

# Sessions across requests

Session state is a plain *domain.Session. Store it between requests and
continue it with Engine.Resume, or let session.Manager do both with
per-session locking.
*/
package bpmnchat
