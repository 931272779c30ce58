/*
Package app binds user computations to the PIE (Init / PEval / IncEval) model.

A Program holds one callback per phase. An App seals a Program and pairs it with
the Context type the callbacks operate on. Workers call App.Eval for each phase
and drive the Context between phases (Reset, TakeOutgoing, Deliver).

	program := app.Bind(
		func(frag ports.Fragment, ctx *app.Context[int64, int64]) error { ... },
		func(frag ports.Fragment, ctx *app.Context[int64, int64]) error { ... },
		func(frag ports.Fragment, ctx *app.Context[int64, int64]) error { ... },
	)
	a := app.New(program, app.WithName("lpa"))
*/
package app
