package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/openfroyo/typist/pkg/engine"
	"github.com/openfroyo/typist/pkg/telemetry"
)

// Example_observeTypist attaches telemetry to a typist and prints the
// lifecycle events it produces.
func Example_observeTypist() {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Events.EnableAsync = false

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(e telemetry.Event) {
		fmt.Println(e.Type, e.Pass)
	}, nil)

	props := engine.Props{
		Content:     engine.Actions{engine.TypeString("ok")},
		TypingDelay: time.Millisecond,
	}
	typist := engine.NewTypist(props, nil,
		engine.WithObserver(tel.NewObserver(context.Background(), "example")),
	)
	if err := typist.Run(context.Background()); err != nil {
		panic(err)
	}

	// Output:
	// run.started 0
	// pass.completed 1
	// run.completed 0
}

// Example_instrumentedOperation traces a single CLI operation.
func Example_instrumentedOperation() {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "error"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	ic := telemetry.StartOperation(ctx, "script.validate")
	ic.Logger.Debug("Validating script")
	ic.End(nil)

	fmt.Println("validated")
	// Output: validated
}
