package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/bindings"
	"github.com/wippyai/guest-bridge/engine"
	"github.com/wippyai/guest-bridge/hostbuf"
	"github.com/wippyai/guest-bridge/lifecycle"
	"github.com/wippyai/guest-bridge/trace"
	"github.com/wippyai/guest-bridge/wasmgen"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Guest wasm file (default: built-in synthetic guest)")
		className   = flag.String("class", bindings.HostBufferClass, "Host buffer class to bind")
		size        = flag.Int64("size", 1024, "Allocation size in bytes")
		pinned      = flag.Bool("pinned", false, "Prefer the guest's pinned pool")
		count       = flag.Int("n", 1, "Number of allocations")
		traceFile   = flag.String("trace", "", "Write boundary trace frames to file")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile, *className); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*wasmFile, *className, *traceFile, *size, *count, *pinned); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadGuest returns the guest binary to probe: the given file, or a
// synthetic guest implementing the host-buffer class when none is set.
func loadGuest(wasmFile, className string) ([]byte, error) {
	if wasmFile == "" {
		return wasmgen.SyntheticHostBuffer(className), nil
	}
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return nil, fmt.Errorf("read guest: %w", err)
	}
	return data, nil
}

func run(wasmFile, className, traceFile string, size int64, count int, pinned bool) error {
	ctx := context.Background()

	guest, err := loadGuest(wasmFile, className)
	if err != nil {
		return err
	}

	var observer trace.Observer
	if traceFile != "" {
		f, err := os.Create(traceFile)
		if err != nil {
			return fmt.Errorf("create trace file: %w", err)
		}
		defer f.Close()
		observer = trace.NewRecorder(f)
	}

	vm, err := engine.New(ctx, guest, engine.Options{Observer: observer})
	if err != nil {
		return fmt.Errorf("create vm: %w", err)
	}
	defer vm.Close(ctx)

	cache := bindings.NewCache(nil)
	module := lifecycle.New(lifecycle.Config{Observer: observer}, cache)

	version, err := module.OnLoad(vm)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	defer module.OnUnload(vm)

	fmt.Printf("Guest loaded (boundary version %s)\n", version)
	fmt.Printf("Class: %s\n\n", className)

	env, err := guestbridge.AcquireEnv(ctx, vm)
	if err != nil {
		return fmt.Errorf("acquire env: %w", err)
	}

	for i := 0; i < count; i++ {
		buf, err := hostbuf.Allocate(ctx, env, cache, size, pinned)
		if err != nil {
			return fmt.Errorf("allocation %d: %w", i+1, err)
		}
		fmt.Printf("buffer %d: address=0x%x length=%d\n",
			i+1, hostbuf.Address(env, cache, buf), hostbuf.Length(env, cache, buf))
	}

	return nil
}
