package state

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bootforge/bootforge/pkg/builder"
	"github.com/bootforge/bootforge/pkg/config"
	"github.com/bootforge/bootforge/pkg/kernel"
	"github.com/bootforge/bootforge/pkg/op"
	"github.com/rs/zerolog"
	"github.com/spectrocloud-labs/herd"
)

// State is the run context: configuration resolved once before the graph is
// registered, plus the artifacts the steps hand to each other. Nothing in
// here is ambient; every step gets the same value.
type State struct {
	Logger  zerolog.Logger
	Config  *config.Config
	BootDir string // where kernel images are searched, usually /boot
	Request kernel.Request
	Boot    *op.BootMount
	Builder *builder.Builder

	// Filled in by the steps as the run progresses.
	kernel         *kernel.Ref
	displayVersion string
	split          *builder.SplitArtifact
	unified        *builder.UnifiedArtifact
}

// Run executes the registered graph. The boot partition and the scratch
// directory are released on every exit path, including an interruption
// signal; Release/Cleanup are idempotent so the duplicate calls from the
// signal path are harmless.
func (s *State) Run(ctx context.Context, g *herd.Graph) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		sig, ok := <-sigs
		if !ok {
			return
		}
		s.Logger.Warn().Str("signal", sig.String()).Msg("Interrupted, cleaning up")
		s.Builder.Cleanup()
		s.Boot.Release()
		os.Exit(1)
	}()

	defer s.Boot.Release()
	defer s.Builder.Cleanup()

	err := g.Run(ctx)
	s.Logger.Debug().Msg(s.WriteDAG(g))
	if first := s.firstError(g); first != nil {
		return first
	}
	return err
}

// firstError returns the earliest step failure in execution order. The
// typed error is what the caller maps to an exit status, so it must come
// back unwrapped from the graph.
func (s *State) firstError(g *herd.Graph) error {
	for _, layer := range g.Analyze() {
		for _, op := range layer {
			if op.Error != nil {
				return op.Error
			}
		}
	}
	return nil
}

// WriteDAG writes the dag.
func (s *State) WriteDAG(g *herd.Graph) (out string) {
	for i, layer := range g.Analyze() {
		out += fmt.Sprintf("%d.\n", i+1)
		for _, op := range layer {
			if op.Error != nil {
				out += fmt.Sprintf(" <%s> (error: %s) (run: %t)\n", op.Name, op.Error.Error(), op.Executed)
			} else {
				out += fmt.Sprintf(" <%s> (run: %t)\n", op.Name, op.Executed)
			}
		}
	}
	return
}

// LogIfError will log if there is an error with the given context as message
// Context can be empty.
func (s *State) LogIfError(e error, msgContext string) {
	if e != nil {
		s.Logger.Err(e).Msg(msgContext)
	}
}

// LogIfErrorAndReturn will log if there is an error with the given context as message
// Context can be empty
// Will also return the error.
func (s *State) LogIfErrorAndReturn(e error, msgContext string) error {
	if e != nil {
		s.Logger.Err(e).Msg(msgContext)
	}
	return e
}
