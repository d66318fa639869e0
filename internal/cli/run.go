package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sprite-ai/reqevo/internal/model"
	"github.com/sprite-ai/reqevo/internal/source"
	"github.com/sprite-ai/reqevo/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run <domain|github-url> [files...]",
	Short: "Analyze a document history and open the review",
	Long: `Start a new run. With a domain label, the remaining arguments are version
files or globs in chronological order (default requirements/*.txt). With a
GitHub file URL, every commit that touched the file becomes a version.

Examples:
  reqevo run Payments v1.txt v2.txt v3.txt
  reqevo run Payments "drafts/*.md" --name payments-q3
  reqevo run https://github.com/acme/specs/blob/main/payments.md

A saved run that was finalized is never replaced unless --force is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <name>",
	Short: "Continue a saved run from its last completed stage",
	Long: `Resume a saved run. A run that stopped on an error picks up at the stage
that failed. A --hint re-classifies every change with the given guidance
before the next review.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	runCmd.Flags().StringP("name", "n", "", "snapshot name (default derived from the domain)")
	runCmd.Flags().String("domain", "", "domain label for a GitHub URL (default the file name)")
	runCmd.Flags().Bool("force", false, "replace a saved run with the same name even if it is final")

	resumeCmd.Flags().String("hint", "", "guidance applied to every change on re-classification")
}

// parseTarget turns run arguments into a domain label and a source descriptor.
func parseTarget(args []string, domainFlag string) (string, source.Descriptor, error) {
	target := args[0]
	if !source.LooksLikeURL(target) {
		if domainFlag != "" {
			return "", source.Descriptor{}, fmt.Errorf("--domain only applies to GitHub URLs; the first argument is already the domain")
		}
		return target, source.Descriptor{Patterns: args[1:]}, nil
	}

	if len(args) > 1 {
		return "", source.Descriptor{}, fmt.Errorf("a GitHub URL takes no file arguments")
	}
	d, err := source.ParseGitHubURL(target)
	if err != nil {
		return "", source.Descriptor{}, err
	}

	domain := domainFlag
	if domain == "" {
		base := path.Base(d.Path)
		domain = strings.TrimSuffix(base, path.Ext(base))
	}
	return domain, d, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, args []string) error {
	domainFlag, _ := cmd.Flags().GetString("domain")
	domain, d, err := parseTarget(args, domainFlag)
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = defaultRunName(domain)
	}
	if !store.ValidName(name) {
		return fmt.Errorf("invalid run name %q: use letters, digits, '.', '_' or '-'", name)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	ctrl, st, err := newController(ctx, cfg, logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		force, _ := cmd.Flags().GetBool("force")
		if err := checkOverwrite(ctx, st, name, force); err != nil {
			return err
		}
	}

	run, err := ctrl.Run(ctx, name, domain, d)
	return finish(cmd, run, st != nil, err)
}

// checkOverwrite refuses to start a run over a finalized snapshot of the
// same name unless force is set.
func checkOverwrite(ctx context.Context, st store.Store, name string, force bool) error {
	if force {
		return nil
	}
	prev, err := st.Load(ctx, name)
	switch {
	case errors.Is(err, model.ErrSnapshotNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("checking saved run %q: %w", name, err)
	case prev.Finalized:
		return fmt.Errorf("run %q is final; pick another --name or pass --force to replace it", name)
	}
	return nil
}

func runResume(cmd *cobra.Command, args []string) error {
	name := args[0]
	hint, _ := cmd.Flags().GetString("hint")

	corr := model.NoCorrections()
	if strings.TrimSpace(hint) != "" {
		corr = model.GlobalHint(hint)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	ctrl, st, err := newController(ctx, cfg, logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if st == nil {
		return errNoStore
	}
	defer st.Close()

	run, err := ctrl.Resume(ctx, name, corr)
	return finish(cmd, run, true, err)
}

// finish prints the outcome of a run. Partial state is reported even when
// a stage failed, so the operator knows what to resume.
func finish(cmd *cobra.Command, run *model.RunState, saved bool, err error) error {
	if run == nil {
		return err
	}

	pending, classified, failed := model.Tally(run.Records)
	printf(cmd, "%s: %d versions, %d changes (%d classified, %d pending, %d errors)\n",
		run.Domain, len(run.Versions), len(run.Records), classified, pending, failed)
	if run.ArtifactPath != "" {
		printf(cmd, "Report: %s\n", run.ArtifactPath)
	}

	if err != nil {
		switch {
		case !saved:
		case run.Stage == model.StageLoad:
			printf(cmd, "Stopped before any versions were loaded. Start the run again.\n")
		default:
			printf(cmd, "Stopped at %s. Resume with: reqevo resume %s\n", run.Stage, run.Name)
		}
		return err
	}
	if run.Finalized {
		printf(cmd, "Run %q is final.\n", run.Name)
	}
	return nil
}
