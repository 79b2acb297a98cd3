package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "capturectl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var composeFile string
	cmd := &cobra.Command{
		Use:   "capturectl",
		Short: "CaptureVault development CLI",
		Long: `capturectl drives the docker-compose stack (Postgres, Redis, MinIO), runs the tests,
launches the binaries directly and prints the metadata schema of each capture kind.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&composeFile, "compose-file", "f", "docker-compose.yml", "Compose file to use for stack commands")
	cmd.AddCommand(
		newComposeCmd(&composeFile),
		newTestCmd(),
		newRunCmd(),
		newSchemaCmd(),
	)
	return cmd
}

// newComposeCmd groups the stack commands; each one shells out to
// "docker compose -f <file> <verb>".
func newComposeCmd(composeFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Manage the docker-compose stack",
	}
	compose := func(ctx context.Context, verb string, extra ...string) error {
		args := append([]string{"compose", "-f", *composeFile, verb}, extra...)
		return runCommand(ctx, "docker", args...)
	}

	var noCache bool
	build := &cobra.Command{
		Use:   "build [service...]",
		Short: "Build Docker images",
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []string
			if noCache {
				extra = append(extra, "--no-cache")
			}
			return compose(cmd.Context(), "build", append(extra, args...)...)
		},
	}
	build.Flags().BoolVar(&noCache, "no-cache", false, "Disable Docker build cache")

	var detach, skipBuild bool
	up := &cobra.Command{
		Use:   "up [service...]",
		Short: "Start Postgres, Redis, MinIO and the services",
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []string
			if !skipBuild {
				extra = append(extra, "--build")
			}
			if detach {
				extra = append(extra, "-d")
			}
			return compose(cmd.Context(), "up", append(extra, args...)...)
		},
	}
	up.Flags().BoolVarP(&detach, "detached", "d", true, "Run docker compose in detached mode")
	up.Flags().BoolVar(&skipBuild, "skip-build", false, "Skip rebuilding images before starting")

	var removeVolumes bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Stop the stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []string
			if removeVolumes {
				extra = append(extra, "-v")
			}
			return compose(cmd.Context(), "down", extra...)
		},
	}
	down.Flags().BoolVarP(&removeVolumes, "volumes", "v", false, "Remove stack volumes")

	var follow bool
	logs := &cobra.Command{
		Use:   "logs [service...]",
		Short: "Tail logs from the stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []string
			if follow {
				extra = append(extra, "-f")
			}
			return compose(cmd.Context(), "logs", append(extra, args...)...)
		},
	}
	logs.Flags().BoolVar(&follow, "follow", false, "Stream logs continuously")

	cmd.AddCommand(build, up, down, logs)
	return cmd
}

func newTestCmd() *cobra.Command {
	var race, cover bool
	cmd := &cobra.Command{
		Use:   "test [packages]",
		Short: "Run Go tests (defaults to ./...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs := args
			if len(pkgs) == 0 {
				pkgs = []string{"./..."}
			}
			goArgs := []string{"test"}
			if race {
				goArgs = append(goArgs, "-race")
			}
			if cover {
				goArgs = append(goArgs, "-cover")
			}
			return runCommand(cmd.Context(), "go", append(goArgs, pkgs...)...)
		},
	}
	cmd.Flags().BoolVar(&race, "race", false, "Enable Go race detector")
	cmd.Flags().BoolVar(&cover, "cover", false, "Collect coverage data")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run individual Go binaries directly",
	}
	cmd.AddCommand(
		newServiceRunner("api", "./cmd/api"),
		newServiceRunner("worker", "./cmd/worker"),
		newServiceRunner("server", "./cmd/server"),
	)
	return cmd
}

func newServiceRunner(name, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("go run %s", path),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), "go", append([]string{"run", path}, args...)...)
		},
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}
