package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/decipher/internal/sandbox"
	"github.com/michaelbrown/decipher/internal/scenario"
	"github.com/michaelbrown/decipher/internal/storage"
	"github.com/michaelbrown/decipher/internal/storage/sqlite"
)

var (
	scenarioFlag  string
	nameFlag      string
	inputFlags    []string
	timeoutFlag   time.Duration
	seedFlag      int64
	inProcessFlag bool
	stepFlag      bool
	jsonFlag      bool
	userFlag      string
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Trace a program and print the result",
	Long: `Trace a program in an isolated worker and print its output and final state.
Read the program from a file, from stdin ("-"), or from a scenario file.

Examples:
  decipher run prog.py -i 3 -i 4
  decipher run --scenario examples.yaml --name bfs --step
  echo 'print(1 + 1)' | decipher run - --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&scenarioFlag, "scenario", "", "YAML scenario file")
	runCmd.Flags().StringVar(&nameFlag, "name", "", "Run only the named scenario")
	runCmd.Flags().StringArrayVarP(&inputFlags, "input", "i", nil, "Scripted input value (repeatable)")
	runCmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Wall-clock limit (default from config)")
	runCmd.Flags().Int64Var(&seedFlag, "seed", 0, "Seed for the random module")
	runCmd.Flags().BoolVar(&inProcessFlag, "in-process", false, "Run without a worker process (trusted code only)")
	runCmd.Flags().BoolVar(&stepFlag, "step", false, "Walk through the trace interactively")
	runCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the trace as JSON")
	runCmd.Flags().StringVar(&userFlag, "user", "", "Save the run to this user's history")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	programs, err := loadPrograms(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	var sb sandbox.Sandbox
	if inProcessFlag {
		sb = sandbox.NewInProcess(cfg.Policy())
	} else {
		sup, err := newSupervisor(cfg)
		if err != nil {
			return err
		}
		sb = sup
	}

	var store storage.Store
	if userFlag != "" {
		s, err := sqlite.Open(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer s.Close()
		store = s
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, p := range programs {
		if len(programs) > 1 && !jsonFlag {
			fmt.Printf("\033[1m== %s ==\033[0m\n", p.Name)
		}
		res, err := sb.Exec(ctx, sandbox.ExecOpts{
			Source:  p.Code,
			Inputs:  p.Inputs,
			Timeout: p.Timeout,
			Seed:    p.Seed,
		})
		if err != nil {
			return err
		}
		if res.State != sandbox.StateCompleted {
			failed++
		}

		if store != nil {
			if err := saveRun(ctx, store, p, res); err != nil {
				fmt.Fprintf(os.Stderr, "warning: saving run: %v\n", err)
			}
		}

		switch {
		case jsonFlag:
			data, err := json.MarshalIndent(res.Trace, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
		case stepFlag:
			if err := viewTrace(ctx, p.Code, res, newExplainer(cfg)); err != nil {
				return err
			}
		default:
			printResult(res)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d runs did not complete", failed, len(programs))
	}
	return nil
}

// loadPrograms resolves the command line into the programs to run.
func loadPrograms(stdin io.Reader, args []string) ([]scenario.Scenario, error) {
	if scenarioFlag != "" {
		if len(args) > 0 {
			return nil, errors.New("give either a file or --scenario, not both")
		}
		all, err := scenario.Load(scenarioFlag)
		if err != nil {
			return nil, err
		}
		if nameFlag == "" {
			return all, nil
		}
		s, err := scenario.Find(all, nameFlag)
		if err != nil {
			return nil, err
		}
		return []scenario.Scenario{*s}, nil
	}

	if len(args) == 0 {
		return nil, errors.New("no program given: pass a file, \"-\" for stdin, or --scenario")
	}
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("reading program: %w", err)
	}
	return []scenario.Scenario{{
		Name:    args[0],
		Code:    string(data),
		Inputs:  inputFlags,
		Timeout: timeoutFlag,
		Seed:    seedFlag,
	}}, nil
}

func saveRun(ctx context.Context, store storage.Store, p scenario.Scenario, res *sandbox.ExecResult) error {
	e := &storage.Entry{
		ID:        uuid.New().String(),
		UserID:    userFlag,
		Code:      p.Code,
		Inputs:    p.Inputs,
		Outcome:   res.State.String(),
		StepCount: len(res.Trace.Steps),
	}
	if res.Trace.Error != nil {
		e.Error = *res.Trace.Error
	}
	if err := store.SaveEntry(ctx, e, res.Trace); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "saved as %s\n", e.ID[:8])
	return nil
}

func printResult(res *sandbox.ExecResult) {
	tr := res.Trace
	if tr.FinalOutput != "" {
		fmt.Print(tr.FinalOutput)
		if !strings.HasSuffix(tr.FinalOutput, "\n") {
			fmt.Println()
		}
	}
	fmt.Println(strings.Repeat("─", 60))

	color := "32"
	if res.State != sandbox.StateCompleted {
		color = "31"
	}
	fmt.Printf("\033[%sm%s\033[0m in %s, %d steps", color, res.State, res.Duration.Round(time.Millisecond), len(tr.Steps))
	if tr.Truncated {
		fmt.Print(" (truncated)")
	}
	fmt.Println()
	if tr.Error != nil {
		fmt.Printf("\033[31m%s\033[0m\n", *tr.Error)
	}
	if last := tr.Last(); last != nil && len(last.Variables) > 0 {
		fmt.Println()
		printVariables(last.Variables, nil)
	}
}
