package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gopkg.in/yaml.v3"

	"github.com/simone-weiss/ankaios/internal/config"
	"github.com/simone-weiss/ankaios/internal/wire"
)

var serverAddr string

func main() {
	root := &cobra.Command{Use: "ank", Short: "ank talks to an ank-server over its control connection"}
	root.PersistentFlags().StringVar(&serverAddr, "server", envOr("ANK_SERVER_ADDR", "localhost:25551"), "ank-server control address")

	root.AddCommand(newGetCmd(), newSetCmd(), newApplyCmd(), newDeleteCmd(), newRunCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newGetCmd() *cobra.Command {
	get := &cobra.Command{Use: "get", Short: "query server state"}

	stateCmd := &cobra.Command{
		Use:   "state [field.mask.path ...]",
		Short: "print the complete state, optionally scoped to field-mask paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := doRequest(cmd.Context(), wire.RequestContent{CompleteStateReq: &wire.CompleteStateRequest{FieldMask: args}})
			if err != nil {
				return err
			}
			if resp.Content.Error != nil {
				return fmt.Errorf("%s", resp.Content.Error.Message)
			}
			out, err := yaml.Marshal(resp.Content.CompleteState)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}

	workloadsCmd := &cobra.Command{
		Use:   "workloads",
		Short: "list workloads and their reported execution state",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := doRequest(cmd.Context(), wire.RequestContent{CompleteStateReq: &wire.CompleteStateRequest{}})
			if err != nil {
				return err
			}
			if resp.Content.Error != nil {
				return fmt.Errorf("%s", resp.Content.Error.Message)
			}
			printWorkloads(resp.Content.CompleteState)
			return nil
		},
	}

	get.AddCommand(stateCmd, workloadsCmd)
	return get
}

func printWorkloads(cs *wire.CompleteState) {
	latest := map[string]wire.WorkloadState{}
	for _, ws := range cs.WorkloadStates {
		latest[ws.WorkloadName] = ws
	}

	names := make([]string, 0, len(cs.CurrentState.Workloads))
	for name := range cs.CurrentState.Workloads {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tAGENT\tRUNTIME\tEXECUTION STATE")
	for _, name := range names {
		wl := cs.CurrentState.Workloads[name]
		state := "PENDING"
		if ws, ok := latest[name]; ok {
			state = ws.ExecutionState.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, wl.Agent, wl.Runtime, state)
	}
	w.Flush()
}

func newSetCmd() *cobra.Command {
	set := &cobra.Command{Use: "set", Short: "replace scoped parts of the desired state"}

	var file string
	var masks []string
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "submit a new State document, scoped to --mask paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			if len(masks) == 0 {
				return fmt.Errorf("--mask is required (e.g. currentState.workloads.nginx)")
			}
			newState, err := config.LoadStartupState(file)
			if err != nil {
				return err
			}
			return submitUpdate(cmd.Context(), newState, masks)
		},
	}
	stateCmd.Flags().StringVarP(&file, "file", "f", "", "path to a State document")
	stateCmd.Flags().StringSliceVar(&masks, "mask", nil, "update-mask paths to apply")

	set.AddCommand(stateCmd)
	return set
}

func newApplyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "submit every workload in a State document, replacing each by name",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			newState, err := config.LoadStartupState(file)
			if err != nil {
				return err
			}
			masks := make([]string, 0, len(newState.Workloads))
			for name := range newState.Workloads {
				masks = append(masks, "currentState.workloads."+name)
			}
			if len(masks) == 0 {
				return fmt.Errorf("%s defines no workloads", file)
			}
			return submitUpdate(cmd.Context(), newState, masks)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to a State document")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	del := &cobra.Command{Use: "delete", Short: "remove part of the desired state"}

	workloadCmd := &cobra.Command{
		Use:   "workload NAME",
		Short: "remove a workload from the desired state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			empty := wire.NewState()
			return submitUpdate(cmd.Context(), empty, []string{"currentState.workloads." + name})
		},
	}

	del.AddCommand(workloadCmd)
	return del
}

func newRunCmd() *cobra.Command {
	run := &cobra.Command{Use: "run", Short: "submit a single ephemeral workload, bypassing a State document"}

	var agent, runtimeName, runtimeConfig string
	var restart bool
	workloadCmd := &cobra.Command{
		Use:   "workload NAME",
		Short: "run a single workload on --agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if agent == "" {
				return fmt.Errorf("--agent is required")
			}
			newState := wire.NewState()
			newState.Workloads[name] = &wire.Workload{
				Agent:         agent,
				Runtime:       runtimeName,
				RuntimeConfig: runtimeConfig,
				Restart:       restart,
			}
			return submitUpdate(cmd.Context(), newState, []string{"currentState.workloads." + name})
		},
	}
	workloadCmd.Flags().StringVar(&agent, "agent", "", "agent to run the workload on")
	workloadCmd.Flags().StringVar(&runtimeName, "runtime", "fake", "runtime driver name")
	workloadCmd.Flags().StringVar(&runtimeConfig, "config", "", "opaque runtime config string")
	workloadCmd.Flags().BoolVar(&restart, "restart", false, "restart the workload if it exits")

	run.AddCommand(workloadCmd)
	return run
}

func submitUpdate(ctx context.Context, newState *wire.State, masks []string) error {
	resp, err := doRequest(ctx, wire.RequestContent{UpdateState: &wire.UpdateStateRequest{NewState: newState, UpdateMask: masks}})
	if err != nil {
		return err
	}
	if resp.Content.Error != nil {
		return fmt.Errorf("%s", resp.Content.Error.Message)
	}
	fmt.Println("OK")
	return nil
}

// doRequest opens a fresh CliConnection, sends a single Request, and waits
// for the Response carrying the same RequestID. One gRPC round trip per
// invocation: a one-shot CLI process has no concurrent requests to
// correlate, so it reads its own reply directly off the stream; no
// pending-request map is involved.
func doRequest(ctx context.Context, content wire.RequestContent) (*wire.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cc, err := grpc.NewClient(serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", serverAddr, err)
	}
	defer cc.Close()

	client := wire.NewControlClient(cc)
	stream, err := client.CliConnection(ctx, grpc.ForceCodec(wire.Codec))
	if err != nil {
		return nil, fmt.Errorf("opening cli stream: %w", err)
	}

	requestID := uuid.NewString()
	if err := stream.Send(&wire.ToServer{Content: wire.ToServerContent{Request: &wire.Request{RequestID: requestID, Content: content}}}); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	for {
		msg, err := stream.Recv()
		if err != nil {
			return nil, fmt.Errorf("waiting for response: %w", err)
		}
		resp := msg.Content.Response
		if resp == nil {
			continue
		}
		if resp.RequestID != requestID {
			continue
		}
		return resp, nil
	}
}
