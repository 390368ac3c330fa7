package cli

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// Client-side commands. Each talks to a running gauged server over HTTP
// and prints the raw JSON response.

func printJSON(data []byte) {
	var buf map[string]any
	if err := json.Unmarshal(data, &buf); err != nil {
		fmt.Print(string(data))
		return
	}
	out, _ := json.MarshalIndent(buf, "", "  ")
	fmt.Println(string(out))
}

var gaugesCmd = &cobra.Command{
	Use:   "gauges",
	Short: "List registered gauges",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := NewClient().Get("/api/gauges")
		if err != nil {
			return err
		}
		printJSON(data)
		return nil
	},
}

var gaugeAddSender string

var gaugeAddCmd = &cobra.Command{
	Use:   "add [addr] [weight]",
	Short: "Register a new gauge (owner only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, _ := json.Marshal(map[string]string{
			"sender": gaugeAddSender,
			"addr":   args[0],
			"weight": args[1],
		})
		data, err := NewClient().Post("/api/gauges", body)
		if err != nil {
			return err
		}
		printJSON(data)
		return nil
	},
}

var (
	weightAt  string
	weightRel bool
)

var weightCmd = &cobra.Command{
	Use:   "weight [addr]",
	Short: "Show a gauge's weight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/gauges/" + url.PathEscape(args[0]) + "/weight"
		if weightRel {
			path = "/api/gauges/" + url.PathEscape(args[0]) + "/relative-weight"
		}
		if weightAt != "" {
			path += "?at=" + url.QueryEscape(weightAt)
		}
		data, err := NewClient().Get(path)
		if err != nil {
			return err
		}
		printJSON(data)
		return nil
	},
}

var totalCmd = &cobra.Command{
	Use:   "total",
	Short: "Show the aggregate weight",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/total-weight"
		if weightAt != "" {
			path += "?at=" + url.QueryEscape(weightAt)
		}
		data, err := NewClient().Get(path)
		if err != nil {
			return err
		}
		printJSON(data)
		return nil
	},
}

var voteVoter string

var voteCmd = &cobra.Command{
	Use:   "vote [addr] [ratio]",
	Short: "Commit basis points of your lock to a gauge",
	Long:  "Vote ratio basis points (0-10000) of the voter's lock for a gauge. Ratio 0 cancels the vote.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ratio uint64
		if _, err := fmt.Sscanf(args[1], "%d", &ratio); err != nil {
			return fmt.Errorf("ratio must be an integer: %w", err)
		}
		body, _ := json.Marshal(map[string]any{
			"voter": voteVoter,
			"ratio": ratio,
		})
		data, err := NewClient().Post("/api/gauges/"+url.PathEscape(args[0])+"/votes", body)
		if err != nil {
			return err
		}
		printJSON(data)
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Catch every checkpoint series up to the current period",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := NewClient().Post("/api/compact", nil)
		if err != nil {
			return err
		}
		printJSON(data)
		return nil
	},
}

func init() {
	gaugesCmd.AddCommand(gaugeAddCmd)
	gaugeAddCmd.Flags().StringVar(&gaugeAddSender, "sender", "", "sender address (must be the controller owner)")
	gaugeAddCmd.MarkFlagRequired("sender")

	weightCmd.Flags().StringVar(&weightAt, "at", "", "unix time to evaluate at (default: now)")
	weightCmd.Flags().BoolVar(&weightRel, "relative", false, "show the share of the aggregate instead")
	totalCmd.Flags().StringVar(&weightAt, "at", "", "unix time to evaluate at (default: now)")

	voteCmd.Flags().StringVar(&voteVoter, "voter", "", "voter address")
	voteCmd.MarkFlagRequired("voter")
}
