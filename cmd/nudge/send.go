package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/nudge/internal/adapter/input"
	"github.com/jmylchreest/nudge/internal/model"
)

var sendOpts struct {
	stdin bool

	notificationType string
	title            string
	message          string
	priority         string

	actionKind  string
	destination string
	toolID      string

	rewardKind   string
	rewardAmount float64
	rewardItem   string

	expiresIn time.Duration
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Create a notification for a user",
	Long: `Create an engagement notification on the configured backend.

The notification is built from flags, or read from stdin with --stdin as a
JSON or YAML object or list of objects. The backend assigns the id, owner,
creation time and unread state, and prints each new id.

Examples:
  # A streak reminder
  nudge send --user u1 --type streak --title "3 day streak" --message "Keep it going"

  # A reward that is claimed when clicked
  nudge send --user u1 --type reward --title "Bonus" --reward-kind xp --reward-amount 50 --action claim

  # From a producer
  echo '[{"type":"suggestion","title":"Try flashcards","action":{"kind":"try_tool","toolId":"flashcards"}}]' | nudge send --user u1 --stdin`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	f := sendCmd.Flags()
	f.BoolVar(&sendOpts.stdin, "stdin", false, "Read payloads from stdin")
	f.StringVarP(&sendOpts.notificationType, "type", "t", string(model.TypeSuggestion),
		"Notification type (achievement, reward, streak, referral, suggestion, milestone, challenge)")
	f.StringVar(&sendOpts.title, "title", "", "Title (required without --stdin)")
	f.StringVarP(&sendOpts.message, "message", "m", "", "Message body")
	f.StringVar(&sendOpts.priority, "priority", "", "Priority (low, medium, high)")
	f.StringVar(&sendOpts.actionKind, "action", "", "Action kind (navigate, share, try_tool, invite, claim)")
	f.StringVar(&sendOpts.destination, "destination", "", "Destination path for navigate actions")
	f.StringVar(&sendOpts.toolID, "tool", "", "Tool id for try_tool actions")
	f.StringVar(&sendOpts.rewardKind, "reward-kind", "", "Reward kind (xp, points, feature, badge)")
	f.Float64Var(&sendOpts.rewardAmount, "reward-amount", 0, "Reward amount")
	f.StringVar(&sendOpts.rewardItem, "reward-item", "", "Reward item name")
	f.DurationVar(&sendOpts.expiresIn, "expires-in", 0, "Expiry relative to now (informational)")
}

func runSend(cmd *cobra.Command, args []string) error {
	userID, err := requireUser()
	if err != nil {
		return err
	}

	var payloads []model.Payload
	if sendOpts.stdin {
		payloads, err = input.ReadPayloads("stdin", os.Stdin)
		if err != nil {
			return err
		}
		if len(payloads) == 0 {
			return fmt.Errorf("no valid payloads on stdin")
		}
	} else {
		p, err := payloadFromFlags(cmd, time.Now())
		if err != nil {
			return err
		}
		payloads = []model.Payload{p}
	}

	ctx := cmd.Context()
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	for _, p := range payloads {
		if !p.Type.Known() {
			logger.Warn("unknown notification type, it will be shown generically", "type", p.Type)
		}
		id, err := backend.Create(ctx, userID, p)
		if err != nil {
			return fmt.Errorf("failed to create %q: %w", p.Title, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

// payloadFromFlags builds a payload from the send flags.
func payloadFromFlags(cmd *cobra.Command, now time.Time) (model.Payload, error) {
	p := model.Payload{
		Type:     model.Type(sendOpts.notificationType),
		Title:    sendOpts.title,
		Message:  sendOpts.message,
		Priority: model.Priority(sendOpts.priority),
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("--title: %w", err)
	}

	if sendOpts.actionKind != "" {
		p.Action = &model.Action{
			Kind:        model.ActionKind(sendOpts.actionKind),
			Destination: sendOpts.destination,
			ToolID:      sendOpts.toolID,
		}
	}

	if sendOpts.rewardKind != "" {
		p.Reward = &model.Reward{
			Kind: model.RewardKind(sendOpts.rewardKind),
			Item: sendOpts.rewardItem,
		}
		if cmd.Flags().Changed("reward-amount") {
			amount := sendOpts.rewardAmount
			p.Reward.Amount = &amount
		}
	}

	if sendOpts.expiresIn > 0 {
		expires := now.Add(sendOpts.expiresIn).UTC()
		p.ExpiresAt = &expires
	}
	return p, nil
}
