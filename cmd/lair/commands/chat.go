package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lair-ai/lair/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt...]",
	Short: "Submit a prompt and print the reply",
	Long: `Submits one prompt to the model and prints the reply. With --session the
turn is appended to a stored session; otherwise the conversation is
discarded after the reply.

The prompt is read from the arguments, or from stdin when none are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if mode != session.ModeOpenAIChat {
			return fmt.Errorf("unknown session mode: %s", mode)
		}
		prompt, err := readPrompt(args)
		if err != nil {
			return err
		}

		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		opts := session.ResolveOptions{AllowCreate: allowCreate, ReadOnly: readOnly}
		var sess *session.ChatSession
		if sessionRef != "" {
			sess, err = a.manager.Resolve(sessionRef, opts)
			if err != nil {
				return err
			}
		} else {
			sess = a.manager.NewSession()
			opts.ReadOnly = true
		}

		reply, err := sess.Submit(cmd.Context(), prompt)

		var limitErr *session.RoundLimitError
		if errors.As(err, &limitErr) {
			fmt.Fprintf(os.Stderr, "warning: %v\n", limitErr)
			err = nil
		}
		if err != nil {
			// The user message and any completed tool rounds are still in
			// the session; persist them before surfacing the failure.
			if saveErr := a.manager.Save(sess, opts); saveErr != nil {
				fmt.Fprintf(os.Stderr, "warning: saving partial turn: %v\n", saveErr)
			}
			return err
		}

		if saveErr := a.manager.Save(sess, opts); saveErr != nil {
			return saveErr
		}
		if reply != "" {
			fmt.Println(reply)
		}
		return nil
	},
}

var mode string

func init() {
	chatCmd.Flags().StringVar(&mode, "mode", session.ModeOpenAIChat, "Session mode")
	chatCmd.Flags().StringVarP(&sessionRef, "session", "s", "", "Session id or alias to continue")
	chatCmd.Flags().BoolVar(&allowCreate, "allow-create", false, "Create the session if it does not exist")
	chatCmd.Flags().BoolVar(&readOnly, "read-only-session", false, "Do not persist changes to the session")
}

func readPrompt(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("empty prompt")
	}
	return prompt, nil
}
