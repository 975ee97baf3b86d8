// Package authcmder provides the auth command for storing summarizer API keys.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bochendong/dragon-continue/pkg/cliui"
	"github.com/bochendong/dragon-continue/pkg/credentials"
)

const authLongDesc string = `Store API keys for the chapter summarizer.

Keys are stored in credentials.toml in the .dragon/ directory, separate from
config.toml. A key set with "dragon config set oracle.api_key" or the
provider's environment variable takes precedence over a stored key.

Supported providers: anthropic, openai

Examples:
  dragon auth anthropic              Prompt for an Anthropic API key
  dragon auth --list                 List stored keys
  dragon auth --remove openai        Remove the stored OpenAI key
  echo $KEY | dragon auth openai     Pipe a key from stdin`

const authShortDesc string = "Store API keys for the summarizer"

func NewAuthCmd() *cobra.Command {
	var (
		listFlag   bool
		removeFlag string
	)

	cmd := &cobra.Command{
		Use:   "auth [provider]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			ring, err := credentials.Open(configDir)
			if err != nil {
				return fmt.Errorf("loading credentials: %w", err)
			}

			w := cmd.OutOrStdout()
			switch {
			case listFlag:
				return runList(w, ring)
			case removeFlag != "":
				return runRemove(w, ring, removeFlag)
			case len(args) == 0:
				return fmt.Errorf("provider argument required\n\nSupported providers: %s",
					strings.Join(credentials.KeyedProviders(), ", "))
			default:
				return runAuth(w, cmd.InOrStdin(), ring, args[0])
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.KeyedProviders(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List stored keys")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove the stored key for a provider")
	cmd.MarkFlagsMutuallyExclusive("list", "remove")

	return cmd
}

func runAuth(w io.Writer, in io.Reader, ring *credentials.Keyring, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !credentials.IsKeyedProvider(provider) {
		return fmt.Errorf("unsupported provider: %q\n\nSupported providers: %s",
			provider, strings.Join(credentials.KeyedProviders(), ", "))
	}

	apiKey, err := readAPIKey(w, in, provider)
	if err != nil {
		return err
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	if err := ring.Set(provider, apiKey); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Stored %s key %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(provider),
		cliui.DimStyle.Render(credentials.Mask(apiKey)),
	)
	return nil
}

func runList(w io.Writer, ring *credentials.Keyring) error {
	names, entries, err := ring.Entries()
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Fprintf(w, "\n  %s No stored keys.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(w, "  Use 'dragon auth <provider>' to store one.\n\n")
		return nil
	}

	fmt.Fprintln(w)
	for _, name := range names {
		e := entries[name]
		fmt.Fprintf(w, "  %s  %s  %s  %s\n",
			cliui.SuccessMark,
			cliui.KeyStyle.Render(name),
			cliui.ValueStyle.Render(credentials.Mask(e.APIKey)),
			cliui.DimStyle.Render("saved "+e.SavedAt.Local().Format("2006-01-02")),
		)
	}
	fmt.Fprintln(w)
	return nil
}

func runRemove(w io.Writer, ring *credentials.Keyring, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if err := ring.Remove(provider); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n  %s Removed %s key.\n\n", cliui.SuccessMark, cliui.KeyStyle.Render(provider))
	return nil
}

// readAPIKey prompts with hidden input when in is a terminal, and otherwise
// reads the first line.
func readAPIKey(w io.Writer, in io.Reader, provider string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(w, "Enter API key for %s (%s): ", provider, credentials.EnvVar(provider))
		key, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(key), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
