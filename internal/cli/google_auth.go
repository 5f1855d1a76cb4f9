package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tuckerworks/calsync/pkg/google"
)

func newGoogleAuthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "google-auth",
		Short: "Authorize calsync to write to a Google calendar",
		Long: `Runs the OAuth consent flow for an OAuth client secret and stores the token
in destination.google.tokenfile. Service account keys need no authorization.`,
		Args: cobra.NoArgs,
		RunE: runGoogleAuth,
	}
}

func runGoogleAuth(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	authorizer, err := google.NewAuthorizer(google.Config{
		CredentialsFile: cfg.Destination.Google.CredentialsFile,
		TokenFile:       cfg.Destination.Google.TokenFile,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Open this URL in a browser and grant access:\n\n%s\n\nPaste the authorization code: ", authorizer.AuthCodeURL())
	code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && strings.TrimSpace(code) == "" {
		return fmt.Errorf("no authorization code entered: %w", err)
	}

	ctx, cancel := signalContext(cmdContext(cmd))
	defer cancel()
	if err := authorizer.Exchange(ctx, strings.TrimSpace(code)); err != nil {
		return err
	}
	fmt.Fprintf(out, "Token stored in %s\n", cfg.Destination.Google.TokenFile)
	return nil
}
