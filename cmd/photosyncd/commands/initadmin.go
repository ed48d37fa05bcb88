package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/photosync/backend/internal/cli/prompt"
)

var (
	initAdminEmail  string
	initAdminPlanGB int
)

var initAdminCmd = &cobra.Command{
	Use:   "init-admin",
	Short: "Interactively register the first account",
	Long: `Register a bootstrap account against the configured database, prompting
for email, password, and plan size when any of --email, --plan-gb aren't
passed as flags.

This is a convenience for first-run setup; ordinary accounts are created
through POST /api/register once the server is up.`,
	RunE: runInitAdmin,
}

func init() {
	initAdminCmd.Flags().StringVar(&initAdminEmail, "email", "", "account email (prompted if omitted)")
	initAdminCmd.Flags().IntVar(&initAdminPlanGB, "plan-gb", 0, "initial plan size in GB (prompted if omitted)")
}

func runInitAdmin(cmd *cobra.Command, args []string) error {
	a, err := bootWorkerApp()
	if err != nil {
		return err
	}

	email := initAdminEmail
	if email == "" {
		email, err = prompt.InputWithValidation("Email", validateEmail)
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
	}

	password, err := prompt.NewPassword()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	planGB := initAdminPlanGB
	if planGB == 0 {
		planGB, err = prompt.InputInt("Plan size (GB)", 100)
		if err != nil {
			return fmt.Errorf("read plan size: %w", err)
		}
	}

	confirmed, err := prompt.Confirm(fmt.Sprintf("Create account %s on a %d GB plan?", email, planGB), true)
	if err != nil {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if !confirmed {
		fmt.Println("Aborted, no account created.")
		return nil
	}

	user, err := a.creds.Register(email, password, planGB)
	if err != nil {
		return fmt.Errorf("register account: %w", err)
	}

	fmt.Printf("Account created: id=%d email=%s planGb=%d\n", user.ID, user.Email, planGB)
	return nil
}

func validateEmail(input string) error {
	if input == "" {
		return fmt.Errorf("email is required")
	}
	for _, r := range input {
		if r == '@' {
			return nil
		}
	}
	return fmt.Errorf("must be a valid email address")
}
