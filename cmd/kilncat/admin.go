package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/clayloft/kilncat"
	"github.com/clayloft/kilncat/config"
	"github.com/clayloft/kilncat/database"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Grant or revoke the admin flag on a user profile",
	Long: `Interactively grant or revoke admin access for a user.

Admin users can read and modify every item in the catalog. The user must
have signed in at least once so their profile exists.`,
	RunE: runAdmin,
}

func init() {
	rootCmd.AddCommand(adminCmd)
}

func runAdmin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	repo, closeDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeDB()

	actionPrompt := promptui.Select{
		Label: "Action",
		Items: []string{"grant", "revoke"},
	}
	_, action, err := actionPrompt.Run()
	if err != nil {
		return fmt.Errorf("select action: %w", err)
	}

	uidPrompt := promptui.Prompt{
		Label: "User ID",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("user id cannot be empty")
			}
			return nil
		},
	}
	uid, err := uidPrompt.Run()
	if err != nil {
		return fmt.Errorf("read user id: %w", err)
	}
	uid = strings.TrimSpace(uid)

	profile, err := repo.GetProfile(ctx, uid)
	if err != nil {
		if errors.Is(err, kilncat.ErrNotFound) {
			return fmt.Errorf("no profile for %s: the user must sign in once before admin can be granted", uid)
		}
		return fmt.Errorf("load profile: %w", err)
	}

	isAdmin := action == "grant"
	if profile.IsAdmin == isAdmin {
		slog.Info("profile already in requested state", "uid", uid, "is_admin", profile.IsAdmin)
		return nil
	}

	confirmPrompt := promptui.Prompt{
		Label:     fmt.Sprintf("%s admin for %s (%s)", action, uid, profile.Email),
		IsConfirm: true,
	}
	if _, err = confirmPrompt.Run(); err != nil {
		slog.Info("aborted")
		return nil
	}

	if err = repo.SetAdmin(ctx, uid, isAdmin); err != nil {
		return fmt.Errorf("set admin: %w", err)
	}

	slog.Info("admin flag updated", "uid", uid, "is_admin", isAdmin)
	return nil
}
