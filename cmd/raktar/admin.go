package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raktar-project/raktar/pkg/auth"
	"github.com/raktar-project/raktar/pkg/config"
	"github.com/raktar-project/raktar/pkg/log"
	"github.com/raktar-project/raktar/pkg/repository"
	"github.com/raktar-project/raktar/pkg/storage"
	"github.com/raktar-project/raktar/pkg/types"
)

// Admin commands operate on the store directly and must not run while
// the server holds the database file.

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administer the registry store directly",
}

var adminTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage registry tokens",
}

var adminUserCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage registry users",
}

func withRepository(fn func(ctx context.Context, repo repository.Repository) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: false})

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(context.Background(), repository.New(store))
}

var adminTokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a registry token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetUint32("user-id")
		name, _ := cmd.Flags().GetString("name")

		return withRepository(func(ctx context.Context, repo repository.Repository) error {
			user, err := repo.GetUserByID(ctx, userID)
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("no user with id %d", userID)
			}

			key, err := auth.GenerateToken()
			if err != nil {
				return err
			}
			token, err := repo.StoreToken(ctx, []byte(key), name, userID)
			if err != nil {
				return err
			}

			fmt.Printf("Created token %s for %s\n", token.TokenID, user.Login)
			fmt.Printf("Key (shown once): %s\n", key)
			return nil
		})
	},
}

var adminTokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's registry tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetUint32("user-id")

		return withRepository(func(ctx context.Context, repo repository.Repository) error {
			tokens, err := repo.ListTokens(ctx, userID)
			if err != nil {
				return err
			}
			if len(tokens) == 0 {
				fmt.Println("No tokens")
				return nil
			}
			for _, t := range tokens {
				fmt.Printf("%s  %s\n", t.TokenID, t.Name)
			}
			return nil
		})
	},
}

var adminTokenRevokeCmd = &cobra.Command{
	Use:   "revoke <token-id>",
	Short: "Revoke a registry token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetUint32("user-id")

		return withRepository(func(ctx context.Context, repo repository.Repository) error {
			if err := repo.DeleteToken(ctx, userID, args[0]); err != nil {
				return err
			}
			fmt.Printf("Revoked token %s\n", args[0])
			return nil
		})
	},
}

var adminUserSyncCmd = &cobra.Command{
	Use:   "sync <login>",
	Short: "Create or refresh a user from identity-provider data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		givenName, _ := cmd.Flags().GetString("given-name")
		familyName, _ := cmd.Flags().GetString("family-name")

		return withRepository(func(ctx context.Context, repo repository.Repository) error {
			user, err := repo.UpdateOrCreateUser(ctx, types.UserData{
				Login:      args[0],
				GivenName:  givenName,
				FamilyName: familyName,
			})
			if err != nil {
				return err
			}
			fmt.Printf("User %s has id %d\n", user.Login, user.ID)
			return nil
		})
	},
}

var adminUserListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepository(func(ctx context.Context, repo repository.Repository) error {
			users, err := repo.GetUsers(ctx)
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Printf("%6d  %s  %s %s\n", u.ID, u.Login, u.GivenName, u.FamilyName)
			}
			return nil
		})
	},
}

func init() {
	adminTokenCreateCmd.Flags().Uint32("user-id", 0, "Owner user id")
	adminTokenCreateCmd.Flags().String("name", "", "Token name")
	_ = adminTokenCreateCmd.MarkFlagRequired("user-id")
	_ = adminTokenCreateCmd.MarkFlagRequired("name")

	adminTokenListCmd.Flags().Uint32("user-id", 0, "Owner user id")
	_ = adminTokenListCmd.MarkFlagRequired("user-id")

	adminTokenRevokeCmd.Flags().Uint32("user-id", 0, "Owner user id")
	_ = adminTokenRevokeCmd.MarkFlagRequired("user-id")

	adminUserSyncCmd.Flags().String("given-name", "", "Given name")
	adminUserSyncCmd.Flags().String("family-name", "", "Family name")

	adminTokenCmd.AddCommand(adminTokenCreateCmd, adminTokenListCmd, adminTokenRevokeCmd)
	adminUserCmd.AddCommand(adminUserSyncCmd, adminUserListCmd)
	adminCmd.AddCommand(adminTokenCmd, adminUserCmd)
}
