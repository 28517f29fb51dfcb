package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentchat/internal/config"
	"github.com/nextlevelbuilder/agentchat/internal/store"
	_ "github.com/nextlevelbuilder/agentchat/internal/store/file"
	_ "github.com/nextlevelbuilder/agentchat/internal/store/sqlite"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage saved conversation snapshots",
	}
	cmd.AddCommand(snapshotListCmd(), snapshotExportCmd(), snapshotImportCmd(), snapshotRmCmd())
	return cmd
}

func openStore() (store.SnapshotStore, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store)
}

func snapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			infos, err := s.List(context.Background())
			if err != nil {
				return err
			}
			for _, info := range infos {
				fmt.Printf("%-32s %8d bytes  %s\n", info.Name, info.Bytes, info.Updated.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func snapshotExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <name> <file>",
		Short: "Write a stored snapshot to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			data, err := s.Load(context.Background(), args[0])
			if err != nil {
				return err
			}
			return os.WriteFile(args[1], data, 0o644)
		},
	}
}

func snapshotImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <name> <file>",
		Short: "Store a snapshot file under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Save(context.Background(), args[0], data)
		},
	}
}

func snapshotRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Delete(context.Background(), args[0])
		},
	}
}
